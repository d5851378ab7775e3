package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/plated-app/plated-api/internal/domain"
	"github.com/plated-app/plated-api/internal/metrics"
	"github.com/plated-app/plated-api/internal/pkg/id"
	"golang.org/x/sync/errgroup"
)

// MaxMessageLength is the longest message content accepted, in runes.
const MaxMessageLength = 4000

// lastMessageFanout bounds concurrent last-message lookups when listing.
const lastMessageFanout = 4

type Service interface {
	// Create returns the existing conversation between the two users or
	// creates one. Calling it twice yields the same conversation.
	Create(ctx context.Context, userA, userB string) (*domain.Conversation, error)
	// FindExisting returns the conversation both users take part in, or nil.
	FindExisting(ctx context.Context, userA, userB string) (*domain.Conversation, error)
	Get(ctx context.Context, conversationID string) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]domain.Message, error)
	Send(ctx context.Context, conversationID, senderID, content string) (*domain.Message, error)
	MarkAsRead(ctx context.Context, conversationID, userID string) (int, error)
	Participants(ctx context.Context, conversationID string) ([]domain.Participant, error)
	Delete(ctx context.Context, conversationID string) error
}

type conversationStore interface {
	CreateWithParticipants(ctx context.Context, c *domain.Conversation, participants []domain.Participant) error
	Get(ctx context.Context, conversationID string) (*domain.Conversation, error)
	GetByPair(ctx context.Context, pairKey string) (*domain.Conversation, error)
	GetMany(ctx context.Context, ids []string) ([]domain.Conversation, error)
	ConversationIDsForUser(ctx context.Context, userID string) ([]string, error)
	ListParticipants(ctx context.Context, conversationID string) ([]domain.Participant, error)
	Delete(ctx context.Context, c *domain.Conversation, participants []domain.Participant) error
}

type messageStore interface {
	Put(ctx context.Context, m *domain.Message) error
	List(ctx context.Context, conversationID string) ([]domain.Message, error)
	Latest(ctx context.Context, conversationID string) (*domain.Message, error)
	MarkReadFromOthers(ctx context.Context, conversationID, userID string) (int, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type profileStore interface {
	GetMany(ctx context.Context, userIDs []string) (map[string]*domain.Profile, error)
}

type notifier interface {
	Create(ctx context.Context, userID string, kind domain.NotificationType, content string, relatedID *string, metadata map[string]string) (*domain.Notification, error)
}

type service struct {
	conversations conversationStore
	messages      messageStore
	profiles      profileStore
	notifications notifier
	metrics       *metrics.Metrics
	now           func() time.Time
}

type ServiceDeps struct {
	Conversations conversationStore
	Messages      messageStore
	Profiles      profileStore
	// Notifications may be nil; new-message notifications are then skipped.
	Notifications notifier
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		profiles:      deps.Profiles,
		notifications: deps.Notifications,
		metrics:       deps.Metrics,
		now:           now,
	}
}

func (s *service) FindExisting(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	idsA, err := s.conversations.ConversationIDsForUser(ctx, userA)
	if err != nil {
		slog.Error("find conversation: list user conversations", "user_id", userA, "err", err)
		return nil, err
	}
	if len(idsA) == 0 {
		return nil, nil
	}
	setA := make(map[string]bool, len(idsA))
	for _, cid := range idsA {
		setA[cid] = true
	}
	idsB, err := s.conversations.ConversationIDsForUser(ctx, userB)
	if err != nil {
		slog.Error("find conversation: list user conversations", "user_id", userB, "err", err)
		return nil, err
	}
	for _, cid := range idsB {
		if setA[cid] {
			return s.conversations.Get(ctx, cid)
		}
	}
	return nil, nil
}

func (s *service) Create(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	if userA == "" || userB == "" {
		return nil, fmt.Errorf("both participants are required: %w", domain.ErrBadRequest)
	}
	if userA == userB {
		return nil, fmt.Errorf("cannot start a conversation with yourself: %w", domain.ErrBadRequest)
	}
	existing, err := s.FindExisting(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	at := s.now()
	c := &domain.Conversation{
		ConversationID: id.New(),
		PairKey:        domain.PairKey(userA, userB),
		CreatedAt:      at,
	}
	participants := []domain.Participant{
		{ParticipantID: id.New(), ConversationID: c.ConversationID, UserID: userA, CreatedAt: at},
		{ParticipantID: id.New(), ConversationID: c.ConversationID, UserID: userB, CreatedAt: at},
	}
	err = s.conversations.CreateWithParticipants(ctx, c, participants)
	if errors.Is(err, domain.ErrConflict) {
		// Another request created the pair first. The participant index may
		// not show it yet, so read the pair guard directly.
		existing, findErr := s.conversations.GetByPair(ctx, c.PairKey)
		if findErr != nil {
			slog.Error("create conversation: load pair winner", "user_a", userA, "user_b", userB, "err", findErr)
			return nil, fmt.Errorf("create conversation: %w", findErr)
		}
		return existing, nil
	}
	if err != nil {
		slog.Error("create conversation", "user_a", userA, "user_b", userB, "err", err)
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	c.Participants = participants
	return c, nil
}

func (s *service) Get(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	c, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	participants, err := s.Participants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	c.Participants = participants
	return c, nil
}

func (s *service) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	ids, err := s.conversations.ConversationIDsForUser(ctx, userID)
	if err != nil {
		slog.Error("list conversations", "user_id", userID, "err", err)
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Conversation{}, nil
	}
	conversations, err := s.conversations.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lastMessageFanout)
	for i := range conversations {
		c := &conversations[i]
		g.Go(func() error {
			parts, err := s.conversations.ListParticipants(gctx, c.ConversationID)
			if err != nil {
				return fmt.Errorf("participants of %s: %w", c.ConversationID, err)
			}
			c.Participants = parts
			last, err := s.messages.Latest(gctx, c.ConversationID)
			if err != nil {
				return fmt.Errorf("last message of %s: %w", c.ConversationID, err)
			}
			c.LastMessage = last
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("list conversations", "user_id", userID, "err", err)
		return nil, err
	}

	var userIDs []string
	for _, c := range conversations {
		for _, p := range c.Participants {
			userIDs = append(userIDs, p.UserID)
		}
	}
	profiles, err := s.profiles.GetMany(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for i := range conversations {
		attachProfiles(conversations[i].Participants, profiles)
	}

	domain.SortByLastMessage(conversations)
	return conversations, nil
}

func (s *service) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	msgs, err := s.messages.List(ctx, conversationID)
	if err != nil {
		slog.Error("list messages", "conversation_id", conversationID, "err", err)
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

func (s *service) Send(ctx context.Context, conversationID, senderID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content is empty: %w", domain.ErrBadRequest)
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, fmt.Errorf("message longer than %d characters: %w", MaxMessageLength, domain.ErrBadRequest)
	}
	participants, err := s.conversations.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	if !isParticipant(participants, senderID) {
		return nil, fmt.Errorf("not a participant: %w", domain.ErrForbidden)
	}

	m := &domain.Message{
		MessageID:      id.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Read:           false,
		CreatedAt:      s.now(),
	}
	if err := s.messages.Put(ctx, m); err != nil {
		slog.Error("send message", "conversation_id", conversationID, "err", err)
		return nil, fmt.Errorf("send message: %w", err)
	}
	s.metrics.MessageSent()

	if s.notifications != nil {
		related := conversationID
		for _, p := range participants {
			if p.UserID == senderID {
				continue
			}
			_, err := s.notifications.Create(ctx, p.UserID, domain.NotificationNewMessage, preview(content), &related,
				map[string]string{"conversation_id": conversationID, "sender_id": senderID})
			if err != nil {
				slog.Warn("new message notification", "user_id", p.UserID, "err", err)
			}
		}
	}
	return m, nil
}

func (s *service) MarkAsRead(ctx context.Context, conversationID, userID string) (int, error) {
	n, err := s.messages.MarkReadFromOthers(ctx, conversationID, userID)
	if err != nil {
		slog.Error("mark messages read", "conversation_id", conversationID, "user_id", userID, "err", err)
		return n, err
	}
	return n, nil
}

func (s *service) Participants(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	participants, err := s.conversations.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	profiles, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	attachProfiles(participants, profiles)
	return participants, nil
}

func (s *service) Delete(ctx context.Context, conversationID string) error {
	c, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	// Messages go first: if this fails the conversation is still intact and
	// the delete can be retried.
	if err := s.messages.DeleteByConversation(ctx, conversationID); err != nil {
		slog.Error("delete conversation messages", "conversation_id", conversationID, "err", err)
		return fmt.Errorf("delete messages: %w", err)
	}
	participants, err := s.conversations.ListParticipants(ctx, conversationID)
	if err != nil {
		return err
	}
	if err := s.conversations.Delete(ctx, c, participants); err != nil {
		slog.Error("delete conversation", "conversation_id", conversationID, "err", err)
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func attachProfiles(participants []domain.Participant, profiles map[string]*domain.Profile) {
	for i := range participants {
		summary := domain.Summary(profiles[participants[i].UserID])
		participants[i].Profile = &summary
	}
}

func isParticipant(participants []domain.Participant, userID string) bool {
	for _, p := range participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func preview(content string) string {
	const max = 100
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	r := []rune(content)
	return string(r[:max]) + "…"
}
