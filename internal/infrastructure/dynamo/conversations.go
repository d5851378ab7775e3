package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/plated-app/plated-api/internal/domain"
)

// pairGuardPrefix marks the rows in the conversations table that reserve a
// user pair. Real conversation ids are ULIDs and never carry it.
const pairGuardPrefix = "PAIR#"

// ConversationRepo provides typed DynamoDB operations for the conversations
// and conversation_participants tables.
type ConversationRepo struct {
	client            *dynamodb.Client
	tableName         string
	participantsTable string
}

func NewConversationRepo(client *dynamodb.Client, tableName, participantsTable string) *ConversationRepo {
	return &ConversationRepo{client: client, tableName: tableName, participantsTable: participantsTable}
}

// CreateWithParticipants writes the conversation, its participants and the
// pair guard in one transaction. Returns ErrConflict when the pair already has
// a conversation.
func (r *ConversationRepo) CreateWithParticipants(ctx context.Context, c *domain.Conversation, participants []domain.Participant) error {
	convItem, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                convItem,
			ConditionExpression: aws.String("attribute_not_exists(conversation_id)"),
		}},
		{Put: &types.Put{
			TableName: aws.String(r.tableName),
			Item: map[string]types.AttributeValue{
				"conversation_id": &types.AttributeValueMemberS{Value: pairGuardPrefix + c.PairKey},
				"target_id":       &types.AttributeValueMemberS{Value: c.ConversationID},
			},
			ConditionExpression: aws.String("attribute_not_exists(conversation_id)"),
		}},
	}
	for i := range participants {
		item, err := attributevalue.MarshalMap(&participants[i])
		if err != nil {
			return fmt.Errorf("marshal participant: %w", err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(r.participantsTable),
			Item:      item,
		}})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if isTxCanceled(err) {
		return fmt.Errorf("conversation for pair exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *ConversationRepo) Get(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("conversation_id", conversationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("conversation")
	}
	var c domain.Conversation
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByPair returns the conversation reserved for pairKey. Both reads are
// strongly consistent, unlike the user_id-index lookup, so a conversation
// created moments ago is always seen.
func (r *ConversationRepo) GetByPair(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("conversation_id", pairGuardPrefix+pairKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	target, ok := out.Item["target_id"].(*types.AttributeValueMemberS)
	if !ok || target.Value == "" {
		return nil, notFound("conversation")
	}
	out, err = r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("conversation_id", target.Value),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("conversation")
	}
	var c domain.Conversation
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetMany loads the conversations with the given ids, skipping missing ones.
func (r *ConversationRepo) GetMany(ctx context.Context, ids []string) ([]domain.Conversation, error) {
	var result []domain.Conversation
	for start := 0; start < len(ids); start += 100 {
		end := start + 100
		if end > len(ids) {
			end = len(ids)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, strKey("conversation_id", id))
		}
		request := map[string]types.KeysAndAttributes{r.tableName: {Keys: keys}}
		for len(request) > 0 {
			out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, err
			}
			var page []domain.Conversation
			if err := attributevalue.UnmarshalListOfMaps(out.Responses[r.tableName], &page); err != nil {
				return nil, err
			}
			result = append(result, page...)
			request = out.UnprocessedKeys
		}
	}
	return result, nil
}

// ConversationIDsForUser returns the ids of every conversation userID takes part in.
func (r *ConversationRepo) ConversationIDsForUser(ctx context.Context, userID string) ([]string, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.participantsTable),
		IndexName:              aws.String("user_id-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	var ids []string
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Participant
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		for _, part := range page {
			ids = append(ids, part.ConversationID)
		}
	}
	return ids, nil
}

func (r *ConversationRepo) ListParticipants(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.participantsTable),
		KeyConditionExpression: aws.String("conversation_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
		},
	})
	if err != nil {
		return nil, err
	}
	var participants []domain.Participant
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

// Delete removes the conversation row, its participants and the pair guard in
// one transaction. Messages must already be gone.
func (r *ConversationRepo) Delete(ctx context.Context, c *domain.Conversation, participants []domain.Participant) error {
	items := []types.TransactWriteItem{
		{Delete: &types.Delete{
			TableName: aws.String(r.tableName),
			Key:       strKey("conversation_id", c.ConversationID),
		}},
	}
	if c.PairKey != "" {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(r.tableName),
			Key:       strKey("conversation_id", pairGuardPrefix+c.PairKey),
		}})
	}
	for _, p := range participants {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(r.participantsTable),
			Key:       compositeKey("conversation_id", c.ConversationID, "user_id", p.UserID),
		}})
	}
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return err
}
