package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/plated-app/plated-api/internal/domain"
)

// ProfileRepo provides typed DynamoDB operations for the profiles table.
// Verification transitions are conditional writes so that concurrent callers
// cannot move a record out of a state they did not observe.
type ProfileRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewProfileRepo(client *dynamodb.Client, tableName string) *ProfileRepo {
	return &ProfileRepo{client: client, tableName: tableName}
}

// Guard rows in the profiles table reserve unique values. Their user_id is a
// prefix plus the normalised value and owner_id names the profile. They carry
// no enable attribute, so profile scans skip them.
const (
	usernameGuardPrefix = "USERNAME#"
	plateGuardPrefix    = "PLATE#"
	emailGuardPrefix    = "EMAIL#"
)

type profileGuard struct {
	key   string
	taken string
}

// profileGuards lists the reservations a new profile needs.
func profileGuards(p *domain.Profile) []profileGuard {
	guards := []profileGuard{
		{usernameGuardPrefix + domain.NormalizeUsername(p.Username), "username already taken"},
		{plateGuardPrefix + domain.NormalizeLicensePlate(p.LicensePlate), "license plate already registered"},
	}
	if p.Email != "" {
		guards = append(guards, profileGuard{emailGuardPrefix + domain.NormalizeEmail(p.Email), "email already registered"})
	}
	return guards
}

// Create writes a new profile and reserves its username, license plate and,
// when set, e-mail in one transaction. Returns ErrConflict naming the first
// value that is already taken.
func (r *ProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	reasons := []string{"profile already exists"}
	items := []types.TransactWriteItem{{Put: &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	}}}
	for _, g := range profileGuards(p) {
		reasons = append(reasons, g.taken)
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(r.tableName),
			Item: map[string]types.AttributeValue{
				"user_id":  &types.AttributeValueMemberS{Value: g.key},
				"owner_id": &types.AttributeValueMemberS{Value: p.UserID},
			},
			ConditionExpression: aws.String("attribute_not_exists(user_id)"),
		}})
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return fmt.Errorf("%s: %w", cancelReason(tce.CancellationReasons, reasons), domain.ErrConflict)
	}
	return err
}

// cancelReason returns the message of the first item whose condition failed.
func cancelReason(got []types.CancellationReason, reasons []string) string {
	for i, c := range got {
		if aws.ToString(c.Code) == "ConditionalCheckFailed" && i < len(reasons) {
			return reasons[i]
		}
	}
	return "profile could not be created"
}

// UsernameTaken reports whether a profile already reserved username.
func (r *ProfileRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return r.guardExists(ctx, usernameGuardPrefix+domain.NormalizeUsername(username))
}

// LicensePlateTaken reports whether a profile already registered plate.
func (r *ProfileRepo) LicensePlateTaken(ctx context.Context, plate string) (bool, error) {
	return r.guardExists(ctx, plateGuardPrefix+domain.NormalizeLicensePlate(plate))
}

// EmailTaken reports whether a profile already registered email.
func (r *ProfileRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	return r.guardExists(ctx, emailGuardPrefix+domain.NormalizeEmail(email))
}

func (r *ProfileRepo) guardExists(ctx context.Context, key string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.tableName),
		Key:                  strKey("user_id", key),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("user_id"),
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}

func (r *ProfileRepo) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("profile")
	}
	var p domain.Profile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetMany loads the profiles for userIDs. Missing profiles are absent from the
// returned map.
func (r *ProfileRepo) GetMany(ctx context.Context, userIDs []string) (map[string]*domain.Profile, error) {
	result := make(map[string]*domain.Profile, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	var keys []map[string]types.AttributeValue
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, strKey("user_id", id))
	}
	// BatchGetItem accepts up to 100 keys; profile lookups stay well below.
	for len(keys) > 0 {
		n := 100
		if len(keys) < n {
			n = len(keys)
		}
		request := map[string]types.KeysAndAttributes{
			r.tableName: {Keys: keys[:n]},
		}
		keys = keys[n:]
		for len(request) > 0 {
			out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, err
			}
			var profiles []domain.Profile
			if err := attributevalue.UnmarshalListOfMaps(out.Responses[r.tableName], &profiles); err != nil {
				return nil, err
			}
			for i := range profiles {
				result[profiles[i].UserID] = &profiles[i]
			}
			request = out.UnprocessedKeys
		}
	}
	return result, nil
}

// SetCode stores a new verification code. expiresAt is written only when
// non-nil so that regenerating keeps the original deadline. Fails with
// ErrInvalidTransition while the record is pending or verified.
func (r *ProfileRepo) SetCode(ctx context.Context, userID, code string, generatedAt time.Time, expiresAt *time.Time) error {
	updates := map[string]interface{}{
		fieldVerificationCode:  code,
		fieldVerificationGenAt: generatedAt,
	}
	if expiresAt != nil {
		updates[fieldVerificationExpires] = *expiresAt
	}
	return r.transition(ctx, userID, updates, nil, []domain.VerificationStatus{domain.StatusNotVerified, domain.StatusRejected})
}

// Submit moves the record to pending. Allowed from not_verified and rejected.
func (r *ProfileRepo) Submit(ctx context.Context, userID string, at time.Time) error {
	updates := map[string]interface{}{
		fieldVerificationStatus: domain.StatusPending,
		fieldVerificationSubmit: at,
	}
	return r.transition(ctx, userID, updates, nil, []domain.VerificationStatus{domain.StatusNotVerified, domain.StatusRejected})
}

// SetStatus writes a reviewed status. When from is non-empty the current
// status must be one of them.
func (r *ProfileRepo) SetStatus(ctx context.Context, userID string, status domain.VerificationStatus, reviewerID string, at time.Time, from []domain.VerificationStatus) error {
	updates := map[string]interface{}{
		fieldVerificationStatus: status,
		fieldVerificationReview: at,
	}
	if reviewerID != "" {
		updates[fieldVerificationReviewer] = reviewerID
	}
	return r.transition(ctx, userID, updates, nil, from)
}

// Reset returns the record to not_verified and clears the code and all
// verification timestamps.
func (r *ProfileRepo) Reset(ctx context.Context, userID string) error {
	updates := map[string]interface{}{
		fieldVerificationStatus: domain.StatusNotVerified,
	}
	remove := []string{
		fieldVerificationCode, fieldVerificationGenAt, fieldVerificationExpires,
		fieldVerificationSubmit, fieldVerificationReview, fieldVerificationReviewer,
		fieldExpiryWarnedAt,
	}
	return r.transition(ctx, userID, updates, remove, nil)
}

// MarkWarned records that the expiry warning has been sent.
func (r *ProfileRepo) MarkWarned(ctx context.Context, userID string, at time.Time) error {
	return r.transition(ctx, userID, map[string]interface{}{fieldExpiryWarnedAt: at}, nil, nil)
}

// SoftDelete disables the profile.
func (r *ProfileRepo) SoftDelete(ctx context.Context, userID string, at time.Time) error {
	return r.transition(ctx, userID, map[string]interface{}{fieldEnable: 0, fieldDeletedAt: at}, nil, nil)
}

// ListUnverified scans enabled profiles that carry an expiry deadline and
// have not been verified.
func (r *ProfileRepo) ListUnverified(ctx context.Context) ([]domain.Profile, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("#en = :one AND attribute_exists(#exp) AND (attribute_not_exists(#st) OR #st <> :verified)"),
		ExpressionAttributeNames: map[string]string{
			"#en":  fieldEnable,
			"#exp": fieldVerificationExpires,
			"#st":  fieldVerificationStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":      &types.AttributeValueMemberN{Value: "1"},
			":verified": &types.AttributeValueMemberS{Value: string(domain.StatusVerified)},
		},
	}
	var profiles []domain.Profile
	p := dynamodb.NewScanPaginator(r.client, input)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Profile
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		profiles = append(profiles, page...)
	}
	return profiles, nil
}

func (r *ProfileRepo) transition(ctx context.Context, userID string, updates map[string]interface{}, remove []string, from []domain.VerificationStatus) error {
	updates[fieldUpdatedAt] = now()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	expr := ue.Expr
	for i, f := range remove {
		if i == 0 {
			expr += " REMOVE "
		} else {
			expr += ", "
		}
		k := fmt.Sprintf("#r%d", i)
		ue.Names[k] = f
		expr += k
	}

	cond := "attribute_exists(user_id)"
	if len(from) > 0 {
		ue.Names["#cst"] = fieldVerificationStatus
		in := ""
		for i, s := range from {
			k := fmt.Sprintf(":c%d", i)
			ue.Values[k] = &types.AttributeValueMemberS{Value: string(s)}
			if i > 0 {
				in += ", "
			}
			in += k
		}
		cond += " AND (#cst IN (" + in + ")"
		if containsStatus(from, domain.StatusNotVerified) {
			cond += " OR attribute_not_exists(#cst)"
		}
		cond += ")"
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		if len(from) == 0 {
			return notFound("profile")
		}
		return fmt.Errorf("profile %s: %w", userID, domain.ErrInvalidTransition)
	}
	return err
}

func containsStatus(ss []domain.VerificationStatus, s domain.VerificationStatus) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
