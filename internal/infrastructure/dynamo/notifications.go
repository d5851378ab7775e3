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

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("notification")
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser queries the user_id-created_at GSI newest first. With unreadOnly
// it filters for read=false.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-created_at-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if unreadOnly {
		input.FilterExpression = aws.String("#rd = :f")
		input.ExpressionAttributeNames = map[string]string{"#rd": fieldRead}
		input.ExpressionAttributeValues[":f"] = &types.AttributeValueMemberBOOL{Value: false}
	}
	var notifications []domain.Notification
	p := dynamodb.NewQueryPaginator(r.client, input)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		notifications = append(notifications, page...)
	}
	return notifications, nil
}

func (r *NotificationRepo) MarkAsRead(ctx context.Context, notificationID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldRead: true})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("notification_id", notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(notification_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return notFound("notification")
	}
	return err
}

// MarkAllAsRead flags every unread notification of userID as read.
func (r *NotificationRepo) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	unread, err := r.ListByUser(ctx, userID, true)
	if err != nil {
		return 0, err
	}
	for i, n := range unread {
		if err := r.MarkAsRead(ctx, n.NotificationID); err != nil {
			return i, err
		}
	}
	return len(unread), nil
}

func (r *NotificationRepo) Delete(ctx context.Context, notificationID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	return err
}

// DeleteAllForUser removes every notification of userID.
func (r *NotificationRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	all, err := r.ListByUser(ctx, userID, false)
	if err != nil {
		return err
	}
	keys := make([]map[string]types.AttributeValue, 0, len(all))
	for _, n := range all {
		keys = append(keys, strKey("notification_id", n.NotificationID))
	}
	return batchDelete(ctx, r.client, r.tableName, keys)
}
