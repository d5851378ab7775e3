package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/plated-app/plated-api/internal/domain"
)

// messageKeyLayout is fixed width so that keys sort lexically by time.
const messageKeyLayout = "2006-01-02T15:04:05.000000000Z"

func messageKey(createdAt time.Time, messageID string) string {
	return createdAt.UTC().Format(messageKeyLayout) + "#" + messageID
}

// MessageRepo provides typed DynamoDB operations for the messages table.
// PK: conversation_id, SK: message_key.
type MessageRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewMessageRepo(client *dynamodb.Client, tableName string) *MessageRepo {
	return &MessageRepo{client: client, tableName: tableName}
}

func (r *MessageRepo) Put(ctx context.Context, m *domain.Message) error {
	if m.MessageKey == "" {
		m.MessageKey = messageKey(m.CreatedAt, m.MessageID)
	}
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// List returns all messages of a conversation, oldest first.
func (r *MessageRepo) List(ctx context.Context, conversationID string) ([]domain.Message, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("conversation_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
		},
		ScanIndexForward: aws.Bool(true),
	})
	var messages []domain.Message
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Message
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		messages = append(messages, page...)
	}
	return messages, nil
}

// Latest returns the newest message of a conversation, or nil when it has none.
func (r *MessageRepo) Latest(ctx context.Context, conversationID string) (*domain.Message, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("conversation_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var m domain.Message
	if err := attributevalue.UnmarshalMap(out.Items[0], &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkReadFromOthers sets read=true on every unread message in the
// conversation that userID did not send. Returns the number updated.
func (r *MessageRepo) MarkReadFromOthers(ctx context.Context, conversationID, userID string) (int, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("conversation_id = :cid"),
		FilterExpression:       aws.String("#rd = :f AND sender_id <> :uid"),
		ExpressionAttributeNames: map[string]string{
			"#rd": fieldRead,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
			":uid": &types.AttributeValueMemberS{Value: userID},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	updated := 0
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return updated, err
		}
		var page []domain.Message
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return updated, err
		}
		for _, m := range page {
			_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
				TableName:           aws.String(r.tableName),
				Key:                 compositeKey("conversation_id", conversationID, "message_key", m.MessageKey),
				UpdateExpression:    aws.String("SET #rd = :t"),
				ConditionExpression: aws.String("sender_id <> :uid"),
				ExpressionAttributeNames: map[string]string{
					"#rd": fieldRead,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":t":   &types.AttributeValueMemberBOOL{Value: true},
					":uid": &types.AttributeValueMemberS{Value: userID},
				},
			})
			if err != nil {
				return updated, fmt.Errorf("mark message %s read: %w", m.MessageID, err)
			}
			updated++
		}
	}
	return updated, nil
}

// DeleteByConversation removes every message of a conversation in batches.
func (r *MessageRepo) DeleteByConversation(ctx context.Context, conversationID string) error {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("conversation_id = :cid"),
		ProjectionExpression:   aws.String("conversation_id, message_key"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
		},
	})
	var keys []map[string]types.AttributeValue
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		keys = append(keys, out.Items...)
	}
	return batchDelete(ctx, r.client, r.tableName, keys)
}

// batchDelete deletes keys in BatchWriteItem chunks, resubmitting unprocessed
// items with exponential backoff.
func batchDelete(ctx context.Context, client *dynamodb.Client, table string, keys []map[string]types.AttributeValue) error {
	for _, part := range chunk(keys) {
		reqs := make([]types.WriteRequest, 0, len(part))
		for _, k := range part {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}
		pending := map[string][]types.WriteRequest{table: reqs}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt >= 5 {
				return fmt.Errorf("batch delete %s: unprocessed items remain", table)
			}
			if attempt > 0 {
				if err := wait(ctx, retryDelay(attempt)); err != nil {
					return fmt.Errorf("batch delete %s: %w", table, err)
				}
			}
			out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("batch delete %s: %w", table, err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}
