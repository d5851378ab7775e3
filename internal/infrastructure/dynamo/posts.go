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

// PostRepo provides typed DynamoDB operations for the posts table.
type PostRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPostRepo(client *dynamodb.Client, tableName string) *PostRepo {
	return &PostRepo{client: client, tableName: tableName}
}

func (r *PostRepo) Put(ctx context.Context, p *domain.Post) error {
	if p.Feed == "" {
		p.Feed = domain.FeedGlobal
	}
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *PostRepo) Get(ctx context.Context, postID string) (*domain.Post, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("post_id", postID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("post")
	}
	var p domain.Post
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListFeed returns posts newest first, skipping offset and returning at most limit.
func (r *PostRepo) ListFeed(ctx context.Context, limit, offset int) ([]domain.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("feed-created_at-index"),
		KeyConditionExpression: aws.String("feed = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f": &types.AttributeValueMemberS{Value: domain.FeedGlobal},
		},
		ScanIndexForward: aws.Bool(false),
	})
	var posts []domain.Post
	skipped := 0
	for p.HasMorePages() && len(posts) < limit {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Post
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		for _, post := range page {
			if skipped < offset {
				skipped++
				continue
			}
			if len(posts) == limit {
				break
			}
			posts = append(posts, post)
		}
	}
	return posts, nil
}
