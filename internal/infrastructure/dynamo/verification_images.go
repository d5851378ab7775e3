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

// VerificationImageRepo stores ownership photos keyed by (user_id, image_type).
type VerificationImageRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewVerificationImageRepo(client *dynamodb.Client, tableName string) *VerificationImageRepo {
	return &VerificationImageRepo{client: client, tableName: tableName}
}

// Get returns the image of one type, strongly consistent so that a replaced
// object can be cleaned up right after the previous upload.
func (r *VerificationImageRepo) Get(ctx context.Context, userID string, imageType domain.ImageType) (*domain.VerificationImage, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey("user_id", userID, "image_type", string(imageType)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, notFound("verification image")
	}
	var img domain.VerificationImage
	if err := attributevalue.UnmarshalMap(out.Item, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// Upsert writes the payload for (user, type). An existing row keeps its id and
// created_at; only the payload and updated_at change. A stored object
// (image_url, image_key) and an inline image_base64 are mutually exclusive, so
// whichever is not set is removed. Returns the stored row.
func (r *VerificationImageRepo) Upsert(ctx context.Context, img *domain.VerificationImage) (*domain.VerificationImage, error) {
	at := img.UpdatedAt
	if at.IsZero() {
		at = now()
	}
	ts, err := attributevalue.Marshal(at)
	if err != nil {
		return nil, fmt.Errorf("marshal timestamp: %w", err)
	}
	ue := imageUpsertExpr(img, ts)
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey("user_id", img.UserID, "image_type", string(img.ImageType)),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var stored domain.VerificationImage
	if err := attributevalue.UnmarshalMap(out.Attributes, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// imageUpsertExpr keeps id and created_at of an existing row, stamps ts and
// writes either the object reference or the inline payload.
func imageUpsertExpr(img *domain.VerificationImage, ts types.AttributeValue) updateExpr {
	ue := updateExpr{
		Expr: "SET #id = if_not_exists(#id, :id), #ca = if_not_exists(#ca, :ts), #ua = :ts",
		Names: map[string]string{
			"#id":  "image_id",
			"#ca":  "created_at",
			"#ua":  fieldUpdatedAt,
			"#b64": "image_base64",
			"#url": "image_url",
			"#key": "image_key",
		},
		Values: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: img.ImageID},
			":ts": ts,
		},
	}
	if img.ImageURL != "" {
		ue.Values[":url"] = &types.AttributeValueMemberS{Value: img.ImageURL}
		ue.Values[":key"] = &types.AttributeValueMemberS{Value: img.ImageKey}
		ue.Expr += ", #url = :url, #key = :key REMOVE #b64"
	} else {
		ue.Values[":b64"] = &types.AttributeValueMemberS{Value: img.ImageBase64}
		ue.Expr += ", #b64 = :b64 REMOVE #url, #key"
	}
	return ue
}

func (r *VerificationImageRepo) ListByUser(ctx context.Context, userID string) ([]domain.VerificationImage, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, err
	}
	var images []domain.VerificationImage
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// DeleteByUser removes every image of userID.
func (r *VerificationImageRepo) DeleteByUser(ctx context.Context, userID string) error {
	for _, t := range domain.RequiredImageTypes {
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       compositeKey("user_id", userID, "image_type", string(t)),
		})
		if err != nil {
			return fmt.Errorf("delete %s image: %w", t, err)
		}
	}
	return nil
}
