package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/plated-app/plated-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestImageUpsertExpr_ObjectRemovesInlinePayload(t *testing.T) {
	ts := &types.AttributeValueMemberS{Value: "2024-06-01T12:00:00Z"}
	ue := imageUpsertExpr(&domain.VerificationImage{
		ImageID:  "i1",
		ImageURL: "https://cdn.example/verification-images/verification/u1/dashboard/x.jpg",
		ImageKey: "verification/u1/dashboard/x.jpg",
	}, ts)

	assert.Contains(t, ue.Expr, "#url = :url, #key = :key REMOVE #b64")
	assert.Equal(t, &types.AttributeValueMemberS{Value: "verification/u1/dashboard/x.jpg"}, ue.Values[":key"])
	assert.NotContains(t, ue.Values, ":b64")
}

func TestImageUpsertExpr_InlineRemovesObject(t *testing.T) {
	ts := &types.AttributeValueMemberS{Value: "2024-06-01T12:00:00Z"}
	ue := imageUpsertExpr(&domain.VerificationImage{ImageID: "i1", ImageBase64: "data:image/jpeg;base64,AAAA"}, ts)

	assert.Contains(t, ue.Expr, "#b64 = :b64 REMOVE #url, #key")
	assert.NotContains(t, ue.Values, ":url")
	assert.NotContains(t, ue.Values, ":key")
	assert.Equal(t, "image_base64", ue.Names["#b64"])
}
