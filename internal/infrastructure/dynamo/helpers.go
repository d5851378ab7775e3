package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/plated-app/plated-api/internal/domain"
)

// batchSize is the BatchWriteItem request limit.
const batchSize = 25

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// compositeKey builds a DynamoDB primary key with two string attributes (PK + SK).
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

// updateExpr is a SET expression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET expression.
// Fields are emitted in sorted order so the expression is deterministic. A nil
// value is stored as NULL.
func buildUpdateExpr(updates map[string]interface{}) (updateExpr, error) {
	if len(updates) == 0 {
		return updateExpr{}, errors.New("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ue := updateExpr{
		Expr:   "SET ",
		Names:  make(map[string]string, len(keys)),
		Values: make(map[string]types.AttributeValue, len(keys)),
	}
	for i, k := range keys {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(updates[k])
		if err != nil {
			return updateExpr{}, fmt.Errorf("marshal field %s: %w", k, err)
		}
		ue.Names[nameKey] = k
		ue.Values[valueKey] = av
		if i > 0 {
			ue.Expr += ", "
		}
		ue.Expr += fmt.Sprintf("%s = %s", nameKey, valueKey)
	}
	return ue, nil
}

// now is the clock used for updated_at stamps; tests replace it.
var now = func() time.Time { return time.Now().UTC() }

// isConditionFailed reports whether err is a failed ConditionExpression.
func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// isTxCanceled reports whether a TransactWriteItems call was cancelled.
func isTxCanceled(err error) bool {
	var tce *types.TransactionCanceledException
	return errors.As(err, &tce)
}

func notFound(what string) error {
	return fmt.Errorf("%s not found: %w", what, domain.ErrNotFound)
}

const (
	retryBase = 50 * time.Millisecond
	retryMax  = time.Second
)

// retryDelay is the pause before resubmitting unprocessed items: retryBase
// doubled per attempt, capped at retryMax.
func retryDelay(attempt int) time.Duration {
	switch {
	case attempt < 1:
		return 0
	case attempt > 8:
		return retryMax
	}
	return min(retryBase<<(attempt-1), retryMax)
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// chunk splits keys into BatchWriteItem-sized groups.
func chunk(keys []map[string]types.AttributeValue) [][]map[string]types.AttributeValue {
	var out [][]map[string]types.AttributeValue
	for len(keys) > 0 {
		n := batchSize
		if len(keys) < n {
			n = len(keys)
		}
		out = append(out, keys[:n])
		keys = keys[n:]
	}
	return out
}
