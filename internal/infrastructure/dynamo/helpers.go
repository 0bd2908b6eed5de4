package dynamo

import (
	"encoding/base64"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names shared by both tables.
const (
	attrUserID   = "user_id"
	attrIdentity = "identity"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// emailIdentity and phoneIdentity build guard-table keys.
func emailIdentity(email string) string { return "email#" + email }
func phoneIdentity(phone string) string { return "phone#" + phone }

// failedConditions returns the indexes of transaction items that failed their
// condition check. ok is false when err is not a condition failure at all; a
// bare ConditionalCheckFailedException yields ok with no indexes.
func failedConditions(err error) (idx []int, ok bool) {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, r := range tce.CancellationReasons {
			if r.Code != nil && *r.Code == "ConditionalCheckFailed" {
				idx = append(idx, i)
			}
		}
		return idx, len(idx) > 0
	}
	var ccf *types.ConditionalCheckFailedException
	return nil, errors.As(err, &ccf)
}

func encodeCursor(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

func decodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
