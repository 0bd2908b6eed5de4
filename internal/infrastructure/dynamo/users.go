package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-api/internal/config"
	"github.com/storefront-api/internal/domain"
)

// UserRepo stores users in DynamoDB. Email and phone uniqueness is enforced by
// a guard table holding one item per identity, written in the same
// transaction as the user item.
type UserRepo struct {
	client     API
	users      string
	identities string
}

func NewUserRepo(client API, tables config.DynamoTables) *UserRepo {
	return &UserRepo{client: client, users: tables.Users, identities: tables.UserIdentities}
}

type identityItem struct {
	Identity string `dynamodbav:"identity"`
	UserID   string `dynamodbav:"user_id"`
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.users),
		Key:            strKey(attrUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

// FindByEmailOrPhone returns the user owning email or, failing that, phone.
// Empty arguments are skipped.
func (r *UserRepo) FindByEmailOrPhone(ctx context.Context, email, phone string) (*domain.User, error) {
	var keys []string
	if email != "" {
		keys = append(keys, emailIdentity(email))
	}
	if phone != "" {
		keys = append(keys, phoneIdentity(phone))
	}
	for _, k := range keys {
		userID, err := r.owner(ctx, k)
		if err != nil {
			return nil, err
		}
		if userID != "" {
			return r.Get(ctx, userID)
		}
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}

// Create inserts u with its identity guards. A taken email or phone yields
// domain.ErrDuplicateIdentity.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	var tx txn
	tx.add(types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(r.users),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(user_id)"),
		},
	}, errDuplicate)
	for _, id := range identities(u) {
		tx.add(r.putGuard(id, u.UserID), errDuplicate)
	}
	return r.write(ctx, &tx)
}

// Save replaces the stored user, moving identity guards when email or phone
// changed.
func (r *UserRepo) Save(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	prev, err := r.Get(ctx, u.UserID)
	if err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	var tx txn
	tx.add(types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(r.users),
			Item:                item,
			ConditionExpression: aws.String("attribute_exists(user_id)"),
		},
	}, errGone)
	oldIDs, newIDs := identitySet(prev), identitySet(u)
	for id := range oldIDs {
		if !newIDs[id] {
			tx.add(r.deleteGuard(id, u.UserID), errGone)
		}
	}
	for id := range newIDs {
		if !oldIDs[id] {
			tx.add(r.putGuard(id, u.UserID), errDuplicate)
		}
	}
	return r.write(ctx, &tx)
}

// List returns a page of users. cursor is an opaque value from a previous
// call; the returned cursor is empty on the last page.
func (r *UserRepo) List(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(r.users),
		Limit:     aws.Int32(limit),
	}
	if cursor != "" {
		userID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrValidation)
		}
		input.ExclusiveStartKey = strKey(attrUserID, userID)
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, "", err
	}
	users := []domain.User{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &users); err != nil {
		return nil, "", err
	}
	next := ""
	if v, ok := out.LastEvaluatedKey[attrUserID].(*types.AttributeValueMemberS); ok {
		next = encodeCursor(v.Value)
	}
	return users, next, nil
}

func (r *UserRepo) owner(ctx context.Context, identity string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.identities),
		Key:            strKey(attrIdentity, identity),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if out.Item == nil {
		return "", nil
	}
	var it identityItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return "", fmt.Errorf("unmarshal identity: %w", err)
	}
	return it.UserID, nil
}

func (r *UserRepo) putGuard(identity, userID string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(r.identities),
			Item: map[string]types.AttributeValue{
				attrIdentity: &types.AttributeValueMemberS{Value: identity},
				attrUserID:   &types.AttributeValueMemberS{Value: userID},
			},
			ConditionExpression: aws.String("attribute_not_exists(#i)"),
			ExpressionAttributeNames: map[string]string{
				"#i": attrIdentity,
			},
		},
	}
}

func (r *UserRepo) deleteGuard(identity, userID string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:           aws.String(r.identities),
			Key:                 strKey(attrIdentity, identity),
			ConditionExpression: aws.String("user_id = :u"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":u": &types.AttributeValueMemberS{Value: userID},
			},
		},
	}
}

var (
	errDuplicate = fmt.Errorf("email or phone number already registered: %w", domain.ErrDuplicateIdentity)
	errGone      = fmt.Errorf("user: %w", domain.ErrNotFound)
)

// txn pairs each transaction item with the error its failed condition means.
type txn struct {
	items  []types.TransactWriteItem
	onFail []error
}

func (t *txn) add(item types.TransactWriteItem, onFail error) {
	t.items = append(t.items, item)
	t.onFail = append(t.onFail, onFail)
}

// write runs the transaction. The first item whose condition failed decides
// the returned error.
func (r *UserRepo) write(ctx context.Context, tx *txn) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: tx.items})
	if err == nil {
		return nil
	}
	failed, ok := failedConditions(err)
	if !ok {
		return fmt.Errorf("write user: %w", err)
	}
	for _, i := range failed {
		if i < len(tx.onFail) {
			return tx.onFail[i]
		}
	}
	return errDuplicate
}

func identities(u *domain.User) []string {
	var ids []string
	if e := u.EmailValue(); e != "" {
		ids = append(ids, emailIdentity(e))
	}
	if p := u.PhoneValue(); p != "" {
		ids = append(ids, phoneIdentity(p))
	}
	return ids
}

func identitySet(u *domain.User) map[string]bool {
	set := make(map[string]bool, 2)
	for _, id := range identities(u) {
		set[id] = true
	}
	return set
}
