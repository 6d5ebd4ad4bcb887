package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/marisec-auth/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
// A repo built with NewDisconnectedUserRepo answers every call with the
// configuration error captured at startup; there is no fallback for users.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
	cfgErr    error
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// NewDisconnectedUserRepo returns a repo that reports cause (normally a
// *domain.ConfigError) from every method.
func NewDisconnectedUserRepo(cause error) *UserRepo {
	return &UserRepo{cfgErr: cause}
}

// Create inserts a new user. The user_id condition guards against id reuse;
// email uniqueness is checked by the caller through the email index.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if r.cfgErr != nil {
		return r.cfgErr
	}
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldUserID},
	})
	if err != nil {
		if _, ok := isConditionFailed(err); ok {
			return fmt.Errorf("user %s already exists: %w", u.UserID, domain.ErrConflict)
		}
		return unavailable("put user", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	if r.cfgErr != nil {
		return nil, r.cfgErr
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldUserID, userID),
	})
	if err != nil {
		return nil, unavailable("get user", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

// GetByEmail matches the email exactly as stored; no case folding.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if r.cfgErr != nil {
		return nil, r.cfgErr
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(emailIndex),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, unavailable("query user by email", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	if r.cfgErr != nil {
		return r.cfgErr
	}
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#id"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		if _, ok := isConditionFailed(err); ok {
			return fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return unavailable("update user", err)
	}
	return nil
}

// MarkEmailVerified flips is_email_verified to true.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	return r.Update(ctx, userID, map[string]interface{}{fieldIsEmailVerified: true})
}

// SetAvatarKey records the object key of the user's uploaded avatar.
func (r *UserRepo) SetAvatarKey(ctx context.Context, userID, key string) error {
	return r.Update(ctx, userID, map[string]interface{}{fieldAvatarKey: key})
}
