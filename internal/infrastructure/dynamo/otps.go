package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/marisec-auth/internal/domain"
)

// OTPRepo stores one-time passcode records.
// PK: email, SK: type ("registration" | "login"). expires_at is the table TTL attribute,
// so DynamoDB reaps abandoned records without any client read.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

// Put upserts the record for (email, type), replacing any previous code.
func (r *OTPRepo) Put(ctx context.Context, rec *domain.OTPRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return unavailable("put otp record", err)
	}
	return nil
}

func (r *OTPRepo) Get(ctx context.Context, email string, otpType domain.OTPType) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            otpKey(email, otpType),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable("get otp record", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp record: %w", domain.ErrNotFound)
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp record: %w", err)
	}
	return &rec, nil
}

// IncrementAttempts atomically records one attempt and returns the new count.
// The update is conditional on attempts < ceiling, so concurrent verifiers cannot
// push the counter past it; in that case ErrOTPAttemptsExceeded is returned.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, email string, otpType domain.OTPType, ceiling int) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 otpKey(email, otpType),
		UpdateExpression:    aws.String("ADD #a :one"),
		ConditionExpression: aws.String("attribute_exists(#e) AND #a < :max"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldAttempts,
			"#e": fieldEmail,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":max": &types.AttributeValueMemberN{Value: fmt.Sprint(ceiling)},
		},
		ReturnValues:                        types.ReturnValueUpdatedNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		if ccf, ok := isConditionFailed(err); ok {
			if len(ccf.Item) == 0 {
				return 0, fmt.Errorf("otp record: %w", domain.ErrNotFound)
			}
			return 0, domain.ErrOTPAttemptsExceeded
		}
		return 0, unavailable("increment otp attempts", err)
	}
	var attrs struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &attrs); err != nil {
		return 0, fmt.Errorf("unmarshal attempts: %w", err)
	}
	return attrs.Attempts, nil
}

// Delete removes the record. It returns ErrNotFound when nothing was there,
// which lets the caller detect that a concurrent request consumed it first.
func (r *OTPRepo) Delete(ctx context.Context, email string, otpType domain.OTPType) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      otpKey(email, otpType),
		ConditionExpression:      aws.String("attribute_exists(#e)"),
		ExpressionAttributeNames: map[string]string{"#e": fieldEmail},
	})
	if err != nil {
		if _, ok := isConditionFailed(err); ok {
			return fmt.Errorf("otp record: %w", domain.ErrNotFound)
		}
		return unavailable("delete otp record", err)
	}
	return nil
}

func otpKey(email string, otpType domain.OTPType) map[string]types.AttributeValue {
	return compositeKey(fieldEmail, email, fieldType, string(otpType))
}
