package nonce

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	dynamoPartitionKey = "nonce"
	dynamoExpiryAttr   = "expires"
)

// DynamoStore records nonces in a DynamoDB table whose partition key is the
// nonce string. Configure the table's TTL on the "expires" attribute so that
// old entries are reaped; the conditional write below also treats entries past
// their expiry as absent, since DynamoDB TTL deletion is not prompt.
type DynamoStore struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoStore(ctx context.Context, table string) (*DynamoStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &DynamoStore{client: dynamodb.NewFromConfig(cfg), table: table}, nil
}

func (s *DynamoStore) SeenBefore(ctx context.Context, nonce string, now time.Time) (bool, error) {
	nowStr := strconv.FormatInt(now.Unix(), 10)
	expiryStr := strconv.FormatInt(now.Add(Window).Unix(), 10)

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			dynamoPartitionKey: &types.AttributeValueMemberS{Value: nonce},
			dynamoExpiryAttr:   &types.AttributeValueMemberN{Value: expiryStr},
		},
		ConditionExpression: aws.String(
			"attribute_not_exists(#nonce) OR #expires < :now"),
		ExpressionAttributeNames: map[string]string{
			"#nonce":   dynamoPartitionKey,
			"#expires": dynamoExpiryAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: nowStr},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}
