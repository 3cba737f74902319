package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxIncrementAttempts bounds the optimistic-concurrency retry loop.
const maxIncrementAttempts = 5

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
// Tests substitute a fake to exercise the conditional-update race paths.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore keeps rate counters in a DynamoDB table keyed by
// (PK=scope, SK=key). Increments use a version-gated conditional update so
// racing writers retry instead of overwriting each other. ExpiresAt is the
// table's TTL attribute; admission correctness never depends on timely
// deletion because bucket labels embed the window timestamp.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

type counterRecord struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Count     int    `dynamodbav:"Count"`
	Version   int64  `dynamodbav:"Version"`
	ExpiresAt int64  `dynamodbav:"ExpiresAt"`
}

// NewDynamoStore creates a DynamoDB-backed counter store.
func NewDynamoStore(ctx context.Context, tableName, region, profile string) (*DynamoStore, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &DynamoStore{
		client:    dynamodb.NewFromConfig(cfg),
		tableName: tableName,
	}, nil
}

// NewDynamoStoreWithClient creates a store around an existing client.
func NewDynamoStoreWithClient(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// IncrementAndGet implements Store. It runs a read-modify-write cycle gated
// on the record version; a rejected conditional write (concurrent creator or
// concurrent updater) restarts the cycle, bounded at maxIncrementAttempts.
func (s *DynamoStore) IncrementAndGet(ctx context.Context, scope, key string, expiresAt time.Time) (int, error) {
	itemKey := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: scope},
		"SK": &types.AttributeValueMemberS{Value: key},
	}

	for attempt := 0; attempt < maxIncrementAttempts; attempt++ {
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(s.tableName),
			Key:            itemKey,
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return 0, fmt.Errorf("%w: reading counter %s/%s: %v", ErrUnavailable, scope, key, err)
		}

		if len(out.Item) == 0 {
			count, err := s.create(ctx, scope, key, expiresAt)
			if err == nil {
				return count, nil
			}
			if isConditionalCheckFailed(err) {
				// A concurrent creator won; retry as an update.
				continue
			}
			return 0, fmt.Errorf("%w: creating counter %s/%s: %v", ErrUnavailable, scope, key, err)
		}

		var rec counterRecord
		if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
			return 0, fmt.Errorf("%w: decoding counter %s/%s: %v", ErrUnavailable, scope, key, err)
		}

		count, err := s.update(ctx, itemKey, rec, expiresAt)
		if err == nil {
			return count, nil
		}
		if isConditionalCheckFailed(err) {
			// Another writer bumped the version; re-read and retry.
			continue
		}
		return 0, fmt.Errorf("%w: updating counter %s/%s: %v", ErrUnavailable, scope, key, err)
	}

	return 0, fmt.Errorf("%w: increment retries exhausted for %s/%s", ErrUnavailable, scope, key)
}

func (s *DynamoStore) create(ctx context.Context, scope, key string, expiresAt time.Time) (int, error) {
	av, err := attributevalue.MarshalMap(counterRecord{
		PK:        scope,
		SK:        key,
		Count:     1,
		Version:   1,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return 0, fmt.Errorf("marshaling counter record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *DynamoStore) update(ctx context.Context, itemKey map[string]types.AttributeValue, rec counterRecord, expiresAt time.Time) (int, error) {
	newCount := rec.Count + 1

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 itemKey,
		UpdateExpression:    aws.String("SET #count = :count, Version = :newVersion, ExpiresAt = :expiresAt"),
		ConditionExpression: aws.String("Version = :version"),
		ExpressionAttributeNames: map[string]string{
			"#count": "Count",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":count":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", newCount)},
			":newVersion": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.Version+1)},
			":expiresAt":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())},
			":version":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.Version)},
		},
	})
	if err != nil {
		return 0, err
	}
	return newCount, nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
