package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/reachify/beacon/internal/config"
	"github.com/reachify/beacon/internal/domain"
)

// DynamoStore persists tracking records in a DynamoDB table keyed by
// tracking_id. Records are marshaled via the dynamodbav tags on
// domain.TrackingRecord; the none method and unset opened_at are stored as
// absent attributes so that if_not_exists implements first-writer-wins.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoStore creates a DynamoDB-backed store.
func NewDynamoStore(ctx context.Context, cfg config.StoreConfig) (*DynamoStore, error) {
	var awsCfg aws.Config
	var err error

	if profile := cfg.GetAWSProfile(); profile != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &DynamoStore{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.DynamoDBTable,
	}, nil
}

// Create inserts a new tracking record. The condition expression rejects
// writes against an existing tracking ID.
func (s *DynamoStore) Create(ctx context.Context, rec *domain.TrackingRecord) error {
	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshaling tracking record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(tracking_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrDuplicateTracking
		}
		return fmt.Errorf("putting tracking record: %w", err)
	}
	return nil
}

// Get retrieves a tracking record by ID. Returns (nil, nil) if not found.
func (s *DynamoStore) Get(ctx context.Context, trackingID string) (*domain.TrackingRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       trackingKey(trackingID),
	})
	if err != nil {
		return nil, fmt.Errorf("getting tracking record: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var rec domain.TrackingRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling tracking record: %w", err)
	}
	return &rec, nil
}

// ApplyEngagement applies an engagement event in a single conditional
// UpdateItem. if_not_exists keeps the first opened_at and method; the ADD-style
// increment never loses a count under concurrent events. The condition
// expression prevents upserting a phantom record for an unknown ID.
func (s *DynamoStore) ApplyEngagement(ctx context.Context, evt domain.EngagementEvent) (bool, error) {
	openedAt, err := attributevalue.Marshal(evt.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("marshaling event time: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key:       trackingKey(evt.TrackingID),
		UpdateExpression: aws.String("SET open_count = open_count + :one, " +
			"ip_address = :ip, user_agent = :ua, #st = :opened, " +
			"opened_at = if_not_exists(opened_at, :ts), #m = if_not_exists(#m, :m)"),
		ConditionExpression: aws.String("attribute_exists(tracking_id)"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
			"#m":  "method",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":    &types.AttributeValueMemberN{Value: "1"},
			":ip":     &types.AttributeValueMemberS{Value: evt.IPAddress},
			":ua":     &types.AttributeValueMemberS{Value: evt.UserAgent},
			":opened": &types.AttributeValueMemberS{Value: string(domain.StatusOpened)},
			":ts":     openedAt,
			":m":      &types.AttributeValueMemberS{Value: string(evt.Method)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("applying engagement: %w", err)
	}
	return true, nil
}

// List returns all tracking records, newest sent first. DynamoDB scans are
// unordered, so results are sorted in memory.
func (s *DynamoStore) List(ctx context.Context) ([]*domain.TrackingRecord, error) {
	var records []*domain.TrackingRecord

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning tracking records: %w", err)
		}
		var batch []*domain.TrackingRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshaling tracking records: %w", err)
		}
		records = append(records, batch...)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SentAt.After(records[j].SentAt)
	})
	return records, nil
}

// DeleteOlderThan removes up to limit records sent before cutoff.
func (s *DynamoStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	cutoffAV, err := attributevalue.Marshal(cutoff)
	if err != nil {
		return 0, fmt.Errorf("marshaling cutoff: %w", err)
	}

	var deleted int64
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		ProjectionExpression:      aws.String("tracking_id"),
		FilterExpression:          aws.String("sent_at < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":cutoff": cutoffAV},
	})
	for paginator.HasMorePages() && deleted < int64(limit) {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("scanning expired records: %w", err)
		}
		for _, item := range page.Items {
			if deleted >= int64(limit) {
				break
			}
			_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.tableName),
				Key:       map[string]types.AttributeValue{"tracking_id": item["tracking_id"]},
			})
			if err != nil {
				return deleted, fmt.Errorf("deleting expired record: %w", err)
			}
			deleted++
		}
	}
	return deleted, nil
}

func trackingKey(trackingID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"tracking_id": &types.AttributeValueMemberS{Value: trackingID},
	}
}
