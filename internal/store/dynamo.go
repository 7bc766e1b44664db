package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"lecture-quiz/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoAPI is the subset of *dynamodb.Client the store uses.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type dynamoRecords struct {
	db        dynamoAPI
	tableName string
}

// NewDynamoStore builds a job store on a DynamoDB table keyed by job_id.
// endpoint overrides the service endpoint (DynamoDB Local) when non-empty.
func NewDynamoStore(cfg aws.Config, table, endpoint string) (*Store, error) {
	if table == "" {
		return nil, fmt.Errorf("DYNAMO_TABLE is required")
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return newDynamoStore(client, table), nil
}

func newDynamoStore(db dynamoAPI, table string) *Store {
	return &Store{records: &dynamoRecords{db: db, tableName: table}}
}

func (s *dynamoRecords) load(ctx context.Context, jobID string) (*models.Job, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"job_id": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}

	var job models.Job
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *dynamoRecords) create(ctx context.Context, job models.Job) (bool, error) {
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return false, err
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(job_id)"),
	})
	return conditional(err)
}

func (s *dynamoRecords) replace(ctx context.Context, job models.Job, expectVersion int64) (bool, error) {
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return false, err
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,

		// Only overwrite the version we decided on
		ConditionExpression: aws.String("#v = :v"),
		ExpressionAttributeNames: map[string]string{
			"#v": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expectVersion)},
		},
	})
	return conditional(err)
}

func (s *dynamoRecords) list(ctx context.Context, limit int32) ([]models.Job, error) {
	out, err := s.db.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
		Limit:     aws.Int32(limit),
	})
	if err != nil {
		return nil, err
	}

	var jobs []models.Job
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &jobs); err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].UpdatedAt > jobs[j].UpdatedAt })
	return jobs, nil
}

// conditional maps a failed condition to (false, nil): someone else changed
// the item first.
func conditional(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return false, nil
	}
	return false, err
}
