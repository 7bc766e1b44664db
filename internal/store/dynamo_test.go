package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo evaluates the two condition expressions the store issues.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	puts  int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(item map[string]types.AttributeValue) string {
	if s, ok := item["job_id"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[keyOf(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++

	key := keyOf(in.Item)
	current, exists := f.items[key]
	switch aws.ToString(in.ConditionExpression) {
	case "attribute_not_exists(job_id)":
		if exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	case "#v = :v":
		want := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberN).Value
		got, _ := current["version"].(*types.AttributeValueMemberN)
		if !exists || got == nil || got.Value != want {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("version")}
		}
	case "":
	default:
		return nil, errors.New("unexpected condition " + aws.ToString(in.ConditionExpression))
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		if in.Limit != nil && int32(len(out.Items)) >= *in.Limit {
			break
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func TestDynamoStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) *Store { return newDynamoStore(newFakeDynamo(), "quiz-jobs") })
}

func TestDynamoStoreHeldDoesNotWrite(t *testing.T) {
	db := newFakeDynamo()
	s := newDynamoStore(db, "quiz-jobs")
	ctx := context.Background()

	if _, err := s.TryAcquire(ctx, seedJob(), lease("a", 1000)); err != nil {
		t.Fatal(err)
	}
	before := db.puts
	res, err := s.TryAcquire(ctx, seedJob(), lease("b", 1200))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != AcquireHeld {
		t.Fatalf("status = %s, want HELD", res.Status)
	}
	if db.puts != before {
		t.Fatalf("held acquire wrote %d items", db.puts-before)
	}
}

func TestDynamoConditionalMapsToFalse(t *testing.T) {
	ok, err := conditional(&types.ConditionalCheckFailedException{})
	if ok || err != nil {
		t.Fatalf("conditional() = %v, %v; want false, nil", ok, err)
	}
	boom := errors.New("boom")
	if _, err := conditional(boom); !errors.Is(err, boom) {
		t.Fatalf("conditional() error = %v, want boom", err)
	}
}
