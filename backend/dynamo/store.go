// Package dynamo implements softdelete.Store on DynamoDB.
//
// Set membership is one item per (set key, member) in the index table, with
// the partition key optionally sharded by member hash, and
// each entity's attribute namespace is one item in the attribute table. A
// batch commits through TransactWriteItems, so the live item delete, the
// deleted item put and the flag update succeed or fail together.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/tombstone/internal/shard"
	"github.com/jacentio/tombstone/softdelete"
)

// maxTransactItems is the DynamoDB limit on items per TransactWriteItems call.
const maxTransactItems = 100

var (
	// ErrTxDone is returned when Commit is called twice on one batch.
	ErrTxDone = errors.New("dynamo: transaction already finished")

	// ErrTooManyWrites is returned when a batch exceeds the TransactWriteItems limit.
	ErrTooManyWrites = errors.New("dynamo: too many writes in one transaction")
)

// API is the subset of the DynamoDB client the Store uses.
type API interface {
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	dynamodb.QueryAPIClient
}

// Compile-time contract assertions.
var (
	_ softdelete.Store = (*Store)(nil)
	_ API              = (*dynamodb.Client)(nil)
)

// memberItem is an index table row. PK is the set key plus any shard suffix.
type memberItem struct {
	PK     string `dynamodbav:"pk"`
	Member string `dynamodbav:"member"`
}

// Store is a softdelete.Store backed by two DynamoDB tables.
type Store struct {
	client API
	config Config
}

// New creates a Store using client.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// NewFromDefaultConfig loads the shared AWS configuration and creates a Store.
func NewFromDefaultConfig(ctx context.Context, config Config, optFns ...func(*awsconfig.LoadOptions) error) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(cfg), config), nil
}

// Config returns the table configuration.
func (s *Store) Config() Config {
	return s.config
}

// Begin opens a new write batch.
func (s *Store) Begin() softdelete.Tx {
	return &tx{store: s}
}

// IsMember reads the member item with a strongly consistent GetItem.
func (s *Store) IsMember(ctx context.Context, key, member string) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.IndexTable),
		Key:            s.memberKey(key, member),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	return result.Item != nil, nil
}

// Members queries every member item under key, one shard at a time.
func (s *Store) Members(ctx context.Context, key string) ([]string, error) {
	members := []string{}
	for _, pk := range shard.SetPKs(key, s.config.NumShards) {
		var err error
		if members, err = s.queryShard(ctx, pk, members); err != nil {
			if s.config.NumShards > 1 {
				return nil, fmt.Errorf("shard %s: %w", pk, err)
			}
			return nil, err
		}
	}
	return members, nil
}

func (s *Store) queryShard(ctx context.Context, pk string, members []string) ([]string, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                aws.String(s.config.IndexTable),
		KeyConditionExpression:   aws.String("pk = :pk"),
		ProjectionExpression:     aws.String("#member"),
		ExpressionAttributeNames: map[string]string{"#member": "member"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ConsistentRead: aws.Bool(true),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var rows []memberItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &rows); err != nil {
			return nil, fmt.Errorf("unmarshal members: %w", err)
		}
		for _, row := range rows {
			members = append(members, row.Member)
		}
	}
	return members, nil
}

// Field reads one attribute of the namespace item. Non-string values are
// reported as present with an empty value.
func (s *Store) Field(ctx context.Context, key, field string) (string, bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.config.AttributeTable),
		Key:                      attributesKey(key),
		ProjectionExpression:     aws.String("#f"),
		ExpressionAttributeNames: map[string]string{"#f": field},
		ConsistentRead:           aws.Bool(true),
	})
	if err != nil {
		return "", false, err
	}
	attr, ok := result.Item[field]
	if !ok {
		return "", false, nil
	}
	if v, ok := attr.(*types.AttributeValueMemberS); ok {
		return v.Value, true, nil
	}
	return "", true, nil
}

func (s *Store) memberKey(key, member string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":     &types.AttributeValueMemberS{Value: shard.SetPK(key, member, s.config.NumShards)},
		"member": &types.AttributeValueMemberS{Value: member},
	}
}

func attributesKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: key},
	}
}

type tx struct {
	store *Store
	items []types.TransactWriteItem
	err   error
	done  bool
}

func (t *tx) SetAdd(key, member string) {
	item, err := attributevalue.MarshalMap(memberItem{
		PK:     shard.SetPK(key, member, t.store.config.NumShards),
		Member: member,
	})
	if err != nil {
		if t.err == nil {
			t.err = fmt.Errorf("marshal member: %w", err)
		}
		return
	}
	t.items = append(t.items, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(t.store.config.IndexTable),
			Item:      item,
		},
	})
}

func (t *tx) SetRemove(key, member string) {
	t.items = append(t.items, types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(t.store.config.IndexTable),
			Key:       t.store.memberKey(key, member),
		},
	})
}

func (t *tx) SetField(key, field string, value *string) {
	update := &types.Update{
		TableName:                aws.String(t.store.config.AttributeTable),
		Key:                      attributesKey(key),
		ExpressionAttributeNames: map[string]string{"#f": field},
	}
	if value == nil {
		update.UpdateExpression = aws.String("REMOVE #f")
	} else {
		update.UpdateExpression = aws.String("SET #f = :v")
		update.ExpressionAttributeValues = map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: *value},
		}
	}
	t.items = append(t.items, types.TransactWriteItem{Update: update})
}

// Commit executes the batch as one TransactWriteItems call. The client
// request token makes SDK retries of the same call idempotent.
func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if t.err != nil {
		return t.err
	}
	if len(t.items) == 0 {
		return nil
	}
	if len(t.items) > maxTransactItems {
		return fmt.Errorf("%w: %d > %d", ErrTooManyWrites, len(t.items), maxTransactItems)
	}

	_, err := t.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems:      t.items,
		ClientRequestToken: aws.String(uuid.NewString()),
	})
	return mapTransactionError(err)
}

// mapTransactionError adds the cancellation reason codes to a cancelled transaction.
func mapTransactionError(err error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		var codes []string
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code != "None" {
				codes = append(codes, *reason.Code)
			}
		}
		if len(codes) > 0 {
			return fmt.Errorf("transaction canceled (%s): %w", strings.Join(codes, ", "), err)
		}
	}

	return err
}
