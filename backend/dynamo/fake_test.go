package dynamo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for the few DynamoDB calls the Store makes.
type fakeDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]types.AttributeValue
	pageSize int
	failNext error
	queryErr error

	transactions []*dynamodb.TransactWriteItemsInput
	queries      int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: make(map[string]map[string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	if v, ok := av.(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemID(key map[string]types.AttributeValue) string {
	return str(key["pk"]) + "\x00" + str(key["member"])
}

func (f *fakeDynamo) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := f.tables[name]
	if !ok {
		t = make(map[string]map[string]types.AttributeValue)
		f.tables[name] = t
	}
	return t
}

func (f *fakeDynamo) put(table string, item map[string]types.AttributeValue) {
	cp := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		cp[k] = v
	}
	f.table(table)[itemID(item)] = cp
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = append(f.transactions, in)

	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}

	seen := make(map[string]bool)
	for _, item := range in.TransactItems {
		var table, id string
		switch {
		case item.Put != nil:
			table, id = *item.Put.TableName, itemID(item.Put.Item)
		case item.Delete != nil:
			table, id = *item.Delete.TableName, itemID(item.Delete.Key)
		case item.Update != nil:
			table, id = *item.Update.TableName, itemID(item.Update.Key)
		}
		if seen[table+"/"+id] {
			return nil, errors.New("ValidationException: Transaction request cannot include multiple operations on one item")
		}
		seen[table+"/"+id] = true
	}

	for _, item := range in.TransactItems {
		switch {
		case item.Put != nil:
			f.put(*item.Put.TableName, item.Put.Item)
		case item.Delete != nil:
			delete(f.table(*item.Delete.TableName), itemID(item.Delete.Key))
		case item.Update != nil:
			u := item.Update
			t := f.table(*u.TableName)
			id := itemID(u.Key)
			row, ok := t[id]
			if !ok {
				row = make(map[string]types.AttributeValue)
				for k, v := range u.Key {
					row[k] = v
				}
				t[id] = row
			}
			field := u.ExpressionAttributeNames["#f"]
			if strings.HasPrefix(*u.UpdateExpression, "REMOVE") {
				delete(row, field)
			} else {
				row[field] = u.ExpressionAttributeValues[":v"]
			}
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.table(*in.TableName)[itemID(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: row}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	pk := str(in.ExpressionAttributeValues[":pk"])
	var rows []map[string]types.AttributeValue
	for _, row := range f.table(*in.TableName) {
		if str(row["pk"]) == pk {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return str(rows[i]["member"]) < str(rows[j]["member"]) })

	if in.ExclusiveStartKey != nil {
		start := str(in.ExclusiveStartKey["member"])
		i := sort.Search(len(rows), func(i int) bool { return str(rows[i]["member"]) > start })
		rows = rows[i:]
	}

	out := &dynamodb.QueryOutput{}
	if f.pageSize > 0 && len(rows) > f.pageSize {
		rows = rows[:f.pageSize]
		last := rows[len(rows)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"pk": last["pk"], "member": last["member"]}
	}
	out.Items = rows
	out.Count = int32(len(rows))
	return out, nil
}

func (f *fakeDynamo) has(table string, key map[string]types.AttributeValue) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.table(table)[itemID(key)]
	return ok
}

func (f *fakeDynamo) attr(table, pk, field string) (types.AttributeValue, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.table(table)[itemID(map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: pk}})]
	if !ok {
		return nil, false
	}
	v, ok := row[field]
	return v, ok
}

func (f *fakeDynamo) seedMember(table, key, member string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(table, map[string]types.AttributeValue{
		"pk":     &types.AttributeValueMemberS{Value: key},
		"member": &types.AttributeValueMemberS{Value: member},
	})
}

var _ API = (*fakeDynamo)(nil)

func cancelled(code string) error {
	return &types.TransactionCanceledException{
		Message: aws.String("Transaction cancelled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String(code)},
		},
	}
}
