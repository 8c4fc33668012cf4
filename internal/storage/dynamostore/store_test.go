package dynamostore

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

// fakeAPI keeps items per table keyed by the "ID" attribute. Scan ignores
// FilterExpression and records the last input so tests can inspect it.
type fakeAPI struct {
	tables   map[string]map[string]map[string]ddbtypes.AttributeValue
	lastScan *dynamodb.ScanInput
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{tables: make(map[string]map[string]map[string]ddbtypes.AttributeValue)}
}

func (f *fakeAPI) table(name string) map[string]map[string]ddbtypes.AttributeValue {
	t, ok := f.tables[name]
	if !ok {
		t = make(map[string]map[string]ddbtypes.AttributeValue)
		f.tables[name] = t
	}
	return t
}

func idOf(item map[string]ddbtypes.AttributeValue) string {
	if s, ok := item["ID"].(*ddbtypes.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.table(aws.ToString(in.TableName))[idOf(in.Key)]}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.table(aws.ToString(in.TableName))[idOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	item, ok := f.table(aws.ToString(in.TableName))[idOf(in.Key)]
	if !ok {
		return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("missing")}
	}
	// SET #n0 = :v0, #n1 = :v1 ...
	for alias, name := range in.ExpressionAttributeNames {
		value, ok := in.ExpressionAttributeValues[":v"+alias[2:]]
		if ok && name != "ID" {
			item[name] = value
		}
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	t := f.table(aws.ToString(in.TableName))
	id := idOf(in.Key)
	if _, ok := t[id]; !ok && in.ConditionExpression != nil {
		return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("missing")}
	}
	delete(t, id)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeAPI) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &ddbtypes.TableDescription{
		TableName: in.TableName,
		KeySchema: []ddbtypes.KeySchemaElement{{AttributeName: aws.String("ID"), KeyType: ddbtypes.KeyTypeHash}},
	}}, nil
}

func (f *fakeAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.lastScan = in
	t := f.table(aws.ToString(in.TableName))

	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := &dynamodb.ScanOutput{Count: int32(len(ids))}
	if in.Select != ddbtypes.SelectCount {
		for _, id := range ids {
			out.Items = append(out.Items, t[id])
		}
	}
	return out, nil
}

func openFake(t *testing.T) (*Store, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	s := New(nil, WithClientFunc(func(ctx context.Context, attrs types.Attributes) (API, error) {
		return api, nil
	}))
	require.NoError(t, s.Open(context.Background(), types.Attributes{AttrTablePrefix: "gs-"}))
	return s, api
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s, api := openFake(t)

	id, err := s.Push(ctx, "Users", "ID", types.Record{"Name": "ann", "Age": int64(30), "Nick": nil})
	require.NoError(t, err)
	require.Contains(t, api.tables["gs-Users"], id)

	rec, err := s.Pull(ctx, "Users", "ID", id, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Record{"ID": id, "Name": "ann", "Age": int64(30), "Nick": nil}, rec)

	require.NoError(t, s.Update(ctx, "Users", "ID", id, types.Record{"Age": 31.5}))
	rec, err = s.Pull(ctx, "Users", "ID", id, []string{"Age"})
	require.NoError(t, err)
	assert.Equal(t, types.Record{"Age": 31.5}, rec)

	require.NoError(t, s.Delete(ctx, "Users", "ID", id))
	_, err = s.Pull(ctx, "Users", "ID", id, nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "Users", "ID", id), types.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, "Users", "ID", id, types.Record{"Age": 1}), types.ErrNotFound)

	_, err = s.Push(ctx, "Users", "ID", types.Record{"Bad": make(chan int)})
	assert.ErrorIs(t, err, types.ErrBind)
}

func TestStore_SearchSortsAndPages(t *testing.T) {
	ctx := context.Background()
	s, api := openFake(t)

	for i, name := range []string{"carol", "ann", "bob"} {
		_, err := s.Push(ctx, "Users", "ID", types.Record{"Name": name, "Rank": int64(i)})
		require.NoError(t, err)
	}

	rows, err := s.Search(ctx, "Users", storage.Query{
		Fields: []string{"Name"},
		Filter: filter.New().Add("Rank>=", 0),
		Order:  filter.Order{filter.Asc("Name")},
		Limit:  2,
		Offset: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []types.Record{{"Name": "bob"}, {"Name": "carol"}}, rows)

	require.NotNil(t, api.lastScan.FilterExpression)
	assert.Equal(t, "(#n0 >= :v0)", aws.ToString(api.lastScan.FilterExpression))
	assert.Equal(t, "#n1", aws.ToString(api.lastScan.ProjectionExpression))

	n, err := s.Count(ctx, "Users", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
	assert.Nil(t, api.lastScan.FilterExpression)

	require.NoError(t, s.DeleteMany(ctx, "Users", filter.New().Add("Rank>=", 0)))
	assert.Empty(t, api.tables["gs-Users"])
	assert.ErrorIs(t, s.DeleteMany(ctx, "Users", nil), filter.ErrEmptyFilter)
}

func TestStore_NotOpen(t *testing.T) {
	s := New(nil)
	_, err := s.Count(context.Background(), "Users", nil)
	assert.ErrorIs(t, err, types.ErrNotOpen)
}

func TestStore_OpenFailure(t *testing.T) {
	s := New(nil, WithClientFunc(func(ctx context.Context, attrs types.Attributes) (API, error) {
		return nil, errors.New("no credentials")
	}))
	assert.ErrorIs(t, s.Open(context.Background(), nil), types.ErrConnect)
}

func TestExpression_Condition(t *testing.T) {
	tests := []struct {
		name   string
		expr   *filter.Expr
		want   string
		values int
	}{
		{"equality", filter.New().Add("Status", "Active"), "(#n0 = :v0)", 1},
		{"operators", filter.New().Add("Age>", 1).Add("|Age<=", 9).Add("Name!", "x"), "(#n0 > :v0 OR #n0 <= :v1 AND #n1 <> :v2)", 3},
		{"like", filter.New().Add("Name*", "an"), "(contains(#n0, :v0))", 1},
		{"is null", filter.New().Add("Email", nil), "((attribute_not_exists(#n0) OR attribute_type(#n0, :v0)))", 1},
		{"is not null", filter.New().Add("Email!", nil), "((attribute_exists(#n0) AND NOT attribute_type(#n0, :v0)))", 1},
		{"group", filter.New().Add("A", 1).Add("|G", filter.New().Add("A", 2).Add("B", 3)), "(#n0 = :v0 OR (#n0 = :v1 AND #n1 = :v2))", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newExpression()
			got, err := e.condition(tt.expr, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, e.Values(), tt.values)
		})
	}

	_, err := newExpression().condition(filter.New(), 0)
	assert.ErrorIs(t, err, filter.ErrEmptyFilter)
}
