// Package dynamostore implements the storage connector on Amazon DynamoDB.
//
// Each record group is a table named table_prefix + group whose hash key is
// the group's ID field (string). Filters become condition expressions
// evaluated server side by Scan; ordering, offset and limit are applied
// client side after the scan completes.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

// ConnectorName is the configuration tag for this connector.
const ConnectorName = "DynamoDB"

// Connection attributes understood by Open.
const (
	AttrRegion      = "region"
	AttrEndpoint    = "endpoint"
	AttrProfile     = "profile"
	AttrTablePrefix = "table_prefix"
)

// API is the subset of *dynamodb.Client the store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// ClientFunc builds an API client from connection attributes.
type ClientFunc func(ctx context.Context, attrs types.Attributes) (API, error)

// Store is safe for concurrent use.
type Store struct {
	logger    *slog.Logger
	newClient ClientFunc

	mu     sync.RWMutex
	client API
	prefix string
	keys   map[string]string
}

// Option configures a Store.
type Option func(*Store)

// WithClientFunc replaces the AWS SDK client constructor.
func WithClientFunc(f ClientFunc) Option {
	return func(s *Store) {
		s.newClient = f
	}
}

// New returns an unopened store.
func New(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{logger: logger, newClient: defaultClient}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Factory adapts New to storage.Factory.
func Factory(logger *slog.Logger) storage.Connector {
	return New(logger)
}

// defaultClient loads the shared AWS configuration, honouring region,
// profile and an endpoint override (DynamoDB Local, LocalStack).
func defaultClient(ctx context.Context, attrs types.Attributes) (API, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := attrs[AttrRegion]; region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile := attrs[AttrProfile]; profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	endpoint := attrs[AttrEndpoint]
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (s *Store) Open(ctx context.Context, attrs types.Attributes) error {
	client, err := s.newClient(ctx, attrs)
	if err != nil {
		return fmt.Errorf("%w: load AWS configuration: %v", types.ErrConnect, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
	s.prefix = attrs[AttrTablePrefix]
	s.keys = make(map[string]string)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.keys = nil
	return nil
}

func (s *Store) handle(group string) (API, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, "", types.ErrNotOpen
	}
	return s.client, s.prefix + group, nil
}

func key(idField, id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{idField: &ddbtypes.AttributeValueMemberS{Value: id}}
}

func (s *Store) Pull(ctx context.Context, group, idField, id string, fields []string) (types.Record, error) {
	client, table, err := s.handle(group)
	if err != nil {
		return nil, err
	}

	in := &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key(idField, id),
		ConsistentRead: aws.Bool(true),
	}
	if len(fields) > 0 {
		e := newExpression()
		in.ProjectionExpression = aws.String(e.projection(fields))
		in.ExpressionAttributeNames = e.Names()
	}

	out, err := client.GetItem(ctx, in)
	if err != nil {
		return nil, s.failed(types.ErrQuery, "GetItem", table, err)
	}
	if len(out.Item) == 0 {
		return nil, types.ErrNotFound
	}
	rec, err := decode(out.Item)
	if err != nil {
		return nil, s.failed(types.ErrQuery, "GetItem", table, err)
	}
	return rec.Project(fields), nil
}

func (s *Store) Push(ctx context.Context, group, idField string, props types.Record) (string, error) {
	client, table, err := s.handle(group)
	if err != nil {
		return "", err
	}

	id := types.NewRecordID(group)
	item, err := encode(props, "PutItem")
	if err != nil {
		return "", err
	}
	item[idField] = &ddbtypes.AttributeValueMemberS{Value: id}

	e := newExpression()
	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(" + e.name(idField) + ")"),
		ExpressionAttributeNames: e.Names(),
	})
	if err != nil {
		return "", s.failed(types.ErrWrite, "PutItem", table, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, group, idField, id string, changed types.Record) error {
	client, table, err := s.handle(group)
	if err != nil {
		return err
	}

	e := newExpression()
	var sets []string
	for _, field := range changed.Fields() {
		if field == idField {
			continue
		}
		value, err := e.value(field, changed[field])
		if err != nil {
			return err
		}
		sets = append(sets, e.name(field)+" = "+value)
	}
	if len(sets) == 0 {
		return nil
	}

	_, err = client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       key(idField, id),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(" + e.name(idField) + ")"),
		ExpressionAttributeNames:  e.Names(),
		ExpressionAttributeValues: e.Values(),
	})
	if err != nil {
		var condErr *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return types.ErrNotFound
		}
		return s.failed(types.ErrWrite, "UpdateItem", table, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, group, idField, id string) error {
	client, table, err := s.handle(group)
	if err != nil {
		return err
	}

	e := newExpression()
	_, err = client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(table),
		Key:                      key(idField, id),
		ConditionExpression:      aws.String("attribute_exists(" + e.name(idField) + ")"),
		ExpressionAttributeNames: e.Names(),
	})
	if err != nil {
		var condErr *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return types.ErrNotFound
		}
		return s.failed(types.ErrWrite, "DeleteItem", table, err)
	}
	return nil
}

// DeleteMany scans for matching keys and deletes them one by one.
// It refuses an empty filter.
func (s *Store) DeleteMany(ctx context.Context, group string, where *filter.Expr) error {
	if where.IsEmpty() {
		return filter.ErrEmptyFilter
	}
	client, table, err := s.handle(group)
	if err != nil {
		return err
	}
	hashKey, err := s.hashKey(ctx, client, table)
	if err != nil {
		return err
	}

	items, err := s.scan(ctx, client, table, where, []string{hashKey})
	if err != nil {
		return err
	}
	for _, item := range items {
		_, err := client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(table),
			Key:       map[string]ddbtypes.AttributeValue{hashKey: item[hashKey]},
		})
		if err != nil {
			return s.failed(types.ErrWrite, "DeleteItem", table, err)
		}
	}
	return nil
}

func (s *Store) Count(ctx context.Context, group string, where *filter.Expr) (uint64, error) {
	client, table, err := s.handle(group)
	if err != nil {
		return 0, err
	}

	in, err := scanInput(table, where, nil)
	if err != nil {
		return 0, err
	}
	in.Select = ddbtypes.SelectCount

	var n uint64
	paginator := dynamodb.NewScanPaginator(client, in)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, s.failed(types.ErrQuery, "Scan", table, err)
		}
		n += uint64(page.Count)
	}
	return n, nil
}

func (s *Store) Search(ctx context.Context, group string, q storage.Query) ([]types.Record, error) {
	client, table, err := s.handle(group)
	if err != nil {
		return nil, err
	}

	// Order fields must be fetched even when not projected.
	var fetch []string
	if len(q.Fields) > 0 {
		seen := make(map[string]bool)
		for _, f := range append(append([]string{}, q.Fields...), q.Order.Fields()...) {
			if !seen[f] {
				seen[f] = true
				fetch = append(fetch, f)
			}
		}
	}

	items, err := s.scan(ctx, client, table, q.Filter, fetch)
	if err != nil {
		return nil, err
	}

	records := make([]types.Record, 0, len(items))
	for _, item := range items {
		rec, err := decode(item)
		if err != nil {
			return nil, s.failed(types.ErrQuery, "Scan", table, err)
		}
		records = append(records, rec)
	}
	filter.SortRecords(records, q.Order)

	if q.Offset >= len(records) {
		return []types.Record{}, nil
	}
	records = records[q.Offset:]
	if q.Limit > 0 && q.Limit < len(records) {
		records = records[:q.Limit]
	}
	for i, rec := range records {
		records[i] = rec.Project(q.Fields)
	}
	return records, nil
}

func (s *Store) FindOne(ctx context.Context, group string, q storage.Query) (types.Record, error) {
	return storage.FirstOf(ctx, s, group, q)
}

func scanInput(table string, where *filter.Expr, fields []string) (*dynamodb.ScanInput, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(table)}
	e := newExpression()

	if !where.IsEmpty() {
		cond, err := e.condition(where, 0)
		if err != nil {
			return nil, err
		}
		in.FilterExpression = aws.String(cond)
	}
	if len(fields) > 0 {
		in.ProjectionExpression = aws.String(e.projection(fields))
	}
	in.ExpressionAttributeNames = e.Names()
	in.ExpressionAttributeValues = e.Values()
	return in, nil
}

func (s *Store) scan(ctx context.Context, client API, table string, where *filter.Expr, fields []string) ([]map[string]ddbtypes.AttributeValue, error) {
	in, err := scanInput(table, where, fields)
	if err != nil {
		return nil, err
	}

	var items []map[string]ddbtypes.AttributeValue
	paginator := dynamodb.NewScanPaginator(client, in)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.failed(types.ErrQuery, "Scan", table, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// hashKey returns the table's hash key attribute, cached per table.
func (s *Store) hashKey(ctx context.Context, client API, table string) (string, error) {
	s.mu.RLock()
	k, ok := s.keys[table]
	s.mu.RUnlock()
	if ok {
		return k, nil
	}

	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err != nil {
		return "", s.failed(types.ErrQuery, "DescribeTable", table, err)
	}
	if out.Table == nil {
		return "", fmt.Errorf("%w: table %s not described", types.ErrQuery, table)
	}
	for _, el := range out.Table.KeySchema {
		if el.KeyType == ddbtypes.KeyTypeHash {
			k = aws.ToString(el.AttributeName)
		}
	}
	if k == "" {
		return "", fmt.Errorf("%w: table %s has no hash key", types.ErrQuery, table)
	}

	s.mu.Lock()
	if s.keys != nil {
		s.keys[table] = k
	}
	s.mu.Unlock()
	return k, nil
}

// failed logs a request failure and wraps it for the caller.
func (s *Store) failed(kind error, op, table string, err error) error {
	s.logger.Error("dynamodb request failed", "op", op, "table", table, "error", err)
	return &types.StatementError{Kind: kind, Statement: op + " " + table, Err: err}
}

// encode marshals every field, reporting the first one that cannot be stored.
func encode(props types.Record, op string) (map[string]ddbtypes.AttributeValue, error) {
	item := make(map[string]ddbtypes.AttributeValue, len(props)+1)
	for k, v := range props {
		av, err := attributevalue.Marshal(v)
		if err != nil || av == nil {
			return nil, &types.BindError{Name: k, Statement: op, Value: v}
		}
		item[k] = av
	}
	return item, nil
}

// decode unmarshals an item, keeping integral numbers as int64.
func decode(item map[string]ddbtypes.AttributeValue) (types.Record, error) {
	var raw map[string]any
	err := attributevalue.UnmarshalMapWithOptions(item, &raw, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, err
	}

	rec := make(types.Record, len(raw))
	for k, v := range raw {
		rec[k] = number(v)
	}
	return rec, nil
}

func number(v any) any {
	n, ok := v.(attributevalue.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
