package entitycache

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

type stubRedisClient struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
	setErr error
}

func newStubRedisClient() *stubRedisClient {
	return &stubRedisClient{values: make(map[string][]byte)}
}

func (c *stubRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	switch v, ok := c.values[key]; {
	case c.getErr != nil:
		cmd.SetErr(c.getErr)
	case !ok:
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(string(v))
	}
	return cmd
}

func (c *stubRedisClient) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if c.setErr != nil {
		cmd.SetErr(c.setErr)
		return cmd
	}
	c.values[key] = cloneBytes(value.([]byte))
	cmd.SetVal("OK")
	return cmd
}

type stubNATSKeyValue struct {
	mu      sync.Mutex
	bucket  string
	rev     uint64
	entries map[string]*stubNATSKeyValueEntry
	getErr  error
	putErr  error
}

func newStubNATSKeyValue(bucket string) *stubNATSKeyValue {
	return &stubNATSKeyValue{bucket: bucket, entries: make(map[string]*stubNATSKeyValueEntry)}
}

func (s *stubNATSKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	return entry.clone(), nil
}

func (s *stubNATSKeyValue) Put(key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return 0, s.putErr
	}
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{
		bucket:   s.bucket,
		key:      key,
		value:    cloneBytes(value),
		revision: s.rev,
		created:  time.Now(),
		op:       nats.KeyValuePut,
	}
	return s.rev, nil
}

// tombstone records a delete marker the way JetStream does for removed keys.
func (s *stubNATSKeyValue) tombstone(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{bucket: s.bucket, key: key, revision: s.rev, op: nats.KeyValueDelete}
}

type stubNATSKeyValueEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
	delta    uint64
	op       nats.KeyValueOp
}

func (e *stubNATSKeyValueEntry) clone() *stubNATSKeyValueEntry {
	cp := *e
	cp.value = cloneBytes(e.value)
	return &cp
}

func (e *stubNATSKeyValueEntry) Bucket() string             { return e.bucket }
func (e *stubNATSKeyValueEntry) Key() string                { return e.key }
func (e *stubNATSKeyValueEntry) Value() []byte              { return cloneBytes(e.value) }
func (e *stubNATSKeyValueEntry) Revision() uint64           { return e.revision }
func (e *stubNATSKeyValueEntry) Created() time.Time         { return e.created }
func (e *stubNATSKeyValueEntry) Delta() uint64              { return e.delta }
func (e *stubNATSKeyValueEntry) Operation() nats.KeyValueOp { return e.op }

type dynStub struct {
	mu          sync.Mutex
	items       map[string]map[string]types.AttributeValue
	tables      map[string]bool
	describeErr error
	createErr   error
	getErr      error
	creates     int
}

func newDynStub() *dynStub {
	return &dynStub{
		items:  map[string]map[string]types.AttributeValue{},
		tables: map[string]bool{},
	}
}

func (d *dynStub) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.getErr != nil {
		return nil, d.getErr
	}
	key := in.Key["k"].(*types.AttributeValueMemberS).Value
	item, ok := d.items[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (d *dynStub) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := in.Item["k"].(*types.AttributeValueMemberS).Value
	d.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (d *dynStub) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.creates++
	if d.createErr != nil {
		return nil, d.createErr
	}
	if d.tables[*in.TableName] {
		return nil, &types.ResourceInUseException{}
	}
	d.tables[*in.TableName] = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (d *dynStub) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.describeErr != nil {
		return nil, d.describeErr
	}
	if !d.tables[*in.TableName] {
		return nil, &types.ResourceNotFoundException{}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}
