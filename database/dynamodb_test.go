package database

import (
	"context"
	"sort"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory keyed by the numeric ID attribute.
type fakeDynamo struct {
	items       map[uint64]map[string]types.AttributeValue
	writeCalls  int
	dropFirst   bool
	pageSize    int
	createCalls int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[uint64]map[string]types.AttributeValue{}, pageSize: 10}
}

func itemId(item map[string]types.AttributeValue) uint64 {
	n := item["ID"].(*types.AttributeValueMemberN)
	id, _ := strconv.ParseUint(n.Value, 10, 64)
	return id
}

func (f *fakeDynamo) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.writeCalls++
	out := &dynamodb.BatchWriteItemOutput{}
	for table, requests := range params.RequestItems {
		if len(requests) > MAXIMUM_ITEMS_PER_BATCH {
			return nil, errors.New("too many items in batch")
		}
		// the first call leaves its last item unprocessed
		if f.dropFirst && f.writeCalls == 1 {
			last := len(requests) - 1
			out.UnprocessedItems = map[string][]types.WriteRequest{table: requests[last:]}
			requests = requests[:last]
		}
		for _, request := range requests {
			f.items[itemId(request.PutRequest.Item)] = request.PutRequest.Item
		}
	}
	return out, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[itemId(params.Key)]}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	ids := make([]uint64, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	start := 0
	if params.ExclusiveStartKey != nil {
		last := itemId(params.ExclusiveStartKey)
		start = sort.Search(len(ids), func(i int) bool { return ids[i] > last })
	}
	end := start + f.pageSize
	if end > len(ids) {
		end = len(ids)
	}

	out := &dynamodb.ScanOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, f.items[id])
	}
	if end < len(ids) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"ID": f.items[ids[end-1]]["ID"]}
	}
	return out, nil
}

func (f *fakeDynamo) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.createCalls++
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableStatus: types.TableStatusActive},
	}, nil
}

func newTestDynamoStore(svc DynamoAPI) *DynamoStore {
	store := NewDynamoStore(svc, "graph")
	store.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return store
}

func TestDynamoStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	fake.dropFirst = true
	store := newTestDynamoStore(fake)

	graph := Graph{}
	for i := uint64(1); i <= 30; i++ {
		graph[i] = []uint64{i + 100}
	}
	require.NoError(t, store.AddGraph(ctx, graph))
	// two batches plus one retry of the unprocessed item
	assert.Equal(t, 3, fake.writeCalls)
	assert.Len(t, fake.items, 30)

	vertices, err := store.LoadVertices(ctx)
	require.NoError(t, err)
	assert.Equal(t, GraphToVertices(graph), vertices)

	v, err := store.GetVertexByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []uint64{107}, v.Edges)

	_, err = store.GetVertexByID(ctx, 700)
	assert.True(t, errors.Is(err, ErrVertexNotFound))
}

func TestDynamoCreateTable(t *testing.T) {
	fake := newFakeDynamo()
	require.NoError(t, newTestDynamoStore(fake).CreateTable(context.Background()))
	assert.Equal(t, 1, fake.createCalls)
}

func TestGetBatches(t *testing.T) {
	vertices := GraphToVertices(Graph{1: {2}, 2: {1}})
	batches, err := getBatches(append(vertices, make([]Vertex, 49)...))
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 25)
	assert.Len(t, batches[2], 1)

	item := batches[0][0].PutRequest.Item
	assert.Equal(t, "1", item["ID"].(*types.AttributeValueMemberN).Value)
}
