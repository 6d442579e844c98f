package database

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

const DEFAULT_REGION = "us-east-2"

// DynamoAPI is the part of the DynamoDB client the store uses.
type DynamoAPI interface {
	dynamodb.ScanAPIClient
	dynamodb.DescribeTableAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoStore keeps one item per vertex keyed by ID.
type DynamoStore struct {
	svc        DynamoAPI
	tableName  string
	newBackOff func() backoff.BackOff
}

type dynamoVertex struct {
	ID    uint64   `dynamodbav:"ID"`
	Edges []uint64 `dynamodbav:"Edges"`
	Hash  uint64   `dynamodbav:"Hash"`
}

func GetDynamoClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	if region == "" {
		region = DEFAULT_REGION
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "unable to load SDK config")
	}
	return dynamodb.NewFromConfig(cfg), nil
}

func NewDynamoStore(svc DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		svc:       svc,
		tableName: tableName,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8)
		},
	}
}

func (s *DynamoStore) CreateTable(ctx context.Context) error {
	_, err := s.svc.CreateTable(ctx, &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("ID"),
				AttributeType: types.ScalarAttributeTypeN,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("ID"),
				KeyType:       types.KeyTypeHash,
			},
		},
		TableName:   aws.String(s.tableName),
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return errors.Wrapf(err, "create table %s", s.tableName)
	}
	log.Printf("CreateTable: created %v\n", s.tableName)
	return s.waitForTable(ctx)
}

func (s *DynamoStore) waitForTable(ctx context.Context) error {
	w := dynamodb.NewTableExistsWaiter(s.svc)
	return w.Wait(ctx,
		&dynamodb.DescribeTableInput{
			TableName: aws.String(s.tableName),
		},
		2*time.Minute,
		func(o *dynamodb.TableExistsWaiterOptions) {
			o.MaxDelay = 5 * time.Second
			o.MinDelay = 5 * time.Second
		})
}

func (s *DynamoStore) AddGraph(ctx context.Context, graph Graph) error {
	return s.BatchInsertVertices(ctx, GraphToVertices(graph))
}

// BatchInsertVertices writes vertices in batches of 25, retrying the items
// DynamoDB reports as unprocessed.
func (s *DynamoStore) BatchInsertVertices(ctx context.Context, vertices []Vertex) error {
	batches, err := getBatches(vertices)
	if err != nil {
		return err
	}

	for b, batch := range batches {
		pending := map[string][]types.WriteRequest{s.tableName: batch}
		write := func() error {
			out, err := s.svc.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				return backoff.Permanent(err)
			}
			if len(out.UnprocessedItems) > 0 {
				pending = out.UnprocessedItems
				return errors.Errorf("%d unprocessed items", len(out.UnprocessedItems[s.tableName]))
			}
			return nil
		}
		if err := backoff.Retry(write, backoff.WithContext(s.newBackOff(), ctx)); err != nil {
			return errors.Wrapf(err, "Failed to upload batch %v", b)
		}
		log.Printf("BatchInsertVertices: uploaded batch %v/%v\n", b+1, len(batches))
	}

	log.Printf("BatchInsertVertices: %v batches added to %v", len(batches), s.tableName)
	return nil
}

func getBatches(vertices []Vertex) ([][]types.WriteRequest, error) {
	batches := make([][]types.WriteRequest, 0, numBatches(len(vertices), MAXIMUM_ITEMS_PER_BATCH))
	for start := 0; start < len(vertices); start += MAXIMUM_ITEMS_PER_BATCH {
		end := start + MAXIMUM_ITEMS_PER_BATCH
		if end > len(vertices) {
			end = len(vertices)
		}
		batch := make([]types.WriteRequest, 0, end-start)
		for _, vertex := range vertices[start:end] {
			request, err := marshalVertexWriteReq(vertex)
			if err != nil {
				return nil, err
			}
			batch = append(batch, request)
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

func marshalVertexWriteReq(vertex Vertex) (types.WriteRequest, error) {
	item, err := attributevalue.MarshalMap(dynamoVertex(vertex))
	if err != nil {
		return types.WriteRequest{}, errors.Wrapf(err, "marshal vertex %d", vertex.ID)
	}
	return types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}, nil
}

func (s *DynamoStore) GetVertexByID(ctx context.Context, vertexId uint64) (Vertex, error) {
	key, err := attributevalue.MarshalMap(map[string]uint64{"ID": vertexId})
	if err != nil {
		return Vertex{}, err
	}
	res, err := s.svc.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       key,
	})
	if err != nil {
		return Vertex{}, err
	}
	if len(res.Item) == 0 {
		return Vertex{}, errors.Wrapf(ErrVertexNotFound, "%d", vertexId)
	}

	var vertex dynamoVertex
	if err := attributevalue.UnmarshalMap(res.Item, &vertex); err != nil {
		return Vertex{}, err
	}
	return Vertex(vertex), nil
}

// LoadVertices scans the whole table.
func (s *DynamoStore) LoadVertices(ctx context.Context) ([]Vertex, error) {
	p := dynamodb.NewScanPaginator(s.svc, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	})

	var vertices []Vertex
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", s.tableName)
		}
		var page []dynamoVertex
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		for _, v := range page {
			vertices = append(vertices, Vertex(v))
		}
	}
	return vertices, nil
}
