package mongodb

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"tricount/database"
	"tricount/util"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DATABASE_NAME = "bagel"

var ErrMissingURI = errors.New("no mongodb uri configured")

// Store is a graph kept as one document per vertex in a collection of the
// bagel database.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// GetDatabaseClient connects to uri, or to the uri named by BAGEL_MONGO_URI
// in the environment or a .env file when uri is empty.
func GetDatabaseClient(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("GetDatabaseClient: error loading env file: %v\n", err)
		}
		uri = os.Getenv(util.ENV_MONGO_URI)
	}
	if uri == "" {
		return nil, ErrMissingURI
	}

	serverAPIOptions := options.ServerAPI(options.ServerAPIVersion1)
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(serverAPIOptions)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongodb")
	}
	log.Printf("GetDatabaseClient: connected to mongodb\n")
	return client, nil
}

func NewStore(client *mongo.Client, tableName string) *Store {
	return &Store{
		client:     client,
		collection: client.Database(DATABASE_NAME).Collection(tableName),
	}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func createBatches(vertices []database.Vertex) [][]interface{} {
	var batches [][]interface{}
	for start := 0; start < len(vertices); start += database.MAXIMUM_ITEMS_PER_BATCH {
		end := start + database.MAXIMUM_ITEMS_PER_BATCH
		if end > len(vertices) {
			end = len(vertices)
		}
		batch := make([]interface{}, 0, end-start)
		for _, vertex := range vertices[start:end] {
			batch = append(batch, vertexDocument(vertex))
		}
		batches = append(batches, batch)
	}
	return batches
}

func vertexDocument(vertex database.Vertex) bson.D {
	return bson.D{
		{Key: "ID", Value: strconv.FormatUint(vertex.ID, 10)},
		{Key: "Edges", Value: formatEdges(vertex.Edges)},
		{Key: "Hash", Value: strconv.FormatUint(vertex.Hash, 10)},
	}
}

func formatEdges(edges []uint64) []string {
	formattedEdges := make([]string, len(edges))
	for idx, edge := range edges {
		formattedEdges[idx] = strconv.FormatUint(edge, 10)
	}
	return formattedEdges
}

func (s *Store) BatchInsertVertices(ctx context.Context, vertices []database.Vertex) error {
	batches := createBatches(vertices)
	for b, batch := range batches {
		if _, err := s.collection.InsertMany(ctx, batch); err != nil {
			return errors.Wrapf(err, "Failed to upload batch %v", b)
		}
		log.Printf("BatchInsertVertices: uploaded batch %v/%v\n", b+1, len(batches))
	}
	log.Printf("BatchInsertVertices: %v batches added to %v", len(batches), s.collection.Name())
	return nil
}

// AddGraph replaces the collection contents with graph.
func (s *Store) AddGraph(ctx context.Context, graph database.Graph) error {
	if err := s.collection.Drop(ctx); err != nil {
		return errors.Wrapf(err, "drop %s", s.collection.Name())
	}
	return s.BatchInsertVertices(ctx, database.GraphToVertices(graph))
}
