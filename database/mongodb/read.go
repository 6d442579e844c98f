package mongodb

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"tricount/database"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DBVertex struct {
	ID    string
	Edges []string
	Hash  string
}

func (s *Store) GetVertexById(ctx context.Context, vertexId uint64) (database.Vertex, error) {
	var dbVertex DBVertex
	err := s.collection.FindOne(
		ctx, bson.M{"ID": strconv.FormatUint(vertexId, 10)},
	).Decode(&dbVertex)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return database.Vertex{}, errors.Wrapf(database.ErrVertexNotFound, "%d", vertexId)
	}
	if err != nil {
		return database.Vertex{}, errors.Wrap(err, "error decoding vertex")
	}
	return parseDBVertex(dbVertex)
}

func parseDBVertex(dbVertex DBVertex) (database.Vertex, error) {
	id, err := strconv.ParseUint(dbVertex.ID, 10, 64)
	if err != nil {
		return database.Vertex{}, errors.Wrapf(err, "vertex id %q", dbVertex.ID)
	}
	edges := make([]uint64, len(dbVertex.Edges))
	for idx, edge := range dbVertex.Edges {
		if edges[idx], err = strconv.ParseUint(edge, 10, 64); err != nil {
			return database.Vertex{}, errors.Wrapf(err, "edge of vertex %d", id)
		}
	}
	hash, err := strconv.ParseUint(dbVertex.Hash, 10, 64)
	if err != nil {
		return database.Vertex{}, errors.Wrapf(err, "hash of vertex %d", id)
	}

	return database.Vertex{
		ID:    id,
		Edges: edges,
		Hash:  hash,
	}, nil
}

func parseDBVertices(dbVertices []DBVertex) ([]database.Vertex, error) {
	vertices := make([]database.Vertex, 0, len(dbVertices))
	for _, dbVertex := range dbVertices {
		vertex, err := parseDBVertex(dbVertex)
		if err != nil {
			return nil, err
		}
		vertices = append(vertices, vertex)
	}
	return vertices, nil
}

func (s *Store) find(ctx context.Context, filter interface{}) ([]database.Vertex, error) {
	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "error fetching vertices")
	}
	var dbVertices []DBVertex
	if err = cursor.All(ctx, &dbVertices); err != nil {
		return nil, errors.Wrap(err, "error reading vertices")
	}
	return parseDBVertices(dbVertices)
}

func (s *Store) LoadVertices(ctx context.Context) ([]database.Vertex, error) {
	return s.find(ctx, bson.M{})
}

// GetPartitionForWorkerX returns the vertices hashed to workerId out of
// numPartitions, tagging the collection with the partition first if needed.
func (s *Store) GetPartitionForWorkerX(
	ctx context.Context, numPartitions int, workerId int,
) ([]database.Vertex, error) {
	cached, err := s.isPartitionCached(ctx, numPartitions)
	if err != nil {
		return nil, err
	}
	if !cached {
		log.Printf("GetPartitionForWorkerX: partition not cached: %v\n", numPartitions)
		if err := s.PartitionGraph(ctx, numPartitions); err != nil {
			return nil, err
		}
	}

	vertices, err := s.find(ctx, bson.M{
		getPartitionName(numPartitions): strconv.Itoa(workerId),
	})
	if err != nil {
		return nil, err
	}
	log.Printf("GetPartitionForWorkerX: found %v vertices for partition %v\n", len(vertices), workerId)
	return vertices, nil
}

// PartitionGraph sets a P<numPartitions> field on every vertex holding
// hash % numPartitions.
func (s *Store) PartitionGraph(ctx context.Context, numPartitions int) error {
	vertices, err := s.LoadVertices(ctx)
	if err != nil {
		return err
	}

	partitionName := getPartitionName(numPartitions)
	for _, vertex := range vertices {
		partition := vertex.Hash % uint64(numPartitions)
		update := bson.D{{Key: "$set", Value: bson.M{
			partitionName: strconv.FormatUint(partition, 10),
		}}}
		if _, err = s.collection.UpdateOne(
			ctx, bson.M{"ID": strconv.FormatUint(vertex.ID, 10)}, update,
		); err != nil {
			return errors.Wrapf(err, "failed to update vertex %v to partition %v", vertex.ID, partition)
		}
	}
	return nil
}

func getPartitionName(numPartitions int) string {
	return fmt.Sprintf("P%d", numPartitions)
}

func (s *Store) isPartitionCached(ctx context.Context, numPartitions int) (bool, error) {
	partitionName := getPartitionName(numPartitions)

	cursor, err := s.collection.Find(
		ctx, bson.D{{Key: partitionName, Value: bson.D{{Key: "$exists", Value: true}}}},
		options.Find().SetLimit(1),
	)
	if err != nil {
		return false, errors.Wrapf(err, "Failed to verify partition cache for %v", numPartitions)
	}

	var verticesInPartition []bson.M
	if err = cursor.All(ctx, &verticesInPartition); err != nil {
		return false, err
	}
	return len(verticesInPartition) != 0, nil
}
