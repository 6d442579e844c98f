package database

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"tricount/bagel"
	"tricount/util"

	"github.com/pkg/errors"
)

const MAXIMUM_ITEMS_PER_BATCH = 25

var (
	ErrBadEdge        = errors.New("bad edge line")
	ErrVertexNotFound = errors.New("vertex not found")
	ErrUnknownSource  = errors.New("unknown graph source")
	ErrUnknownDriver  = errors.New("unknown sql driver")
)

// Graph is an adjacency list keyed by vertex id.
type Graph map[uint64][]uint64

type Vertex struct {
	ID    uint64
	Edges []uint64
	Hash  uint64
}

// GraphSource loads the vertices of a stored graph.
type GraphSource interface {
	LoadVertices(ctx context.Context) ([]Vertex, error)
}

// ParseInputGraph reads an edge list: one "src dest" pair per line,
// separated by tabs or spaces; lines starting with # are comments. Every
// edge is added in both directions. Duplicate edges and self-loops are
// kept as they appear.
func ParseInputGraph(r io.Reader) (Graph, error) {
	graph := make(Graph)
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		edge := strings.Fields(line)
		if len(edge) < 2 {
			return nil, errors.Wrapf(ErrBadEdge, "line %d: %q", lineNum, line)
		}
		src, err := strconv.ParseUint(edge[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrBadEdge, "line %d: %v", lineNum, err)
		}
		dest, err := strconv.ParseUint(edge[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrBadEdge, "line %d: %v", lineNum, err)
		}

		bagel.AddEdges(graph, [2]uint64{src, dest})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	log.Printf("ParseInputGraph: parsed %v nodes from %v lines\n", len(graph), lineNum)
	return graph, nil
}

func ReadInputGraph(filePath string) (Graph, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseInputGraph(file)
}

// GraphToVertices lists the vertices of graph in id order with their
// partition hash.
func GraphToVertices(graph Graph) []Vertex {
	ids := bagel.SortedIds(graph)
	vertices := make([]Vertex, len(ids))
	for idx, vertexId := range ids {
		vertices[idx] = Vertex{
			ID:    vertexId,
			Edges: graph[vertexId],
			Hash:  util.HashId(vertexId),
		}
	}
	return vertices
}

// BagelVertices converts stored vertices into job input.
func BagelVertices(vertices []Vertex) []*bagel.Vertex {
	result := make([]*bagel.Vertex, len(vertices))
	for idx, v := range vertices {
		result[idx] = bagel.NewVertex(v.ID, v.Edges)
	}
	return result
}

// FileSource reads an edge list file on every load.
type FileSource struct {
	Path string
}

func (s FileSource) LoadVertices(ctx context.Context) ([]Vertex, error) {
	graph, err := ReadInputGraph(s.Path)
	if err != nil {
		return nil, err
	}
	return GraphToVertices(graph), nil
}

// numBatches splits n items into batches of at most size items.
func numBatches(n int, size int) int {
	return (n + size - 1) / size
}
