package bagel

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// constants are used as QueryType for the queries
const (
	TRIANGLE_COUNT = "TriangleCount"
)

// Message represents a message sent from one vertex to another during
// a superstep. It is delivered at the start of SuperStepNum+1.
type Message struct {
	SuperStepNum   uint64
	SourceVertexId uint64
	DestVertexId   uint64
	Payload        []uint64
}

type ProgressSuperStepResult struct {
	SuperStepNum uint64
	WorkerId     uint32
	IsActive     bool
	MessagesSent uint64
	Partials     map[string]int64
}

// Progress is published by the coord once every superstep barrier completes.
type Progress struct {
	SuperStepNum   uint64
	ActiveVertices uint64
	MessagesSent   uint64
	Aggregates     map[string]int64
	IsCheckpoint   bool
}

type Query struct {
	ClientId  string
	QueryType string      // TriangleCount
	Graph     string      // name of a stored graph, empty when Edges is set
	Edges     [][2]uint64 // inline edge list
}

type QueryResult struct {
	Query      Query
	Total      int64
	Values     map[uint64]int64
	SuperSteps uint64
	Error      string
}

// WorkerVertices maps worker ids to the vertices they own
type WorkerVertices map[uint32][]uint64

// AddEdges adds every edge to graph in both directions. Duplicates and
// self-loops are kept.
func AddEdges(graph map[uint64][]uint64, edges ...[2]uint64) {
	for _, edge := range edges {
		src, dest := edge[0], edge[1]
		graph[src] = append(graph[src], dest)
		graph[dest] = append(graph[dest], src)
	}
}

// SortedIds lists the vertex ids of graph in increasing order.
func SortedIds(graph map[uint64][]uint64) []uint64 {
	ids := make([]uint64, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// VerticesFromAdjacency builds vertices from an adjacency map, in id order.
func VerticesFromAdjacency(graph map[uint64][]uint64) []*Vertex {
	ids := SortedIds(graph)
	vertices := make([]*Vertex, 0, len(ids))
	for _, id := range ids {
		vertices = append(vertices, NewVertex(id, graph[id]))
	}
	return vertices
}

// VerticesFromEdges symmetrises an undirected edge list into vertices.
func VerticesFromEdges(edges [][2]uint64) []*Vertex {
	graph := make(map[uint64][]uint64)
	AddEdges(graph, edges...)
	return VerticesFromAdjacency(graph)
}

func (q Query) ToStruct() (*structpb.Struct, error) {
	edges := make([]interface{}, len(q.Edges))
	for idx, edge := range q.Edges {
		edges[idx] = []interface{}{float64(edge[0]), float64(edge[1])}
	}
	return structpb.NewStruct(map[string]interface{}{
		"clientId":  q.ClientId,
		"queryType": q.QueryType,
		"graph":     q.Graph,
		"edges":     edges,
	})
}

func QueryFromStruct(s *structpb.Struct) (Query, error) {
	fields := s.GetFields()
	q := Query{
		ClientId:  fields["clientId"].GetStringValue(),
		QueryType: fields["queryType"].GetStringValue(),
		Graph:     fields["graph"].GetStringValue(),
	}
	for idx, value := range fields["edges"].GetListValue().GetValues() {
		pair := value.GetListValue().GetValues()
		if len(pair) != 2 {
			return Query{}, errors.Wrapf(ErrMalformedQuery, "edge %d has %d endpoints", idx, len(pair))
		}
		src, dest := pair[0].GetNumberValue(), pair[1].GetNumberValue()
		if src < 0 || dest < 0 {
			return Query{}, errors.Wrapf(ErrMalformedQuery, "edge %d has a negative endpoint", idx)
		}
		q.Edges = append(q.Edges, [2]uint64{uint64(src), uint64(dest)})
	}
	return q, nil
}

func (r QueryResult) ToStruct() (*structpb.Struct, error) {
	query, err := r.Query.ToStruct()
	if err != nil {
		return nil, err
	}
	values := make(map[string]interface{}, len(r.Values))
	for id, value := range r.Values {
		values[strconv.FormatUint(id, 10)] = float64(value)
	}
	result, err := structpb.NewStruct(map[string]interface{}{
		"total":      float64(r.Total),
		"values":     values,
		"superSteps": float64(r.SuperSteps),
		"error":      r.Error,
	})
	if err != nil {
		return nil, err
	}
	result.Fields["query"] = structpb.NewStructValue(query)
	return result, nil
}

func QueryResultFromStruct(s *structpb.Struct) (QueryResult, error) {
	fields := s.GetFields()
	var r QueryResult
	if query := fields["query"].GetStructValue(); query != nil {
		q, err := QueryFromStruct(query)
		if err != nil {
			return QueryResult{}, err
		}
		r.Query = q
	}
	r.Total = int64(fields["total"].GetNumberValue())
	r.SuperSteps = uint64(fields["superSteps"].GetNumberValue())
	r.Error = fields["error"].GetStringValue()
	r.Values = make(map[uint64]int64)
	for key, value := range fields["values"].GetStructValue().GetFields() {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return QueryResult{}, errors.Wrapf(ErrMalformedQuery, "vertex id %q", key)
		}
		r.Values[id] = int64(value.GetNumberValue())
	}
	return r, nil
}
