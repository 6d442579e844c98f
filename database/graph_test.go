package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tricount/bagel"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEdgeList = `# triangle plus a tail
1	2
2 3
3	1

3 4
`

func TestParseInputGraph(t *testing.T) {
	graph, err := ParseInputGraph(strings.NewReader(sampleEdgeList))
	require.NoError(t, err)

	assert.Equal(t, Graph{
		1: {2, 3},
		2: {1, 3},
		3: {2, 1, 4},
		4: {3},
	}, graph)
}

func TestParseInputGraphBadLine(t *testing.T) {
	_, err := ParseInputGraph(strings.NewReader("1 2\n3\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadEdge))
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParseInputGraph(strings.NewReader("1 x\n"))
	assert.True(t, errors.Is(err, ErrBadEdge))
}

func TestGraphToVertices(t *testing.T) {
	vertices := GraphToVertices(Graph{7: {1}, 1: {7}})
	require.Len(t, vertices, 2)
	assert.Equal(t, uint64(1), vertices[0].ID)
	assert.Equal(t, uint64(7), vertices[1].ID)
	assert.NotZero(t, vertices[0].Hash)

	bagelVertices := BagelVertices(vertices)
	require.Len(t, bagelVertices, 2)
	assert.Equal(t, []uint64{7}, bagelVertices[0].Edges)
	assert.True(t, bagelVertices[0].IsActive())
}

func TestParsedGraphMatchesEdgeVertices(t *testing.T) {
	graph, err := ParseInputGraph(strings.NewReader(sampleEdgeList))
	require.NoError(t, err)

	edges := [][2]uint64{{1, 2}, {2, 3}, {3, 1}, {3, 4}}
	assert.Equal(t, bagel.VerticesFromEdges(edges), BagelVertices(GraphToVertices(graph)))
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleEdgeList), 0644))

	vertices, err := FileSource{Path: path}.LoadVertices(context.Background())
	require.NoError(t, err)
	require.Len(t, vertices, 4)
	assert.Equal(t, []uint64{2, 1, 4}, vertices[2].Edges)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing")}.LoadVertices(context.Background())
	assert.Error(t, err)
}

func TestNumBatches(t *testing.T) {
	assert.Equal(t, 0, numBatches(0, 25))
	assert.Equal(t, 1, numBatches(25, 25))
	assert.Equal(t, 2, numBatches(26, 25))
}
