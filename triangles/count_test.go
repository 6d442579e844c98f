package triangles

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"tricount/bagel"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workerCounts = []uint32{1, 2, 3}

func countEdges(t *testing.T, numWorkers uint32, edges [][2]uint64) Result {
	t.Helper()
	result, err := Count(
		context.Background(),
		bagel.JobConfig{NumWorkers: numWorkers, MaxSuperSteps: 10},
		true,
		bagel.VerticesFromEdges(edges),
	)
	require.NoError(t, err)
	return result
}

func TestCountScenarios(t *testing.T) {
	tests := []struct {
		name   string
		edges  [][2]uint64
		total  int64
		values map[uint64]int64
	}{
		{
			name:   "triangle",
			edges:  [][2]uint64{{1, 2}, {2, 3}, {1, 3}},
			total:  1,
			values: map[uint64]int64{1: 1, 2: 1, 3: 1},
		},
		{
			name:   "path",
			edges:  [][2]uint64{{1, 2}, {2, 3}},
			total:  0,
			values: map[uint64]int64{1: 0, 2: 0, 3: 0},
		},
		{
			name:   "two disjoint triangles",
			edges:  [][2]uint64{{1, 2}, {2, 3}, {1, 3}, {4, 5}, {5, 6}, {4, 6}},
			total:  2,
			values: map[uint64]int64{1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1},
		},
		{
			name:   "4-clique",
			edges:  [][2]uint64{{1, 2}, {1, 3}, {1, 4}, {2, 3}, {2, 4}, {3, 4}},
			total:  4,
			values: map[uint64]int64{1: 3, 2: 3, 3: 3, 4: 3},
		},
		{
			name:   "duplicate edge and self-loop",
			edges:  [][2]uint64{{1, 2}, {1, 2}, {2, 1}, {1, 1}, {2, 3}, {1, 3}},
			total:  1,
			values: map[uint64]int64{1: 1, 2: 1, 3: 1},
		},
	}

	for _, test := range tests {
		for _, numWorkers := range workerCounts {
			t.Run(fmt.Sprintf("%s/%d workers", test.name, numWorkers), func(t *testing.T) {
				result := countEdges(t, numWorkers, test.edges)
				assert.Equal(t, test.total, result.Total)
				assert.Equal(t, test.values, result.Values)
				assert.Equal(t, uint64(5), result.SuperSteps)
			})
		}
	}
}

func TestCountIgnoresDuplicatesAndSelfLoops(t *testing.T) {
	clean := [][2]uint64{{1, 2}, {1, 3}, {2, 3}, {3, 4}, {2, 4}, {4, 5}}
	noisy := append([][2]uint64{{1, 1}, {4, 4}, {2, 3}, {3, 2}, {4, 5}}, clean...)

	expected := countEdges(t, 2, clean)
	got := countEdges(t, 2, noisy)
	assert.Equal(t, expected.Total, got.Total)
	assert.Equal(t, expected.Values, got.Values)
}

func TestCountMatchesBruteForceOnRandomGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(416))
	for round := 0; round < 10; round++ {
		numVertices := 5 + rng.Intn(25)
		density := 0.1 + rng.Float64()*0.5
		var edges [][2]uint64
		for i := 0; i < numVertices; i++ {
			for j := i + 1; j < numVertices; j++ {
				if rng.Float64() < density {
					edges = append(edges, [2]uint64{uint64(i), uint64(j)})
				}
			}
		}

		total, values := bruteForce(edges)
		result := countEdges(t, uint32(1+round%4), edges)
		assert.Equal(t, total, result.Total, "round %d", round)
		for id, expected := range values {
			assert.Equal(t, expected, result.Values[id], "round %d vertex %d", round, id)
		}

		var sum int64
		for _, value := range result.Values {
			sum += value
		}
		// every triangle is reported by each of its three vertices
		assert.Equal(t, 3*total, sum, "round %d", round)
	}
}

func TestCountTotalIsAggregateOverThree(t *testing.T) {
	// K5: ten triangles, each vertex in six of them
	var edges [][2]uint64
	for i := uint64(1); i <= 5; i++ {
		for j := i + 1; j <= 5; j++ {
			edges = append(edges, [2]uint64{i, j})
		}
	}
	for _, numWorkers := range workerCounts {
		coord, err := NewCoord(bagel.JobConfig{NumWorkers: numWorkers, MaxSuperSteps: 10}, true)
		require.NoError(t, err)
		coord.LoadVertices(bagel.VerticesFromEdges(edges))

		result, err := Run(context.Background(), coord, true)
		require.NoError(t, err)
		aggregate, ok := coord.AggregatedValue(AggregatorName)
		require.True(t, ok)
		assert.Equal(t, int64(30), aggregate)
		assert.Equal(t, int64(10), result.Total)
		assert.Equal(t, map[uint64]int64{1: 6, 2: 6, 3: 6, 4: 6, 5: 6}, result.Values)
	}
}

func TestResultOfChecksAggregateParity(t *testing.T) {
	jobResult := bagel.JobResult{
		SuperSteps: 5,
		Aggregates: map[string]int64{AggregatorName: 7},
		Values:     map[uint64]int64{1: 7},
	}

	_, err := ResultOf(jobResult, true)
	assert.True(t, errors.Is(err, ErrProtocolInvariantViolation), "got %v", err)

	result, err := ResultOf(jobResult, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)

	jobResult.Aggregates[AggregatorName] = 9
	result, err = ResultOf(jobResult, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
}

func TestCountTallyIsEvenOnSymmetricInput(t *testing.T) {
	edges := [][2]uint64{{1, 2}, {1, 3}, {1, 4}, {2, 3}, {3, 4}, {4, 5}, {5, 1}}
	program := NewProgram(true)
	var raws []int64
	coord := bagel.NewCoord(
		bagel.JobConfig{NumWorkers: 1, MaxSuperSteps: 10},
		bagel.ComputeFunc(func(v *bagel.Vertex, messages []bagel.Message) error {
			if PhaseOf(v.SuperStep) == Tally {
				var raw int64
				for _, msg := range messages {
					raw += int64(len(msg.Payload))
				}
				raws = append(raws, raw)
			}
			return program.Compute(v, messages)
		}),
	)
	require.NoError(t, coord.RegisterAggregator(AggregatorName, bagel.LongSumAggregator{}, true))
	coord.LoadVertices(bagel.VerticesFromEdges(edges))

	_, err := Run(context.Background(), coord, true)
	require.NoError(t, err)
	require.Len(t, raws, 5)
	for _, raw := range raws {
		assert.Zero(t, raw%2)
	}
}

func TestCountAsymmetricInput(t *testing.T) {
	// 3 lists 1 but not 2, while 2 lists 3
	vertices := []*bagel.Vertex{
		bagel.NewVertex(1, []uint64{2, 3}),
		bagel.NewVertex(2, []uint64{1, 3}),
		bagel.NewVertex(3, []uint64{1}),
	}

	_, err := Count(context.Background(), bagel.JobConfig{NumWorkers: 2, MaxSuperSteps: 10}, true, vertices)
	assert.True(t, errors.Is(err, ErrProtocolInvariantViolation), "got %v", err)

	vertices = []*bagel.Vertex{
		bagel.NewVertex(1, []uint64{2, 3}),
		bagel.NewVertex(2, []uint64{1, 3}),
		bagel.NewVertex(3, []uint64{1}),
	}
	result, err := Count(context.Background(), bagel.JobConfig{NumWorkers: 2, MaxSuperSteps: 10}, false, vertices)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total)
}

func TestCountVerticesStayHaltedAfterTally(t *testing.T) {
	edges := [][2]uint64{{1, 2}, {2, 3}, {1, 3}, {3, 4}}
	var progress []bagel.Progress
	config := bagel.JobConfig{
		NumWorkers:    2,
		MaxSuperSteps: 10,
		OnSuperStep: func(p bagel.Progress) {
			progress = append(progress, p)
		},
	}

	result, err := Count(context.Background(), config, true, bagel.VerticesFromEdges(edges))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)

	require.Len(t, progress, 5)
	for _, p := range progress[:3] {
		assert.NotZero(t, p.MessagesSent, "superstep %d", p.SuperStepNum)
	}
	assert.Zero(t, progress[3].MessagesSent)
	assert.Equal(t, int64(3), progress[3].Aggregates[AggregatorName])
	assert.Equal(t, int64(1), TotalOf(progress[3].Aggregates[AggregatorName]))
	assert.Zero(t, progress[4].MessagesSent)
	assert.Zero(t, progress[4].ActiveVertices)
	assert.Equal(t, int64(1), TotalOf(progress[4].Aggregates[AggregatorName]))
}

func TestCountResumesFromCheckpoint(t *testing.T) {
	edges := [][2]uint64{{1, 2}, {1, 3}, {1, 4}, {2, 3}, {2, 4}, {3, 4}, {4, 5}, {5, 6}, {6, 4}}
	store, err := bagel.OpenCheckpointStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	defer store.Close()

	failure := errors.New("worker crashed")
	program := NewProgram(true)
	config := bagel.JobConfig{
		NumWorkers:              2,
		MaxSuperSteps:           10,
		StepsBetweenCheckpoints: 2,
		Checkpoints:             store,
	}
	crashing := bagel.NewCoord(config, bagel.ComputeFunc(
		func(v *bagel.Vertex, messages []bagel.Message) error {
			if PhaseOf(v.SuperStep) == Tally {
				return failure
			}
			return program.Compute(v, messages)
		},
	))
	require.NoError(t, crashing.RegisterAggregator(AggregatorName, bagel.LongSumAggregator{}, true))
	crashing.LoadVertices(bagel.VerticesFromEdges(edges))
	_, err = crashing.Compute(context.Background())
	require.True(t, errors.Is(err, failure), "got %v", err)

	config.NumWorkers = 3
	coord, err := NewCoord(config, true)
	require.NoError(t, err)
	restored, err := coord.RestoreLatestCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), restored)

	result, err := Run(context.Background(), coord, true)
	require.NoError(t, err)
	expected := countEdges(t, 1, edges)
	assert.Equal(t, int64(5), result.Total)
	assert.Equal(t, expected.Values, result.Values)
}

func bruteForce(edges [][2]uint64) (int64, map[uint64]int64) {
	adjacency := make(map[uint64]map[uint64]bool)
	for _, edge := range edges {
		if edge[0] == edge[1] {
			continue
		}
		for _, pair := range [][2]uint64{edge, {edge[1], edge[0]}} {
			if adjacency[pair[0]] == nil {
				adjacency[pair[0]] = make(map[uint64]bool)
			}
			adjacency[pair[0]][pair[1]] = true
		}
	}

	var total int64
	values := make(map[uint64]int64)
	for a := range adjacency {
		for b := range adjacency[a] {
			for c := range adjacency[b] {
				if a < b && b < c && adjacency[a][c] {
					total++
					values[a]++
					values[b]++
					values[c]++
				}
			}
		}
	}
	return total, values
}
