package bagel

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointStoreReplacesLaterCheckpoints(t *testing.T) {
	store, err := OpenCheckpointStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Latest()
	assert.True(t, errors.Is(err, ErrNoCheckpoint))

	checkpoint := func(superStep uint64, value int64) []Checkpoint {
		return []Checkpoint{{
			WorkerId: 0,
			CheckpointState: map[uint64]VertexCheckpoint{
				1: {Id: 1, Edges: []uint64{2, 3}, Value: value, IsActive: true},
			},
			NextSuperStepState: SuperStep{
				Id: superStep,
				Messages: map[uint64][]Message{
					1: {{SuperStepNum: superStep - 1, SourceVertexId: 2, DestVertexId: 1, Payload: []uint64{2}}},
				},
			},
		}}
	}

	require.NoError(t, store.Store(2, checkpoint(2, 10), map[string]int64{"sum": 1}))
	require.NoError(t, store.Store(4, checkpoint(4, 20), map[string]int64{"sum": 2}))
	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), latest)

	// rewriting 2 drops 4
	require.NoError(t, store.Store(2, checkpoint(2, 30), map[string]int64{"sum": 3}))
	latest, err = store.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest)

	checkpoints, aggregates, err := store.Retrieve(2)
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)
	assert.Equal(t, int64(30), checkpoints[0].CheckpointState[1].Value)
	assert.Equal(t, []uint64{2, 3}, checkpoints[0].CheckpointState[1].Edges)
	assert.Equal(t, []uint64{2}, checkpoints[0].NextSuperStepState.Messages[1][0].Payload)
	assert.Equal(t, map[string]int64{"sum": 3}, aggregates)

	_, _, err = store.Retrieve(4)
	assert.True(t, errors.Is(err, ErrNoCheckpoint))

	require.NoError(t, store.Reset())
	_, err = store.Latest()
	assert.True(t, errors.Is(err, ErrNoCheckpoint))
}
