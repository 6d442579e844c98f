package bagel

import (
	"log"
	"sort"

	"tricount/util"

	"github.com/pkg/errors"
)

type Worker struct {
	LogicalId   uint32
	numWorkers  uint32
	Vertices    map[uint64]*Vertex
	SuperStep   SuperStep
	NextStep    SuperStep
	Outgoing    map[uint32][]Message // dest worker -> messages
	computation Computation
	aggregators *aggregators
	verbose     bool
}

// SuperStep holds the messages delivered to a worker for one superstep.
type SuperStep struct {
	Id       uint64
	Messages map[uint64][]Message // dest vertex -> messages
}

func NewWorker(
	logicalId uint32, numWorkers uint32, computation Computation,
	aggregators *aggregators,
) *Worker {
	return &Worker{
		LogicalId:   logicalId,
		numWorkers:  numWorkers,
		Vertices:    make(map[uint64]*Vertex),
		SuperStep:   SuperStep{Messages: make(map[uint64][]Message)},
		NextStep:    SuperStep{Id: 1, Messages: make(map[uint64][]Message)},
		Outgoing:    make(map[uint32][]Message),
		computation: computation,
		aggregators: aggregators,
	}
}

func (w *Worker) AddVertex(v *Vertex) {
	w.Vertices[v.Id] = v
}

// ComputeVertices runs one superstep over the partition: every vertex that
// is active or has messages waiting is computed.
func (w *Worker) ComputeVertices(superStepNum uint64) (ProgressSuperStepResult, error) {
	result := ProgressSuperStepResult{
		SuperStepNum: superStepNum,
		WorkerId:     w.LogicalId,
		Partials:     make(map[string]int64),
	}

	if w.NextStep.Id == superStepNum {
		w.SuperStep = w.NextStep
	} else if len(w.NextStep.Messages) > 0 {
		log.Printf(
			"ComputeVertices: worker %v dropping %v inboxes for superstep %v\n",
			w.LogicalId, len(w.NextStep.Messages), w.NextStep.Id,
		)
	}
	w.SuperStep.Id = superStepNum
	w.NextStep = SuperStep{Id: superStepNum + 1, Messages: make(map[uint64][]Message)}
	w.Outgoing = make(map[uint32][]Message)

	for _, vId := range w.vertexIds() {
		vertex := w.Vertices[vId]
		messages := w.SuperStep.Messages[vId]
		if !vertex.isActive && len(messages) == 0 {
			continue
		}
		vertex.isActive = true
		vertex.SuperStep = superStepNum

		if err := w.computation.Compute(vertex, messages); err != nil {
			return result, errors.Wrapf(err, "superstep %d vertex %d", superStepNum, vId)
		}

		outgoing, partials := vertex.drain()
		for _, msg := range outgoing {
			dest := util.PartitionOf(msg.DestVertexId, w.numWorkers)
			w.Outgoing[dest] = append(w.Outgoing[dest], msg)
		}
		result.MessagesSent += uint64(len(outgoing))

		for _, contribution := range partials {
			if err := w.aggregators.fold(result.Partials, contribution); err != nil {
				return result, errors.Wrapf(err, "superstep %d vertex %d", superStepNum, vId)
			}
		}

		if vertex.isActive {
			result.IsActive = true
		}
	}
	w.SuperStep.Messages = make(map[uint64][]Message)

	if w.verbose {
		log.Printf(
			"ComputeVertices: worker %v finished superstep %v, sent %v messages, active: %v\n",
			w.LogicalId, superStepNum, result.MessagesSent, result.IsActive,
		)
	}
	return result, nil
}

// ReceiveWorkerMessages queues messages for the next superstep. Messages to
// vertices this worker has never seen create an edgeless vertex.
func (w *Worker) ReceiveWorkerMessages(messages []Message) {
	for _, msg := range messages {
		if msg.SuperStepNum+1 != w.NextStep.Id {
			continue // ignore msgs not for next superstep
		}
		if _, ok := w.Vertices[msg.DestVertexId]; !ok {
			w.Vertices[msg.DestVertexId] = NewVertex(msg.DestVertexId, nil)
		}
		w.NextStep.Messages[msg.DestVertexId] = append(w.NextStep.Messages[msg.DestVertexId], msg)
	}
}

func (w *Worker) hasPendingMessages() bool {
	return len(w.NextStep.Messages) > 0
}

func (w *Worker) activeVertices() uint64 {
	var active uint64
	for _, v := range w.Vertices {
		if v.isActive {
			active++
		}
	}
	return active
}

func (w *Worker) vertexIds() []uint64 {
	ids := make([]uint64, 0, len(w.Vertices))
	for id := range w.Vertices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *Worker) checkpoint() map[uint64]VertexCheckpoint {
	checkPointState := make(map[uint64]VertexCheckpoint, len(w.Vertices))
	for id, v := range w.Vertices {
		checkPointState[id] = v.checkpoint()
	}
	return checkPointState
}
