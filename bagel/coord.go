package bagel

import (
	"context"
	"log"
	"time"

	"tricount/util"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type JobConfig struct {
	NumWorkers              uint32
	MaxSuperSteps           uint64
	StepsBetweenCheckpoints uint64 // 0 disables checkpoints
	Checkpoints             *CheckpointStore
	Verbose                 bool
	OnSuperStep             func(Progress)
}

// JobResult is what a finished job leaves behind.
type JobResult struct {
	SuperSteps uint64
	Aggregates map[string]int64
	Values     map[uint64]int64
}

// Coord drives the supersteps of a single job over in-process workers.
type Coord struct {
	config          JobConfig
	computation     Computation
	workers         []*Worker
	aggregators     *aggregators
	superStepNumber uint64
}

func NewCoord(config JobConfig, computation Computation) *Coord {
	if config.NumWorkers == 0 {
		config.NumWorkers = 1
	}
	c := &Coord{
		config:      config,
		computation: computation,
		aggregators: newAggregators(),
	}
	c.workers = c.newWorkers()
	return c
}

func (c *Coord) newWorkers() []*Worker {
	workers := make([]*Worker, c.config.NumWorkers)
	for logicalId := range workers {
		workers[logicalId] = NewWorker(
			uint32(logicalId), c.config.NumWorkers, c.computation, c.aggregators,
		)
		workers[logicalId].verbose = c.config.Verbose
	}
	return workers
}

// RegisterAggregator makes name available to Vertex.Aggregate. A persistent
// aggregator keeps accumulating across supersteps; otherwise it only holds
// the contributions of the last superstep.
func (c *Coord) RegisterAggregator(name string, aggregator Aggregator, persistent bool) error {
	return c.aggregators.register(name, aggregator, persistent)
}

// AggregatedValue returns the value of name as of the last barrier.
func (c *Coord) AggregatedValue(name string) (int64, bool) {
	return c.aggregators.value(name)
}

// LoadVertices assigns vertices to workers by hash partition.
func (c *Coord) LoadVertices(vertices []*Vertex) {
	for _, v := range vertices {
		c.workers[util.PartitionOf(v.Id, c.config.NumWorkers)].AddVertex(v)
	}
}

func (c *Coord) GetWorkerVertices() WorkerVertices {
	workerVertices := make(WorkerVertices)
	for _, w := range c.workers {
		workerVertices[w.LogicalId] = w.vertexIds()
	}
	return workerVertices
}

// Compute runs supersteps until every vertex has voted to halt and no
// messages are in flight.
func (c *Coord) Compute(ctx context.Context) (JobResult, error) {
	if c.superStepNumber == 0 {
		c.aggregators.reset()
	}

	for {
		if err := ctx.Err(); err != nil {
			return JobResult{}, err
		}
		if c.config.MaxSuperSteps > 0 && c.superStepNumber >= c.config.MaxSuperSteps {
			return JobResult{}, errors.Wrapf(ErrMaxSuperSteps, "%d supersteps", c.superStepNumber)
		}

		start := time.Now()
		results, err := c.computeSuperStep(ctx)
		if err != nil {
			return JobResult{}, err
		}

		var messagesSent uint64
		isActive := false
		partials := make([]map[string]int64, len(results))
		for idx, result := range results {
			messagesSent += result.MessagesSent
			isActive = isActive || result.IsActive
			partials[idx] = result.Partials
		}
		c.aggregators.finishSuperStep(partials)
		c.exchangeMessages()

		finished := c.superStepNumber
		c.superStepNumber++

		shouldCheckPoint := c.config.Checkpoints != nil &&
			c.config.StepsBetweenCheckpoints > 0 &&
			c.superStepNumber%c.config.StepsBetweenCheckpoints == 0
		if shouldCheckPoint {
			if err := c.storeCheckpoint(); err != nil {
				return JobResult{}, err
			}
		}

		if c.config.Verbose {
			log.Printf(
				"Compute: superstep %d took %v, sent %d messages\n",
				finished, time.Since(start), messagesSent,
			)
		}
		if c.config.OnSuperStep != nil {
			c.config.OnSuperStep(Progress{
				SuperStepNum:   finished,
				ActiveVertices: c.activeVertices(),
				MessagesSent:   messagesSent,
				Aggregates:     c.aggregators.snapshot(),
				IsCheckpoint:   shouldCheckPoint,
			})
		}

		if !isActive && messagesSent == 0 && !c.hasPendingMessages() {
			log.Printf("Compute: complete after %d supersteps\n", c.superStepNumber)
			return c.result(), nil
		}
	}
}

func (c *Coord) computeSuperStep(ctx context.Context) ([]ProgressSuperStepResult, error) {
	results := make([]ProgressSuperStepResult, len(c.workers))
	g, _ := errgroup.WithContext(ctx)
	for idx, w := range c.workers {
		idx, w := idx, w
		g.Go(func() error {
			result, err := w.ComputeVertices(c.superStepNumber)
			if err != nil {
				return errors.Wrapf(err, "worker %d", w.LogicalId)
			}
			results[idx] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("Compute: superstep %d failed: %v\n", c.superStepNumber, err)
		return nil, err
	}
	return results, nil
}

// exchangeMessages delivers the messages buffered during the last
// superstep to the inboxes of the next one.
func (c *Coord) exchangeMessages() {
	for _, src := range c.workers {
		for dest, messages := range src.Outgoing {
			c.workers[dest].ReceiveWorkerMessages(messages)
		}
		src.Outgoing = make(map[uint32][]Message)
	}
}

func (c *Coord) hasPendingMessages() bool {
	for _, w := range c.workers {
		if w.hasPendingMessages() {
			return true
		}
	}
	return false
}

func (c *Coord) activeVertices() uint64 {
	var active uint64
	for _, w := range c.workers {
		active += w.activeVertices()
	}
	return active
}

func (c *Coord) result() JobResult {
	values := make(map[uint64]int64)
	for _, w := range c.workers {
		for id, v := range w.Vertices {
			values[id] = v.Value
		}
	}
	return JobResult{
		SuperSteps: c.superStepNumber,
		Aggregates: c.aggregators.snapshot(),
		Values:     values,
	}
}

func (c *Coord) storeCheckpoint() error {
	checkpoints := make([]Checkpoint, len(c.workers))
	for idx, w := range c.workers {
		checkpoints[idx] = Checkpoint{
			SuperStepNumber:    c.superStepNumber,
			WorkerId:           w.LogicalId,
			CheckpointState:    w.checkpoint(),
			NextSuperStepState: w.NextStep,
		}
	}
	if err := c.config.Checkpoints.Store(
		c.superStepNumber, checkpoints, c.aggregators.snapshot(),
	); err != nil {
		return err
	}
	if c.config.Verbose {
		log.Printf("storeCheckpoint: saved checkpoint %d\n", c.superStepNumber)
	}
	return nil
}

// RestoreCheckpoint replaces the job state with the checkpoint taken before
// superStepNumber; Compute then resumes from there. Vertices and pending
// messages are re-partitioned, so the worker count may differ from the one
// that wrote the checkpoint.
func (c *Coord) RestoreCheckpoint(superStepNumber uint64) error {
	if c.config.Checkpoints == nil {
		return ErrCheckpointsDisabled
	}
	checkpoints, aggregates, err := c.config.Checkpoints.Retrieve(superStepNumber)
	if err != nil {
		return err
	}

	c.workers = c.newWorkers()
	for _, w := range c.workers {
		w.NextStep.Id = superStepNumber
	}
	for _, checkpoint := range checkpoints {
		for _, state := range checkpoint.CheckpointState {
			c.LoadVertices([]*Vertex{vertexFromCheckpoint(state)})
		}
	}
	for _, checkpoint := range checkpoints {
		for vId, messages := range checkpoint.NextSuperStepState.Messages {
			w := c.workers[util.PartitionOf(vId, c.config.NumWorkers)]
			w.ReceiveWorkerMessages(messages)
		}
	}
	c.aggregators.restore(aggregates)
	c.superStepNumber = superStepNumber
	log.Printf("RestoreCheckpoint: restored checkpoint %d\n", superStepNumber)
	return nil
}

// RestoreLatestCheckpoint restores the most recent checkpoint.
func (c *Coord) RestoreLatestCheckpoint() (uint64, error) {
	if c.config.Checkpoints == nil {
		return 0, ErrCheckpointsDisabled
	}
	latest, err := c.config.Checkpoints.Latest()
	if err != nil {
		return 0, err
	}
	return latest, c.RestoreCheckpoint(latest)
}
