package triangles

import (
	"context"

	"tricount/bagel"

	"github.com/pkg/errors"
)

// VerticesPerTriangle is how many vertex values, and so how many aggregator
// contributions, every triangle shows up in.
const VerticesPerTriangle = 3

// Result is the outcome of a triangle counting job.
type Result struct {
	Total      int64
	Values     map[uint64]int64 // triangles each vertex belongs to
	SuperSteps uint64
}

// TotalOf converts the value of the count aggregator into a number of
// triangles.
func TotalOf(aggregate int64) int64 {
	return aggregate / VerticesPerTriangle
}

// NewCoord prepares a coord running a fresh Program with the count
// aggregator registered. Load vertices or restore a checkpoint before
// calling Compute.
func NewCoord(config bagel.JobConfig, strict bool) (*bagel.Coord, error) {
	coord := bagel.NewCoord(config, NewProgram(strict))
	if err := coord.RegisterAggregator(AggregatorName, bagel.LongSumAggregator{}, true); err != nil {
		return nil, err
	}
	return coord, nil
}

// Count runs a triangle counting job over vertices.
func Count(
	ctx context.Context, config bagel.JobConfig, strict bool, vertices []*bagel.Vertex,
) (Result, error) {
	coord, err := NewCoord(config, strict)
	if err != nil {
		return Result{}, err
	}
	coord.LoadVertices(vertices)
	return Run(ctx, coord, strict)
}

// Run computes a prepared coord to completion.
func Run(ctx context.Context, coord *bagel.Coord, strict bool) (Result, error) {
	jobResult, err := coord.Compute(ctx)
	if err != nil {
		return Result{}, err
	}
	return ResultOf(jobResult, strict)
}

// ResultOf reads the triangle total off a finished job. In strict mode an
// aggregate that is not a multiple of VerticesPerTriangle fails.
func ResultOf(jobResult bagel.JobResult, strict bool) (Result, error) {
	aggregate := jobResult.Aggregates[AggregatorName]
	if strict && aggregate%VerticesPerTriangle != 0 {
		return Result{}, errors.Wrapf(
			ErrProtocolInvariantViolation,
			"vertices reported %d triangle memberships", aggregate,
		)
	}
	return Result{
		Total:      TotalOf(aggregate),
		Values:     jobResult.Values,
		SuperSteps: jobResult.SuperSteps,
	}, nil
}
