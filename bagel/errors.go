package bagel

import "github.com/pkg/errors"

var (
	ErrUnknownAggregator   = errors.New("unknown aggregator")
	ErrDuplicateAggregator = errors.New("aggregator already registered")
	ErrMaxSuperSteps       = errors.New("job did not halt within the superstep limit")
	ErrNoCheckpoint        = errors.New("checkpoint not found")
	ErrCheckpointsDisabled = errors.New("checkpoints are disabled")
	ErrMalformedQuery      = errors.New("malformed query")
	ErrUnknownQueryType    = errors.New("unknown query type")
)
