package triangles

import "github.com/pkg/errors"

// ErrProtocolInvariantViolation is returned in strict mode when a vertex
// receives an odd number of closing ids in the tally superstep, or when the
// summed vertex counts are not a multiple of three. Both only happen on
// asymmetric (directed or inconsistent) adjacency.
var ErrProtocolInvariantViolation = errors.New("protocol invariant violation")
