package triangles

import (
	"log"
	"sync"

	"tricount/bagel"

	"github.com/pkg/errors"
)

// AggregatorName is the sum aggregator the tally superstep contributes to.
const AggregatorName = "triangles.count"

// Program is the triangle counting vertex program. Neighbor sets are
// computed once per vertex and reused by later supersteps, so a Program
// must not be shared between jobs over different graphs.
type Program struct {
	// Strict fails the job when a vertex tallies an odd number of closing
	// ids instead of silently rounding down.
	Strict bool

	neighbors sync.Map // vertex id -> NeighborSet
}

func NewProgram(strict bool) *Program {
	return &Program{Strict: strict}
}

// Compute dispatches on the phase of the vertex's current superstep.
func (p *Program) Compute(v *bagel.Vertex, messages []bagel.Message) error {
	switch PhaseOf(v.SuperStep) {
	case Announce:
		p.announce(v)
	case Relay:
		p.relay(v, messages)
	case Confirm:
		p.confirm(v, messages)
	case Tally:
		return p.tally(v, messages)
	default:
		v.VoteToHalt()
	}
	return nil
}

func (p *Program) neighborSet(v *bagel.Vertex) NeighborSet {
	if cached, ok := p.neighbors.Load(v.Id); ok {
		return cached.(NeighborSet)
	}
	neighbors := NewNeighborSet(v.Id, v.Edges)
	p.neighbors.Store(v.Id, neighbors)
	return neighbors
}

// announce tells every neighbor that it is adjacent to v.
func (p *Program) announce(v *bagel.Vertex) {
	payload := []uint64{v.Id}
	for _, target := range p.neighborSet(v).Ids() {
		v.SendMessage(target, payload)
	}
}

// relay forwards every announced id to all neighbors, senders included.
func (p *Program) relay(v *bagel.Vertex, messages []bagel.Message) {
	var sources []uint64
	for _, msg := range messages {
		sources = append(sources, msg.Payload...)
	}
	for _, target := range p.neighborSet(v).Ids() {
		v.SendMessage(target, sources)
	}
}

// confirm answers every two-hop id that is also a direct neighbor. Ids
// equal to v come back from relays through v's own neighbors and never
// close a triangle.
func (p *Program) confirm(v *bagel.Vertex, messages []bagel.Message) {
	neighbors := p.neighborSet(v)
	for _, msg := range messages {
		for _, source := range msg.Payload {
			if source == v.Id {
				continue
			}
			if neighbors.Contains(source) {
				v.SendMessage(source, []uint64{source})
			}
		}
	}
}

// tally halves the number of closing ids received; each triangle is
// confirmed from both ends of its closing edge.
func (p *Program) tally(v *bagel.Vertex, messages []bagel.Message) error {
	var raw int64
	for _, msg := range messages {
		raw += int64(len(msg.Payload))
	}
	if raw%2 != 0 {
		if p.Strict {
			return errors.Wrapf(
				ErrProtocolInvariantViolation,
				"vertex %d tallied %d closing ids", v.Id, raw,
			)
		}
		log.Printf("tally: vertex %v tallied an odd count %v, adjacency is not symmetric\n", v.Id, raw)
	}

	numTriangles := raw / 2
	v.SetValue(numTriangles)
	v.Aggregate(AggregatorName, numTriangles)
	return nil
}
