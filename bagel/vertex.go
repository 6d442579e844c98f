package bagel

// Vertex stores intermediate calculation data about the vertex
type Vertex struct {
	Id        uint64
	Edges     []uint64 // raw edge targets, as loaded
	Value     int64
	SuperStep uint64
	isActive  bool
	outgoing  []Message
	partials  []Contribution
}

// Contribution is a single value a vertex handed to a named aggregator.
type Contribution struct {
	Name  string
	Value int64
}

type VertexCheckpoint struct {
	Id       uint64
	Edges    []uint64
	Value    int64
	IsActive bool
}

// Computation is the vertex program run once per active vertex per
// superstep.
type Computation interface {
	Compute(v *Vertex, messages []Message) error
}

// ComputeFunc adapts a function to the Computation interface.
type ComputeFunc func(v *Vertex, messages []Message) error

func (f ComputeFunc) Compute(v *Vertex, messages []Message) error {
	return f(v, messages)
}

func NewVertex(id uint64, edges []uint64) *Vertex {
	return &Vertex{
		Id:       id,
		Edges:    edges,
		isActive: true,
	}
}

func (v *Vertex) IsActive() bool {
	return v.isActive
}

// VoteToHalt deactivates the vertex until a message wakes it up.
func (v *Vertex) VoteToHalt() {
	v.isActive = false
}

func (v *Vertex) SetValue(value int64) {
	v.Value = value
}

// SendMessage queues payload for destVertexId; it is delivered in the
// next superstep.
func (v *Vertex) SendMessage(destVertexId uint64, payload []uint64) {
	v.outgoing = append(v.outgoing, Message{
		SuperStepNum:   v.SuperStep,
		SourceVertexId: v.Id,
		DestVertexId:   destVertexId,
		Payload:        payload,
	})
}

// Aggregate contributes value to the named global aggregator.
func (v *Vertex) Aggregate(name string, value int64) {
	v.partials = append(v.partials, Contribution{Name: name, Value: value})
}

// Outgoing returns the messages sent during the current Compute call.
func (v *Vertex) Outgoing() []Message {
	return v.outgoing
}

// Contributions returns the aggregator contributions of the current
// Compute call.
func (v *Vertex) Contributions() []Contribution {
	return v.partials
}

func (v *Vertex) drain() ([]Message, []Contribution) {
	outgoing, partials := v.outgoing, v.partials
	v.outgoing, v.partials = nil, nil
	return outgoing, partials
}

func (v *Vertex) checkpoint() VertexCheckpoint {
	return VertexCheckpoint{
		Id:       v.Id,
		Edges:    v.Edges,
		Value:    v.Value,
		IsActive: v.isActive,
	}
}

func vertexFromCheckpoint(state VertexCheckpoint) *Vertex {
	return &Vertex{
		Id:       state.Id,
		Edges:    state.Edges,
		Value:    state.Value,
		isActive: state.IsActive,
	}
}
