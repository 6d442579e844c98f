package triangles

// Phase is the step of the protocol a vertex runs in a given superstep.
type Phase int

const (
	Announce Phase = iota
	Relay
	Confirm
	Tally
	Halted
)

var phaseNames = [...]string{"Announce", "Relay", "Confirm", "Tally", "Halted"}

// PhaseOf maps a superstep number to its phase. Every superstep past the
// tally is Halted.
func PhaseOf(superStep uint64) Phase {
	if superStep >= uint64(Halted) {
		return Halted
	}
	return Phase(superStep)
}

func (p Phase) String() string {
	if p < Announce || p > Halted {
		return "Unknown"
	}
	return phaseNames[p]
}
