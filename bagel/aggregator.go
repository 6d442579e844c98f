package bagel

import (
	"sync"

	"github.com/pkg/errors"
)

// Aggregator is a commutative monoid over int64 contributions.
type Aggregator interface {
	Identity() int64
	Combine(a, b int64) int64
}

// LongSumAggregator sums contributions.
type LongSumAggregator struct{}

func (LongSumAggregator) Identity() int64 { return 0 }

func (LongSumAggregator) Combine(a, b int64) int64 { return a + b }

type registeredAggregator struct {
	aggregator Aggregator
	persistent bool // keeps accumulating across supersteps
}

// aggregators holds the registered aggregators of a job and their values
// as of the last completed superstep.
type aggregators struct {
	mx         sync.Mutex
	registered map[string]registeredAggregator
	values     map[string]int64
}

func newAggregators() *aggregators {
	return &aggregators{
		registered: make(map[string]registeredAggregator),
		values:     make(map[string]int64),
	}
}

func (a *aggregators) register(name string, aggregator Aggregator, persistent bool) error {
	a.mx.Lock()
	defer a.mx.Unlock()
	if _, ok := a.registered[name]; ok {
		return errors.Wrap(ErrDuplicateAggregator, name)
	}
	a.registered[name] = registeredAggregator{aggregator: aggregator, persistent: persistent}
	a.values[name] = aggregator.Identity()
	return nil
}

// fold combines contribution into partial, the running value of one worker.
func (a *aggregators) fold(partial map[string]int64, contribution Contribution) error {
	reg, ok := a.registered[contribution.Name]
	if !ok {
		return errors.Wrap(ErrUnknownAggregator, contribution.Name)
	}
	current, ok := partial[contribution.Name]
	if !ok {
		current = reg.aggregator.Identity()
	}
	partial[contribution.Name] = reg.aggregator.Combine(current, contribution.Value)
	return nil
}

// finishSuperStep combines the worker partials of a superstep into the
// visible values.
func (a *aggregators) finishSuperStep(partials []map[string]int64) {
	a.mx.Lock()
	defer a.mx.Unlock()
	for name, reg := range a.registered {
		value := reg.aggregator.Identity()
		if reg.persistent {
			value = a.values[name]
		}
		for _, partial := range partials {
			if p, ok := partial[name]; ok {
				value = reg.aggregator.Combine(value, p)
			}
		}
		a.values[name] = value
	}
}

func (a *aggregators) reset() {
	a.mx.Lock()
	defer a.mx.Unlock()
	for name, reg := range a.registered {
		a.values[name] = reg.aggregator.Identity()
	}
}

func (a *aggregators) restore(values map[string]int64) {
	a.mx.Lock()
	defer a.mx.Unlock()
	for name, value := range values {
		if _, ok := a.registered[name]; ok {
			a.values[name] = value
		}
	}
}

func (a *aggregators) value(name string) (int64, bool) {
	a.mx.Lock()
	defer a.mx.Unlock()
	value, ok := a.values[name]
	return value, ok
}

func (a *aggregators) snapshot() map[string]int64 {
	a.mx.Lock()
	defer a.mx.Unlock()
	values := make(map[string]int64, len(a.values))
	for name, value := range a.values {
		values[name] = value
	}
	return values
}
