package feather

import (
	"github.com/mwantia/feather/data"
)

// Monitor is a filter counting the bytes that pass through it.
type Monitor struct {
	Passthrough

	progress   *Progress
	throughput *Throughput
}

// NewMonitor feeds progress and throughput. Either may be nil.
func NewMonitor(progress *Progress, throughput *Throughput) *Monitor {
	return &Monitor{
		progress:   progress,
		throughput: throughput,
	}
}

func (m *Monitor) Drain(rel Relative[data.Slice]) error {
	if err := m.Passthrough.Drain(rel); err != nil {
		return err
	}

	n := int64(rel.Value.Len())
	if m.progress != nil {
		m.progress.Add(n)
	}
	if m.throughput != nil {
		m.throughput.Add(n)
	}
	transferBytesTotal.Add(float64(n))
	return nil
}
