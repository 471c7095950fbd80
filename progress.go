package feather

import (
	"fmt"
	"sync/atomic"
)

// Progress counts done and total bytes of a transfer. The total grows as
// the transfer discovers more of the tree.
type Progress struct {
	done  atomic.Int64
	total atomic.Int64
}

func (p *Progress) Add(n int64) {
	p.done.Add(n)
}

func (p *Progress) AddTotal(n int64) {
	p.total.Add(n)
}

func (p *Progress) Done() int64 {
	return p.done.Load()
}

func (p *Progress) Total() int64 {
	return p.total.Load()
}

// Percent returns the done share of the total in the range 0 to 100. An
// empty total counts as complete.
func (p *Progress) Percent() float64 {
	done, total := p.Done(), p.Total()
	if total <= 0 {
		return 100
	}
	percent := float64(done) / float64(total) * 100
	if percent > 100 {
		return 100
	}
	return percent
}

func (p *Progress) String() string {
	return fmt.Sprintf("%d/%d (%.1f%%)", p.Done(), p.Total(), p.Percent())
}
