package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMLFQSFairnessEqualNice exercises an MLFQS fairness scenario at
// reduced scale: two nice=0 threads racing to increment their own CPU-
// tick counters should receive close to equal scheduling, thanks to
// recent_cpu-driven priority decay.
func TestMLFQSFairnessEqualNice(t *testing.T) {
	s := New(WithMLFQS(true), WithTimerFrequency(100))

	counters := map[int]int{}
	spin := func(name string) func(sch *Scheduler, self *Thread) {
		return func(sch *Scheduler, self *Thread) {
			for s.Ticks() < 400 {
				counters[self.ID]++
				sch.Tick()
			}
			sch.Exit(0)
		}
	}

	a := s.Spawn("a", PriDefault, spin("a"), nil)
	b := s.Spawn("b", PriDefault, spin("b"), nil)

	drainExit(s, a, b)

	total := counters[a.ID] + counters[b.ID]
	require.Greater(t, total, 0)
	ratio := float64(counters[a.ID]) / float64(total)
	require.InDelta(t, 0.5, ratio, 0.2)
}

// TestMLFQSNiceBiasesAwayFromLoad confirms a higher-nice thread is
// scheduled less often than a nice=0 peer, at reduced scale.
func TestMLFQSNiceBiasesAwayFromLoad(t *testing.T) {
	s := New(WithMLFQS(true))

	counters := map[int]int{}
	spin := func(nice int) func(sch *Scheduler, self *Thread) {
		return func(sch *Scheduler, self *Thread) {
			sch.SetNice(nice)
			for s.Ticks() < 400 {
				counters[self.ID]++
				sch.Tick()
			}
			sch.Exit(0)
		}
	}

	lowNice := s.Spawn("low-nice", PriDefault, spin(0), nil)
	highNice := s.Spawn("high-nice", PriDefault, spin(10), nil)

	drainExit(s, lowNice, highNice)

	require.Greater(t, counters[lowNice.ID], counters[highNice.ID])
}

func TestGetLoadAvgAndRecentCPUDisplay(t *testing.T) {
	s := New(WithMLFQS(true))
	require.Equal(t, 0, s.GetLoadAvg())

	worker := s.Spawn("worker", PriDefault, func(sch *Scheduler, self *Thread) {
		for i := 0; i < 150; i++ {
			sch.Tick()
		}
		sch.Exit(0)
	}, nil)
	drainExit(s, worker)

	require.GreaterOrEqual(t, s.GetLoadAvg(), 0)
	require.Greater(t, s.GetRecentCPU(worker), 0)
}
