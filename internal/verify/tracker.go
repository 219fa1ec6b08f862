// Package verify checks that counts handed out under concurrent load are
// serialized: every value appears once and the values form one run.
package verify

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

type Tracker struct {
	mu     sync.Mutex
	seen   map[int64]int
	failed int64
}

func NewTracker() *Tracker {
	return &Tracker{seen: map[int64]int{}}
}

// Record is safe to call from many goroutines.
func (t *Tracker) Record(count int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[count]++
}

// Fail counts an invocation that did not return a count.
func (t *Tracker) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed++
}

// Gap is a run of counts, From to To inclusive, that no invocation returned.
type Gap struct {
	From int64
	To   int64
}

func (g Gap) String() string {
	if g.From == g.To {
		return strconv.FormatInt(g.From, 10)
	}
	return fmt.Sprintf("%d-%d", g.From, g.To)
}

type Summary struct {
	Hits       int64
	Failed     int64
	Min        int64
	Max        int64
	Duplicates []int64
	Gaps       []Gap
	// Missing is the number of counts covered by Gaps.
	Missing int64
}

// OK is true when no count was returned twice and none is missing in [Min, Max].
// A gap can also mean an increment whose response was lost, or another client.
func (s Summary) OK() bool {
	return len(s.Duplicates) == 0 && s.Missing == 0
}

func (s Summary) String() string {
	return fmt.Sprintf("hits=%s, failed=%s, min=%s, max=%s, duplicates=%d, missing=%s in %d gaps",
		humanize.Comma(s.Hits), humanize.Comma(s.Failed),
		humanize.Comma(s.Min), humanize.Comma(s.Max),
		len(s.Duplicates), humanize.Comma(s.Missing), len(s.Gaps))
}

func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{Failed: t.failed}
	if len(t.seen) == 0 {
		return s
	}

	values := lo.Keys(t.seen)
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	s.Min = values[0]
	s.Max = values[len(values)-1]
	s.Hits = int64(lo.Sum(lo.Values(t.seen)))
	s.Duplicates = lo.Filter(values, func(v int64, _ int) bool { return t.seen[v] > 1 })

	// Compare neighbours only; a gap is kept as one run however wide it is.
	for i := 1; i < len(values); i++ {
		prev, v := values[i-1], values[i]
		if v-prev > 1 {
			s.Gaps = append(s.Gaps, Gap{From: prev + 1, To: v - 1})
			s.Missing += v - prev - 1
		}
	}

	return s
}
