package verify_test

import (
	"sync"
	"testing"

	"github.com/tckz/visitor-counter/internal/verify"
)

func TestTrackerSerialized(t *testing.T) {
	tr := verify.NewTracker()

	var wg sync.WaitGroup
	for i := int64(1); i <= 100; i++ {
		v := i + 41
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(v)
		}()
	}
	wg.Wait()

	s := tr.Summary()
	if !s.OK() {
		t.Fatalf("Expected a clean run, got %s", s)
	}

	if s.Hits != 100 || s.Min != 42 || s.Max != 141 {
		t.Fatalf("Expected hits=100 min=42 max=141, got %s", s)
	}
}

func TestTrackerDuplicatesAndGaps(t *testing.T) {
	tr := verify.NewTracker()
	for _, v := range []int64{1, 2, 2, 5} {
		tr.Record(v)
	}
	tr.Fail()

	s := tr.Summary()
	if s.OK() {
		t.Fatal("Expected the run to be rejected")
	}

	if len(s.Duplicates) != 1 || s.Duplicates[0] != 2 {
		t.Fatalf("Expected duplicate [2], got %v", s.Duplicates)
	}

	if len(s.Gaps) != 1 || s.Gaps[0] != (verify.Gap{From: 3, To: 4}) || s.Missing != 2 {
		t.Fatalf("Expected one gap 3-4, got %v missing=%d", s.Gaps, s.Missing)
	}

	if s.Hits != 4 || s.Failed != 1 {
		t.Fatalf("Expected hits=4 failed=1, got %s", s)
	}

	if got := s.String(); got != "hits=4, failed=1, min=1, max=5, duplicates=1, missing=2 in 1 gaps" {
		t.Fatalf("Unexpected summary %q", got)
	}
}

func TestTrackerEmpty(t *testing.T) {
	s := verify.NewTracker().Summary()
	if !s.OK() || s.Hits != 0 {
		t.Fatalf("Expected an empty clean summary, got %s", s)
	}
}

func TestTrackerWideGap(t *testing.T) {
	tr := verify.NewTracker()
	tr.Record(1)
	tr.Record(50_000_001)
	tr.Record(50_000_003)

	s := tr.Summary()
	if s.OK() {
		t.Fatal("Expected the run to be rejected")
	}

	want := []verify.Gap{{From: 2, To: 50_000_000}, {From: 50_000_002, To: 50_000_002}}
	if len(s.Gaps) != len(want) || s.Gaps[0] != want[0] || s.Gaps[1] != want[1] {
		t.Fatalf("Expected gaps %v, got %v", want, s.Gaps)
	}

	if s.Missing != 50_000_000 {
		t.Fatalf("Expected 50,000,000 missing, got %d", s.Missing)
	}

	if got := s.Gaps[0].String() + "," + s.Gaps[1].String(); got != "2-50000000,50000002" {
		t.Fatalf("Unexpected gap strings %q", got)
	}
}
