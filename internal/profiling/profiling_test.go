package profiling

import (
	"strings"
	"testing"
	"time"
)

func TestTrackAndTopN(t *testing.T) {
	ResetFrame()
	stop := Track("a")
	time.Sleep(2 * time.Millisecond)
	stop()
	Track("b")()
	if got := Snapshot()["a"]; got < 2*time.Millisecond {
		t.Fatalf("a = %v, want at least 2ms", got)
	}
	top := TopN(1)
	if !strings.HasPrefix(top, "a:") || !strings.HasSuffix(top, "ms") {
		t.Fatalf("TopN(1) = %q", top)
	}
	ResetFrame()
	if len(Snapshot()) != 0 {
		t.Fatalf("ResetFrame left totals")
	}
}

func TestCounters(t *testing.T) {
	ResetFrame()
	Count("uploads", 2)
	Count("uploads", 3)
	Count("draws", 1)
	if Counter("uploads") != 5 {
		t.Fatalf("uploads = %d", Counter("uploads"))
	}
	if got := Counters(); got != "draws=1 uploads=5" {
		t.Fatalf("Counters() = %q", got)
	}
}
