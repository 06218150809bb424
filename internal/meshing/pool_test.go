package meshing

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolDeployRunsJobs(t *testing.T) {
	p := NewWorkerPool(4, 16)
	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if !p.Deploy(func() { defer wg.Done(); ran.Add(1) }) {
			t.Fatalf("deploy %d refused", i)
		}
	}
	wg.Wait()
	p.Stop()
	if ran.Load() != 10 {
		t.Fatalf("ran %d jobs, want 10", ran.Load())
	}
	if p.Deploy(func() {}) {
		t.Fatalf("deploy after Stop should be refused")
	}
}

func TestWorkerPoolSaturation(t *testing.T) {
	p := NewWorkerPool(1, 1)
	release := make(chan struct{})
	for i := 0; i < p.Capacity(); i++ {
		if !p.Deploy(func() { <-release }) {
			t.Fatalf("deploy %d refused below capacity", i)
		}
	}
	if p.Deploy(func() {}) {
		t.Fatalf("deploy above capacity accepted")
	}
	if p.Busy() != 2 {
		t.Fatalf("Busy = %d, want 2", p.Busy())
	}
	close(release)
	p.Stop()
	if p.Busy() != 0 {
		t.Fatalf("Busy after Stop = %d", p.Busy())
	}
}

func TestWorkerPoolRecoversPanics(t *testing.T) {
	p := NewWorkerPool(1, 0)
	done := make(chan struct{})
	p.Deploy(func() { defer close(done); panic("boom") })
	<-done
	p.Stop()
	if p.Busy() != 0 {
		t.Fatalf("panicking job leaked a slot")
	}
}
