package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// walkProgress renders a single updating stderr line while the walk
// runs. All counters are atomics so workers update them without
// coordination; a nil receiver disables everything, which keeps the
// call sites unconditional.
type walkProgress struct {
	startTime         time.Time
	totalCompartments int64

	compartmentsDone int64
	resources        int64
	errors           int64
	retries          int64

	done chan struct{}
}

func newWalkProgress(enabled bool) *walkProgress {
	if !enabled {
		return nil
	}
	return &walkProgress{done: make(chan struct{})}
}

func (p *walkProgress) start(totalCompartments int64) {
	if p == nil {
		return
	}
	p.startTime = time.Now()
	atomic.StoreInt64(&p.totalCompartments, totalCompartments)
	go p.displayLoop()
}

func (p *walkProgress) stop() {
	if p == nil {
		return
	}
	close(p.done)
	fmt.Fprint(os.Stderr, "\r\033[K")
}

func (p *walkProgress) recordCompartmentDone() {
	if p == nil {
		return
	}
	atomic.AddInt64(&p.compartmentsDone, 1)
}

func (p *walkProgress) recordResources(n int64) {
	if p == nil {
		return
	}
	atomic.AddInt64(&p.resources, n)
}

func (p *walkProgress) recordError() {
	if p == nil {
		return
	}
	atomic.AddInt64(&p.errors, 1)
}

func (p *walkProgress) recordRetry() {
	if p == nil {
		return
	}
	atomic.AddInt64(&p.retries, 1)
}

func (p *walkProgress) displayLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.render()
		}
	}
}

func (p *walkProgress) render() {
	done := atomic.LoadInt64(&p.compartmentsDone)
	total := atomic.LoadInt64(&p.totalCompartments)
	resources := atomic.LoadInt64(&p.resources)
	errors := atomic.LoadInt64(&p.errors)
	retries := atomic.LoadInt64(&p.retries)

	elapsed := time.Since(p.startTime).Round(time.Second)

	line := fmt.Sprintf("\rcompartments %d/%d | resources %d | elapsed %s",
		done, total, resources, elapsed)
	if errors > 0 || retries > 0 {
		line += fmt.Sprintf(" | recorded failures %d | retries %d", errors, retries)
	}

	fmt.Fprint(os.Stderr, line)
}
