package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// EventPrinter writes one line per worker event. It is safe for concurrent
// use so lines from different workers never interleave.
type EventPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewEventPrinter(w io.Writer) *EventPrinter {
	if w == nil {
		w = io.Discard
	}
	return &EventPrinter{w: w}
}

// Connected prints the connect latency of a worker.
func (p *EventPrinter) Connected(id int, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "Connection #%d established in %f ms\n", id, ms(latency))
}

// Finished prints how long a worker ran, flagging failures.
func (p *EventPrinter) Finished(id int, elapsed time.Duration, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	suffix := ""
	if failed {
		suffix = " [FAILED]"
	}
	fmt.Fprintf(p.w, "Connection #%d ran for %f ms%s\n", id, ms(elapsed), suffix)
}

// Countdown reports the time left before the synchronized start.
type Countdown struct {
	mu   sync.Mutex
	w    io.Writer
	done bool
}

func NewCountdown(w io.Writer) *Countdown {
	if w == nil {
		w = io.Discard
	}
	return &Countdown{w: w}
}

// Remaining prints the remaining time; a non-positive value announces the start once.
func (c *Countdown) Remaining(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	if d <= 0 {
		c.done = true
		fmt.Fprintln(c.w, "Starting.")
		return
	}
	fmt.Fprintf(c.w, "Starting in %.3f s\n", d.Seconds())
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
