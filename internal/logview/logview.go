// Package logview implements a per-container live log tail with a bounded
// idle lifetime and paged reads, serving the control protocol's LOG request.
package logview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/infrasonar/rapp/internal/clock"
	"github.com/infrasonar/rapp/internal/logging"
	"github.com/infrasonar/rapp/internal/runtime"
)

const (
	idleTimeout  = 30 * time.Second
	watchTick    = 1 * time.Second
	defaultLimit = 500
)

// Page is the response shape for a paged log read.
type Page struct {
	Lines []string `json:"lines"`
	Next  int      `json:"next"`
	Count int      `json:"count"`
	Start int      `json:"start"`
	Limit int      `json:"limit"`
}

// View tails one container's logs and serves paged reads of the
// accumulated lines until it idles out or is stopped explicitly.
type View struct {
	name string
	log  *logging.Logger
	clk  clock.Clock

	mu           sync.Mutex
	lines        []string
	lastAccessed time.Time

	stream *runtime.LineStream
	cancel context.CancelFunc
	onStop func(name string)
	stopped bool
}

// newView starts tailing name, spawning `docker logs <name> -f` via
// runtime.StreamLines. It does
// not register itself in any cache; callers are expected to do so under the
// runtime driver's mutation gate, the shared resource the subprocess spawn
// contends on.
func newView(ctx context.Context, dir, name string, clk clock.Clock, log *logging.Logger, onStop func(string)) (*View, error) {
	runCtx, cancel := context.WithCancel(ctx)
	stream, err := runtime.StreamLines(runCtx, dir, "docker", "logs", name, "-f")
	if err != nil {
		cancel()
		return nil, err
	}

	v := &View{
		name:         name,
		log:          log,
		clk:          clk,
		lastAccessed: clk.Now(),
		stream:       stream,
		cancel:       cancel,
		onStop:       onStop,
	}

	go v.readLoop()
	go v.watchLoop(runCtx)

	return v, nil
}

func (v *View) readLoop() {
	for line := range v.stream.Lines {
		v.mu.Lock()
		v.lines = append(v.lines, line)
		v.mu.Unlock()
	}
}

func (v *View) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.clk.After(watchTick):
			v.mu.Lock()
			idle := v.clk.Now().Sub(v.lastAccessed)
			v.mu.Unlock()
			if idle > idleTimeout {
				v.log.Info("log view idle, stopping", "container", v.name)
				v.Stop()
				return
			}
		}
	}
}

// GetLines returns up to limit lines starting at start, refreshing the
// idle timer. limit<=0 defaults to 500.
func (v *View) GetLines(start, limit int) Page {
	if limit <= 0 {
		limit = defaultLimit
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lastAccessed = v.clk.Now()
	count := len(v.lines)
	if start > count || start < 0 {
		start = 0
	}
	next := start + limit
	if next > count {
		next = count
	}
	out := make([]string, next-start)
	copy(out, v.lines[start:next])

	return Page{Lines: out, Next: next, Count: count, Start: start, Limit: limit}
}

// Stop cancels the reader and watcher, kills the subprocess, and notifies
// the cache to remove this view. Idempotent.
func (v *View) Stop() {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	v.mu.Unlock()

	v.cancel()
	v.stream.Kill()
	if v.onStop != nil {
		v.onStop(v.name)
	}
}

// ErrNotRunning reports that the requested container is not among the
// currently started services.
type ErrNotRunning struct {
	Name string
}

func (e *ErrNotRunning) Error() string {
	return fmt.Sprintf("no running services named '%s'", e.Name)
}
