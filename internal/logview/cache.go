package logview

import (
	"context"
	"sync"

	"github.com/infrasonar/rapp/internal/clock"
	"github.com/infrasonar/rapp/internal/logging"
	"github.com/infrasonar/rapp/internal/metrics"
	"github.com/infrasonar/rapp/internal/runtime"
)

// Cache maps a container name to its live View, created on first request
// for a currently-running container and removed when the view stops.
type Cache struct {
	dir    string
	driver *runtime.Driver
	clk    clock.Clock
	log    *logging.Logger

	mu    sync.Mutex
	views map[string]*View
}

// NewCache creates an empty cache. dir is the compose project directory,
// used as the working directory for spawned `docker logs` subprocesses.
func NewCache(dir string, driver *runtime.Driver, clk clock.Clock, log *logging.Logger) *Cache {
	return &Cache{
		dir:    dir,
		driver: driver,
		clk:    clk,
		log:    log,
		views:  map[string]*View{},
	}
}

// Get returns the lines page for name at start, creating a View for it if
// one is not already running. Returns ErrNotRunning if name is not among
// the currently started services. Creation is performed under the runtime
// driver's mutation gate since the subprocess spawn contends on the shared
// runtime resource.
func (c *Cache) Get(ctx context.Context, name string, start, limit int) (Page, error) {
	c.mu.Lock()
	v, ok := c.views[name]
	c.mu.Unlock()
	if ok {
		return v.GetLines(start, limit), nil
	}

	c.driver.Gate.Acquire()
	defer c.driver.Gate.Release()

	running, err := c.driver.StartedServices(ctx, true)
	if err != nil {
		return Page{}, err
	}
	found := false
	for _, s := range running {
		if s == name {
			found = true
			break
		}
	}
	if !found {
		return Page{}, &ErrNotRunning{Name: name}
	}

	v, err = newView(ctx, c.dir, name, c.clk, c.log, c.remove)
	if err != nil {
		return Page{}, err
	}
	c.mu.Lock()
	c.views[name] = v
	c.mu.Unlock()
	metrics.LogViewsActive.Inc()

	return v.GetLines(start, limit), nil
}

func (c *Cache) remove(name string) {
	c.mu.Lock()
	_, existed := c.views[name]
	delete(c.views, name)
	c.mu.Unlock()
	if existed {
		metrics.LogViewsActive.Dec()
	}
}

// StopAll stops every view, used when the containers they target may have
// been replaced by a runtime update.
func (c *Cache) StopAll() {
	c.mu.Lock()
	views := make([]*View, 0, len(c.views))
	for _, v := range c.views {
		views = append(views, v)
	}
	c.mu.Unlock()
	for _, v := range views {
		v.Stop()
	}
}
