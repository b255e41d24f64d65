package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/infrasonar/rapp/internal/clock"
	"github.com/infrasonar/rapp/internal/config"
	"github.com/infrasonar/rapp/internal/logging"
	"github.com/infrasonar/rapp/internal/logview"
	"github.com/infrasonar/rapp/internal/manifest"
	"github.com/infrasonar/rapp/internal/metrics"
	"github.com/infrasonar/rapp/internal/runtime"
)

// Core is the declared-state projection: Get (redact+summarize), Set
// (validate+merge+reconcile), Update (delegate to the runtime driver and
// reload), and the remote-access expiry reaper. It is process-wide and is
// handed to the protocol dispatcher as an explicit application context
// rather than held in package-level globals.
type Core struct {
	cfg    *config.Config
	log    *logging.Logger
	store  *manifest.Store
	driver *runtime.Driver
	Logs   *logview.Cache
	clk    clock.Clock

	mu      sync.Mutex
	compose *manifest.Value
	config  *manifest.Value
	env     *manifest.EnvFields
}

// NewCore loads the on-disk manifests and wires a Core ready for Get/Set.
func NewCore(cfg *config.Config, log *logging.Logger, store *manifest.Store, driver *runtime.Driver, clk clock.Clock) (*Core, error) {
	c := &Core{cfg: cfg, log: log, store: store, driver: driver, clk: clk}
	c.Logs = logview.NewCache(cfg.ComposePath, driver, clk, log)
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Core) reload() error {
	compose, err := c.store.LoadCompose()
	if err != nil {
		return err
	}
	cfg, err := c.store.LoadConfig()
	if err != nil {
		return err
	}
	env, err := c.store.LoadEnv()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.compose, c.config, c.env = compose, cfg, env
	c.mu.Unlock()
	return nil
}

// Get projects the current manifests into the wire declared-state document.
func (c *Core) Get() (*DeclaredState, error) {
	c.mu.Lock()
	compose, cfg, env := c.compose, c.config, c.env
	c.mu.Unlock()

	return project(compose, cfg, env, c.cfg.AllowRemote, func(format string, args ...any) {
		c.log.Warn(fmt.Sprintf(format, args...))
	})
}

// Set validates and merges incoming against the current on-disk state,
// writes the result atomically, updates the in-memory snapshot, and
// schedules a background Update. Returns a *ValidationError on any
// invariant violation.
func (c *Core) Set(ctx context.Context, incoming *DeclaredState) error {
	c.mu.Lock()
	compose, cfg, env := c.compose, c.config, c.env
	c.mu.Unlock()

	if err := validate(incoming, cfg, env, c.clk.Now()); err != nil {
		return err
	}

	result, err := reconcile(incoming, compose, cfg, env, c.clk.Now())
	if err != nil {
		return err
	}

	if err := c.store.SaveAll(result.Compose, result.Config, result.Env); err != nil {
		return err
	}

	c.mu.Lock()
	c.compose, c.config, c.env = result.Compose, result.Config, result.Env
	c.mu.Unlock()

	go func() {
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := c.Update(updateCtx, false, false); err != nil {
			c.log.Error("background update after push failed", "error", err)
		}
	}()

	return nil
}

// Update calls the runtime driver's pull-and-update with the given flags,
// stops all log views since their target containers may have been
// replaced, and reloads the manifests from disk.
func (c *Core) Update(ctx context.Context, selfUpdate, skipPull bool) error {
	start := time.Now()
	err := c.driver.PullAndUpdate(ctx, selfUpdate, skipPull)
	metrics.UpdateDuration.Observe(time.Since(start).Seconds())

	c.Logs.StopAll()
	if rerr := c.reload(); rerr != nil {
		c.log.Error("reload after update failed", "error", rerr)
		if err == nil {
			err = rerr
		}
	}

	if err != nil {
		metrics.UpdatesTotal.WithLabelValues("error").Inc()
	} else {
		metrics.UpdatesTotal.WithLabelValues("ok").Inc()
	}
	return err
}

// GetLog validates and serves a paged log-view read.
func (c *Core) GetLog(ctx context.Context, name string, start int) (logview.Page, error) {
	if name == "" {
		return logview.Page{}, validationErrorf("missing log name")
	}
	if start < 0 {
		return logview.Page{}, validationErrorf("start must be >= 0")
	}
	return c.Logs.Get(ctx, name, start, 0)
}
