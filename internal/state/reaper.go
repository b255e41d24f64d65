package state

import (
	"context"
	"time"

	"github.com/infrasonar/rapp/internal/manifest"
	"github.com/infrasonar/rapp/internal/metrics"
)

const reaperTick = 5 * time.Second

// RunReaper wakes every 5s and, if the remote-access service is present and
// its __ra_until__ has passed, resets the sentinel, removes the service,
// writes the files, and triggers a skip-pull update. Runs until ctx is
// cancelled.
func (c *Core) RunReaper(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.clk.After(reaperTick):
			if err := c.reapOnce(ctx); err != nil {
				c.log.Error("remote-access reaper failed", "error", err)
			}
		}
	}
}

func (c *Core) reapOnce(ctx context.Context) error {
	c.mu.Lock()
	compose, cfg := c.compose, c.config
	c.mu.Unlock()

	composeMap, ok := compose.AsMap()
	if !ok {
		return nil
	}
	servicesVal, ok := composeMap.Get("services")
	if !ok {
		return nil
	}
	svcMap, ok := servicesVal.AsMap()
	if !ok {
		return nil
	}
	if _, present := svcMap.Get(remoteAccessServiceName); !present {
		return nil
	}

	configMap, ok := cfg.AsMap()
	if !ok {
		return nil
	}
	untilVal, ok := configMap.Get("__ra_until__")
	if !ok {
		return nil
	}
	untilStr, ok := untilVal.AsString()
	if !ok {
		return nil
	}
	until, err := parseRAUntil(untilStr)
	if err != nil {
		return nil
	}
	if time.Unix(until, 0).After(c.clk.Now()) {
		return nil
	}

	newCompose := compose.Clone()
	newConfig := cfg.Clone()
	nc, _ := newConfig.AsMap()
	nc.Set("__ra_until__", manifest.NewString(raSentinelEpoch))
	ns, _ := newCompose.AsMap()
	nsServicesVal, _ := ns.Get("services")
	nsServices, _ := nsServicesVal.AsMap()
	nsServices.Delete(remoteAccessServiceName)

	c.mu.Lock()
	env := c.env
	c.mu.Unlock()

	if err := c.store.SaveAll(newCompose, newConfig, env); err != nil {
		return err
	}

	c.mu.Lock()
	c.compose, c.config = newCompose, newConfig
	c.mu.Unlock()

	metrics.RemoteAccessExpiries.Inc()
	return c.Update(ctx, false, true)
}
