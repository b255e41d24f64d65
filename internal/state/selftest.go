package state

import (
	"context"
	"fmt"
)

// SelfTest performs a trial get, a trial round-trip write, a runtime
// version probe, and a started-services check, failing loudly if the
// started-services list is empty — a common symptom of a host-path
// misconfiguration where the compose directory the RAPP sees does not
// match the one docker compose actually manages.
func (c *Core) SelfTest(ctx context.Context) error {
	state, err := c.Get()
	if err != nil {
		return fmt.Errorf("self-test get: %w", err)
	}

	c.mu.Lock()
	compose, cfg, env := c.compose, c.config, c.env
	c.mu.Unlock()
	if err := c.store.SaveAll(compose, cfg, env); err != nil {
		return fmt.Errorf("self-test round-trip write: %w", err)
	}

	major, minor, patch, err := c.driver.Version(ctx)
	if err != nil {
		return fmt.Errorf("self-test runtime version: %w", err)
	}
	c.log.Info("runtime version", "major", major, "minor", minor, "patch", patch)

	started, err := c.driver.StartedServices(ctx, true)
	if err != nil {
		return fmt.Errorf("self-test started services: %w", err)
	}
	if len(started) == 0 {
		return fmt.Errorf("no started services found: check that %s matches the host path docker compose actually manages", c.cfg.ComposePath)
	}

	c.log.Info("self-test passed", "probes", len(state.Probes), "started_services", len(started))
	return nil
}
