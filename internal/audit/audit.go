// Package audit runs a periodic, read-only sweep of the on-disk manifests
// that checks for invariant drift introduced outside a normal PUSH (a hand
// edit of the compose or configurations file, for instance) and logs what
// it finds without ever mutating anything.
package audit

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/infrasonar/rapp/internal/logging"
	"github.com/infrasonar/rapp/internal/manifest"
	"github.com/infrasonar/rapp/internal/metrics"
)

// Auditor periodically checks invariant 2 and the remote-access half of
// invariant 5 against the on-disk manifests and reports drift via the
// logger, never writing back. Duplicate identifiers (invariant 1) are not
// checked.
type Auditor struct {
	store *manifest.Store
	log   *logging.Logger
	sched *cron.Cron
}

// New creates an Auditor reading from store.
func New(store *manifest.Store, log *logging.Logger) *Auditor {
	return &Auditor{store: store, log: log}
}

// Start schedules the sweep at the given cron expression (e.g. "@every 1h")
// and runs it in the background until ctx is cancelled.
func (a *Auditor) Start(ctx context.Context, schedule string) error {
	a.sched = cron.New()
	_, err := a.sched.AddFunc(schedule, func() { a.sweepOnce() })
	if err != nil {
		return err
	}
	a.sched.Start()
	go func() {
		<-ctx.Done()
		a.sched.Stop()
	}()
	return nil
}

func (a *Auditor) sweepOnce() {
	compose, err := a.store.LoadCompose()
	if err != nil {
		a.log.Warn("audit: failed to load compose manifest", "error", err)
		return
	}
	cfg, err := a.store.LoadConfig()
	if err != nil {
		a.log.Warn("audit: failed to load configurations manifest", "error", err)
		return
	}

	drift := 0
	drift += a.checkOrphanServices(compose, cfg)
	drift += a.checkDanglingRA(compose, cfg)

	if drift > 0 {
		metrics.AuditDriftTotal.Add(float64(drift))
		a.log.Warn("audit: drift detected", "count", drift)
	} else {
		a.log.Debug("audit: no drift detected")
	}
}

// checkOrphanServices verifies invariant 2: every *-probe service has either
// no configurations entry or one that is not explicitly disabled.
func (a *Auditor) checkOrphanServices(compose, cfg *manifest.Value) int {
	composeMap, ok := compose.AsMap()
	if !ok {
		return 0
	}
	servicesVal, ok := composeMap.Get("services")
	if !ok {
		return 0
	}
	svcMap, ok := servicesVal.AsMap()
	if !ok {
		return 0
	}
	configMap, ok := cfg.AsMap()
	if !ok {
		configMap = manifest.NewOrderedMap()
	}

	found := 0
	for _, name := range svcMap.Keys() {
		if len(name) <= len("-probe") || name[len(name)-len("-probe"):] != "-probe" {
			continue
		}
		key := name[:len(name)-len("-probe")]
		entryVal, ok := configMap.Get(key)
		if !ok {
			continue
		}
		entry, ok := entryVal.AsMap()
		if !ok {
			continue
		}
		if enabledVal, ok := entry.Get("enabled"); ok {
			if b, ok := enabledVal.AsBool(); ok && !b {
				a.log.Warn("audit: probe service present but config disabled", "service", name)
				found++
			}
		}
	}
	return found
}

// checkDanglingRA verifies invariant 5's remote-access half: the
// remote-access service never exists without a recorded __ra_until__
// (expiry itself is the reaper's job, not the audit's).
func (a *Auditor) checkDanglingRA(compose, cfg *manifest.Value) int {
	composeMap, ok := compose.AsMap()
	if !ok {
		return 0
	}
	servicesVal, ok := composeMap.Get("services")
	if !ok {
		return 0
	}
	svcMap, ok := servicesVal.AsMap()
	if !ok {
		return 0
	}
	if _, present := svcMap.Get("remote-access"); !present {
		return 0
	}
	configMap, ok := cfg.AsMap()
	if !ok {
		a.log.Warn("audit: remote-access service present but no configurations manifest")
		return 1
	}
	if _, ok := configMap.Get("__ra_until__"); !ok {
		a.log.Warn("audit: remote-access service present but __ra_until__ missing")
		return 1
	}
	return 0
}
