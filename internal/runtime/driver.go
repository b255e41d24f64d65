// Package runtime implements the Runtime Driver: it shells
// out to the docker / docker compose CLI to probe versions, pull and start
// services, prune images, enumerate services, and trampoline a self-update,
// all serialized behind a single process-wide mutation Gate.
package runtime

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/infrasonar/rapp/internal/config"
	"github.com/infrasonar/rapp/internal/logging"
)

var reDockerVersion = regexp.MustCompile(`^Docker version (\d+)\.(\d+)\.(\d+)`)

// Driver invokes the container-runtime CLI and owns the mutation gate.
type Driver struct {
	cfg    *config.Config
	log    *logging.Logger
	runner Runner
	Gate   *Gate
}

// NewDriver creates a Driver bound to cfg, logging to log, running commands
// via runner (pass ExecRunner{} in production).
func NewDriver(cfg *config.Config, log *logging.Logger, runner Runner) *Driver {
	return &Driver{cfg: cfg, log: log, runner: runner, Gate: NewGate()}
}

// Version parses `docker -v` and fails with a typed error if the binary is
// absent, unparseable, or older than MinMajorVersion.
func (d *Driver) Version(ctx context.Context) (major, minor, patch int, err error) {
	d.Gate.Acquire()
	defer d.Gate.Release()

	out, stderr, err := d.runner.Run(ctx, d.cfg.ComposePath, "docker", "-v")
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrMissing, err)
	}
	if strings.Contains(strings.ToLower(out), "not found") || strings.Contains(strings.ToLower(stderr), "not found") {
		return 0, 0, 0, ErrMissing
	}
	line := firstLine(out)
	m := reDockerVersion.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, 0, ErrUnparseable
	}
	major, _ = strconv.Atoi(m[1])
	minor, _ = strconv.Atoi(m[2])
	patch, _ = strconv.Atoi(m[3])
	if major < MinMajorVersion {
		return major, minor, patch, fmt.Errorf("%w: v%d.%d.%d", ErrTooOld, major, minor, patch)
	}
	return major, minor, patch, nil
}

// ConfiguredServices lists every service named in the compose project,
// regardless of running state, via `docker compose config --services`.
func (d *Driver) ConfiguredServices(ctx context.Context) ([]string, error) {
	out, stderr, err := d.runner.Run(ctx, d.cfg.ComposePath, "docker", d.composeArgs("config", "--services")...)
	if err != nil {
		return nil, err
	}
	if stderr != "" {
		d.log.Debug("docker compose config --services", "stderr", stderr)
	}
	return splitLines(out), nil
}

// StartedServices lists services reported by `docker compose ps --services`.
// If runningOnly, only services currently in the "running" status are
// included.
func (d *Driver) StartedServices(ctx context.Context, runningOnly bool) ([]string, error) {
	args := []string{"ps", "--services"}
	if runningOnly {
		args = append(args, "--status", "running")
	}
	out, stderr, err := d.runner.Run(ctx, d.cfg.ComposePath, "docker", d.composeArgs(args...)...)
	if err != nil {
		return nil, err
	}
	if stderr != "" {
		d.log.Debug("docker compose ps --services", "stderr", stderr)
	}
	return splitLines(out), nil
}

// Run executes an arbitrary command in the compose directory, under the
// mutation gate, and returns its captured stdout/stderr.
func (d *Driver) Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error) {
	d.Gate.Acquire()
	defer d.Gate.Release()
	return d.runner.Run(ctx, d.cfg.ComposePath, name, args...)
}

// PullAndUpdate resolves the currently configured services, excludes the
// RAPP's own service and the legacy updater, and issues `pull` (unless
// skipPull) then `up -d --remove-orphans` for the remainder. Unless image
// pruning is suppressed by configuration, it then sleeps ~1s and issues
// `image prune -a -f`. When selfUpdate is requested, it pulls the RAPP's own
// image and launches a detached trampoline container to recreate it.
func (d *Driver) PullAndUpdate(ctx context.Context, selfUpdate, skipPull bool) error {
	services, err := d.ConfiguredServices(ctx)
	if err != nil {
		return fmt.Errorf("list configured services: %w", err)
	}

	exclude := map[string]bool{
		d.cfg.ServiceName:         true,
		d.cfg.LegacyUpdaterName(): true,
	}
	var targets []string
	for _, s := range services {
		if !exclude[s] {
			targets = append(targets, s)
		}
	}

	d.Gate.Acquire()
	func() {
		defer d.Gate.Release()
		if !skipPull && len(targets) > 0 {
			if _, stderr, rerr := d.runner.Run(ctx, d.cfg.ComposePath, "docker", d.composeArgs(append([]string{"pull"}, targets...)...)...); rerr != nil {
				d.log.Error("compose pull failed", "error", rerr, "stderr", stderr)
			}
		}
		upArgs := append([]string{"up", "-d", "--remove-orphans"}, targets...)
		if _, stderr, rerr := d.runner.Run(ctx, d.cfg.ComposePath, "docker", d.composeArgs(upArgs...)...); rerr != nil {
			d.log.Error("compose up failed", "error", rerr, "stderr", stderr)
		}
	}()

	if !d.cfg.SkipImagePrune {
		if err := d.ImagePrune(ctx); err != nil {
			d.log.Error("image prune failed", "error", err)
		}
	}

	if selfUpdate {
		if err := d.selfUpdateTrampoline(ctx); err != nil {
			d.log.Error("self-update trampoline failed", "error", err)
			return err
		}
	}
	return nil
}

// ImagePrune runs `docker image prune -a -f` under the gate, after a short
// delay to let the just-started containers settle.
func (d *Driver) ImagePrune(ctx context.Context) error {
	d.Gate.Acquire()
	defer d.Gate.Release()

	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}

	_, stderr, err := d.runner.Run(ctx, d.cfg.ComposePath, "docker", "image", "prune", "-a", "-f")
	if err != nil {
		return err
	}
	if stderr != "" {
		d.log.Debug("docker image prune", "stderr", stderr)
	}
	return nil
}

// composeArgs prefixes args with `compose [-p project] [--progress plain]`,
// matching the original COMPOSE_CMD construction in
// original_source/lib/envvars.py.
func (d *Driver) composeArgs(args ...string) []string {
	base := []string{"compose"}
	if d.cfg.ProjectName != "" {
		base = append(base, "-p", d.cfg.ProjectName)
	}
	base = append(base, "--progress", "plain")
	return append(base, args...)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func splitLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
