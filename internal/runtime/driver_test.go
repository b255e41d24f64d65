package runtime

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/infrasonar/rapp/internal/config"
	"github.com/infrasonar/rapp/internal/logging"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	outputs map[string]string // joined args -> stdout
	err     error
}

func (f *fakeRunner) Run(_ context.Context, _, name string, args ...string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name, args})
	key := name + " " + strings.Join(args, " ")
	if f.err != nil {
		return "", "", f.err
	}
	return f.outputs[key], "", nil
}

func newTestDriver(t *testing.T, runner *fakeRunner) *Driver {
	t.Helper()
	cfg := &config.Config{ComposePath: "/docker", ServiceName: "rapp", ProjectName: "infrasonar"}
	log := logging.New(logging.ParseLevel("error"), false)
	return NewDriver(cfg, log, runner)
}

func TestVersionParsesAndEnforcesMinimum(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"docker -v": "Docker version 27.3.1, build abc123\n"}}
	d := newTestDriver(t, r)

	major, minor, patch, err := d.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if major != 27 || minor != 3 || patch != 1 {
		t.Errorf("Version() = %d.%d.%d, want 27.3.1", major, minor, patch)
	}
}

func TestVersionTooOld(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"docker -v": "Docker version 19.3.1, build abc123\n"}}
	d := newTestDriver(t, r)

	_, _, _, err := d.Version(context.Background())
	if err == nil {
		t.Fatal("Version() error = nil, want ErrTooOld")
	}
}

func TestVersionUnparseable(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"docker -v": "garbage\n"}}
	d := newTestDriver(t, r)

	_, _, _, err := d.Version(context.Background())
	if err == nil {
		t.Fatal("Version() error = nil, want ErrUnparseable")
	}
}

func TestPullAndUpdateExcludesSelfAndLegacyUpdater(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"docker compose -p infrasonar --progress plain config --services": "rapp\nupdater\nping-probe\ndocker-agent\n",
	}}
	d := newTestDriver(t, r)
	d.cfg.SkipImagePrune = true

	if err := d.PullAndUpdate(context.Background(), false, false); err != nil {
		t.Fatalf("PullAndUpdate() error = %v", err)
	}

	var upCall *call
	for i := range r.calls {
		joined := strings.Join(r.calls[i].args, " ")
		if strings.Contains(joined, "up -d") {
			c := r.calls[i]
			upCall = &c
		}
	}
	if upCall == nil {
		t.Fatal("no `up -d` call observed")
	}
	joined := strings.Join(upCall.args, " ")
	if strings.Contains(joined, "rapp") || strings.Contains(joined, "updater") {
		t.Errorf("up args should exclude self/legacy updater, got: %v", upCall.args)
	}
	if !strings.Contains(joined, "ping-probe") || !strings.Contains(joined, "docker-agent") {
		t.Errorf("up args missing expected services, got: %v", upCall.args)
	}
}

func TestPullAndUpdateSkipsPullWhenRequested(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"docker compose -p infrasonar --progress plain config --services": "ping-probe\n",
	}}
	d := newTestDriver(t, r)
	d.cfg.SkipImagePrune = true

	if err := d.PullAndUpdate(context.Background(), false, true); err != nil {
		t.Fatalf("PullAndUpdate() error = %v", err)
	}

	for _, c := range r.calls {
		if strings.Contains(strings.Join(c.args, " "), "pull") {
			t.Errorf("pull should have been skipped, got call: %v", c.args)
		}
	}
}

func TestGateTryAcquireNonBlocking(t *testing.T) {
	g := NewGate()
	if !g.TryAcquire() {
		t.Fatal("first TryAcquire should succeed")
	}
	if g.TryAcquire() {
		t.Fatal("second TryAcquire should fail while held")
	}
	if !g.Held() {
		t.Fatal("Held() should report true while acquired")
	}
	g.Release()
	if g.Held() {
		t.Fatal("Held() should report false after release")
	}
}
