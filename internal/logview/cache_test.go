package logview

import (
	"context"
	"testing"
	"time"

	"github.com/infrasonar/rapp/internal/clock"
	"github.com/infrasonar/rapp/internal/config"
	"github.com/infrasonar/rapp/internal/logging"
	"github.com/infrasonar/rapp/internal/runtime"
)

type fakeRunner struct {
	stdout string
}

func (f *fakeRunner) Run(_ context.Context, _, _ string, _ ...string) (string, string, error) {
	return f.stdout, "", nil
}

func newTestCache(t *testing.T, stdout string) *Cache {
	t.Helper()
	cfg := &config.Config{ComposePath: "/docker"}
	log := logging.New(logging.ParseLevel("error"), false)
	driver := runtime.NewDriver(cfg, log, &fakeRunner{stdout: stdout})
	return NewCache("/docker", driver, clock.NewFake(time.Unix(0, 0)), log)
}

func TestCacheGetNotRunning(t *testing.T) {
	c := newTestCache(t, "other-probe\n")

	_, err := c.Get(context.Background(), "ping-probe", 0, 0)
	if err == nil {
		t.Fatal("Get() error = nil, want ErrNotRunning")
	}
	if _, ok := err.(*ErrNotRunning); !ok {
		t.Errorf("Get() error = %T, want *ErrNotRunning", err)
	}
}

func TestCacheStopAllOnEmptyCache(t *testing.T) {
	c := newTestCache(t, "ping-probe\n")
	// Must not panic with no views registered.
	c.StopAll()
}

func TestCacheGetReturnsCachedView(t *testing.T) {
	c := newTestCache(t, "ping-probe\n")
	v := newTestView(c.clk)
	v.lines = []string{"hello"}
	c.views["ping-probe"] = v

	page, err := c.Get(context.Background(), "ping-probe", 0, 0)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(page.Lines) != 1 || page.Lines[0] != "hello" {
		t.Errorf("Get() = %+v, want cached view's single line", page)
	}
}

func TestCacheRemove(t *testing.T) {
	c := newTestCache(t, "ping-probe\n")
	c.views["ping-probe"] = newTestView(c.clk)
	c.remove("ping-probe")
	if _, ok := c.views["ping-probe"]; ok {
		t.Error("remove() did not delete the view")
	}
}
