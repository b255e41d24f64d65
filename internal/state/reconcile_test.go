package state

import (
	"testing"
	"time"

	"github.com/infrasonar/rapp/internal/manifest"
)

func emptyComposeDoc() *manifest.Value {
	root := manifest.NewMap()
	root.Map.Set("services", manifest.NewMap())
	return root
}

func TestReconcileAddsProbeServiceAndConfigEntry(t *testing.T) {
	incoming := baseState()
	incoming.Probes = []WireProbe{{
		Key:     "ping",
		Enabled: true,
		Compose: ComposeSpec{Image: "ghcr.io/infrasonar/ping-probe:latest"},
		Config:  manifest.NewMap(),
	}}

	result, err := reconcile(incoming, emptyComposeDoc(), manifest.NewMap(), &manifest.EnvFields{}, time.Now())
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}

	svcMap, _ := result.Compose.Map.Get("services")
	services, _ := svcMap.AsMap()
	if _, ok := services.Get("ping-probe"); !ok {
		t.Error("reconcile() did not create ping-probe service")
	}
	if _, ok := result.Config.Map.Get("ping"); !ok {
		t.Error("reconcile() did not create a config entry for an enabled probe with an inline config")
	}
}

func TestReconcileDisablingProbeRemovesService(t *testing.T) {
	currentCompose := emptyComposeDoc()
	svcMap, _ := currentCompose.Map.Get("services")
	svcs, _ := svcMap.AsMap()
	svcs.Set("ping-probe", manifest.NewMap())

	incoming := baseState()
	incoming.Probes = []WireProbe{{Key: "ping", Enabled: false}}

	result, err := reconcile(incoming, currentCompose, manifest.NewMap(), &manifest.EnvFields{}, time.Now())
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	resultSvcMap, _ := result.Compose.Map.Get("services")
	resultSvcs, _ := resultSvcMap.AsMap()
	if _, ok := resultSvcs.Get("ping-probe"); ok {
		t.Error("reconcile() left ping-probe service after disabling the probe")
	}
}

func TestReconcileKeepTokenPreservesStoredValue(t *testing.T) {
	incoming := baseState()
	incoming.AgentToken = TokenField{Keep: true}
	env := &manifest.EnvFields{AgentToken: "storedtoken"}

	result, err := reconcile(incoming, emptyComposeDoc(), manifest.NewMap(), env, time.Now())
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	if result.Env.AgentToken != "storedtoken" {
		t.Errorf("reconcile() Env.AgentToken = %q, want storedtoken", result.Env.AgentToken)
	}
}

func TestReconcileFreshTokenOverwritesStoredValue(t *testing.T) {
	incoming := baseState()
	incoming.AgentToken = TokenField{Value: "newtoken"}
	env := &manifest.EnvFields{AgentToken: "storedtoken"}

	result, err := reconcile(incoming, emptyComposeDoc(), manifest.NewMap(), env, time.Now())
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	if result.Env.AgentToken != "newtoken" {
		t.Errorf("reconcile() Env.AgentToken = %q, want newtoken", result.Env.AgentToken)
	}
}

func TestReconcileSocatForwarderAddedAndRemoved(t *testing.T) {
	incoming := baseState()
	incoming.SocatTargetAddr = "10.0.0.1:9999"

	result, err := reconcile(incoming, emptyComposeDoc(), manifest.NewMap(), &manifest.EnvFields{}, time.Now())
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	svcMap, _ := result.Compose.Map.Get("services")
	services, _ := svcMap.AsMap()
	if _, ok := services.Get("socat"); !ok {
		t.Fatal("reconcile() did not add the socat service")
	}

	incoming2 := baseState()
	result2, err := reconcile(incoming2, result.Compose, result.Config, result.Env, time.Now())
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	svcMap2, _ := result2.Compose.Map.Get("services")
	services2, _ := svcMap2.AsMap()
	if _, ok := services2.Get("socat"); ok {
		t.Error("reconcile() left the socat service after clearing socat_target_addr")
	}
}

func TestReconcileRemoteAccessWithinWindowAddsServiceAndTimestamp(t *testing.T) {
	now := time.Unix(1000, 0)
	incoming := baseState()
	incoming.RA = WireRemoteAccess{Allowed: true, Enabled: true, Until: 1000 + int64(raMinWindow.Seconds()) + 10}

	result, err := reconcile(incoming, emptyComposeDoc(), manifest.NewMap(), &manifest.EnvFields{}, now)
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	svcMap, _ := result.Compose.Map.Get("services")
	services, _ := svcMap.AsMap()
	if _, ok := services.Get("remote-access"); !ok {
		t.Error("reconcile() did not add the remote-access service")
	}
	if _, ok := result.Config.Map.Get("__ra_until__"); !ok {
		t.Error("reconcile() did not record __ra_until__")
	}
}

func TestReconcileAssetsSurviveConfigRewrite(t *testing.T) {
	currentConfig := manifest.NewMap()
	entry := manifest.NewMap()
	entry.Map.Set("assets", manifest.NewString("keep-me"))
	currentConfig.Map.Set("ping", entry)

	incoming := baseState()
	incoming.Probes = []WireProbe{{
		Key:     "ping",
		Enabled: true,
		Compose: ComposeSpec{Image: "ghcr.io/infrasonar/ping-probe:latest"},
		Use:     "other",
	}}
	incoming.Configs = []WireNamedConfig{{Name: "other"}}

	result, err := reconcile(incoming, emptyComposeDoc(), currentConfig, &manifest.EnvFields{}, time.Now())
	if err != nil {
		t.Fatalf("reconcile() error = %v", err)
	}
	pingEntryVal, ok := result.Config.Map.Get("ping")
	if !ok {
		t.Fatal("reconcile() dropped the ping config entry that carried assets")
	}
	pingEntry, _ := pingEntryVal.AsMap()
	assets, ok := pingEntry.Get("assets")
	if !ok {
		t.Fatal("reconcile() dropped assets during config rewrite")
	}
	if s, _ := assets.AsString(); s != "keep-me" {
		t.Errorf("assets = %q, want keep-me", s)
	}
}
