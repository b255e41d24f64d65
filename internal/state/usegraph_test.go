package state

import "testing"

func TestDetectCycleNoneWhenAcyclic(t *testing.T) {
	incoming := &DeclaredState{
		Probes: []WireProbe{
			{Key: "ping", Enabled: true, Use: "base"},
		},
		Configs: []WireNamedConfig{
			{Name: "base"},
		},
	}
	if c := buildUseGraph(incoming).detectCycle(); c != nil {
		t.Errorf("detectCycle() = %v, want nil", c)
	}
}

func TestDetectCycleSelfReference(t *testing.T) {
	incoming := &DeclaredState{
		Probes: []WireProbe{
			{Key: "ping", Enabled: true, Use: "ping"},
		},
	}
	if c := buildUseGraph(incoming).detectCycle(); c == nil {
		t.Error("detectCycle() = nil, want a self-reference cycle")
	}
}

func TestDetectCycleMultiHopChain(t *testing.T) {
	incoming := &DeclaredState{
		Configs: []WireNamedConfig{
			{Name: "a", Use: "b"},
			{Name: "b", Use: "c"},
			{Name: "c", Use: "a"},
		},
	}
	cycle := buildUseGraph(incoming).detectCycle()
	if cycle == nil {
		t.Fatal("detectCycle() = nil, want a multi-hop cycle a->b->c->a")
	}
}

func TestDetectCycleDisabledProbeIgnored(t *testing.T) {
	incoming := &DeclaredState{
		Probes: []WireProbe{
			{Key: "ping", Enabled: false, Use: "ping"},
		},
	}
	if c := buildUseGraph(incoming).detectCycle(); c != nil {
		t.Errorf("detectCycle() = %v, want nil for a disabled probe's use reference", c)
	}
}
