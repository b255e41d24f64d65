package state

import (
	"fmt"

	"github.com/infrasonar/rapp/internal/manifest"
)

// raInfoTemplate is the pre-formatted operator instruction text returned in
// the declared state's ra.info field.
const raInfoTemplate = "Remote access, when enabled, exposes a reverse tunnel for operator support and expires automatically."

// project builds the wire declared-state document from the current on-disk
// compose and configurations documents and env snapshot. Corresponds to
// get() in the state core: for every *-probe service it looks up the
// matching configurations entry, masks secrets, and folds in known agents,
// named configs and the remote-access status.
func project(compose, config *manifest.Value, env *manifest.EnvFields, allowRemoteAccess bool, warnf func(format string, args ...any)) (*DeclaredState, error) {
	composeMap, ok := compose.AsMap()
	if !ok {
		return nil, fmt.Errorf("compose document is not a mapping")
	}
	servicesVal, ok := composeMap.Get("services")
	if !ok {
		return nil, fmt.Errorf("compose document has no services mapping")
	}
	svcMap, ok := servicesVal.AsMap()
	if !ok {
		return nil, fmt.Errorf("compose services is not a mapping")
	}

	configMap, ok := config.AsMap()
	if !ok {
		configMap = manifest.NewOrderedMap()
	}

	seenFromCompose := map[string]bool{}
	var probes []WireProbe

	for _, name := range svcMap.Keys() {
		if !hasSuffix(name, "-probe") || name == remoteAccessServiceName {
			continue
		}
		key := name[:len(name)-len("-probe")]
		if key == "" {
			continue
		}
		seenFromCompose[key] = true

		svcVal, _ := svcMap.Get(name)
		svc, ok := svcVal.AsMap()
		if !ok {
			warnf("service %s is not a mapping, skipping", name)
			continue
		}

		entry := configEntry(configMap, key)
		if enabledVal, ok := entry.Get("enabled"); ok {
			if b, ok := enabledVal.AsBool(); ok && !b {
				warnf("service %s exists but its config entry is disabled", name)
				continue
			}
		}

		p := WireProbe{Key: key, Enabled: true}
		if img, ok := svc.Get("image"); ok {
			p.Compose.Image, _ = img.AsString()
		}
		if envVal, ok := svc.Get("environment"); ok {
			p.Compose.Environment = valueToStringMap(envVal)
		}

		if useVal, ok := entry.Get("use"); ok {
			if s, ok := useVal.AsString(); ok && s != "" {
				p.Use = s
				probes = append(probes, p)
				continue
			}
		}
		cfgVal, hasCfg := entry.Get("config")
		if !hasCfg {
			cfgVal = manifest.NewMap()
		}
		clone := cfgVal.Clone()
		replaceSecrets(clone)
		p.Config = clone
		probes = append(probes, p)
	}

	// Disabled probes whose configurations entry should survive restart.
	for _, name := range configMap.Keys() {
		if seenFromCompose[name] {
			continue
		}
		entryVal, _ := configMap.Get(name)
		entry, ok := entryVal.AsMap()
		if !ok {
			continue
		}
		if _, hasLike := entry.Get("like"); hasLike {
			continue // handled below as a named config
		}
		enabledVal, hasEnabled := entry.Get("enabled")
		if !hasEnabled {
			continue
		}
		if b, ok := enabledVal.AsBool(); !ok || b {
			continue
		}
		probes = append(probes, WireProbe{Key: name, Enabled: false})
	}

	var agents []WireAgent
	for _, key := range KnownAgentKeys {
		serviceName := key + "-agent"
		svcVal, ok := svcMap.Get(serviceName)
		if !ok {
			agents = append(agents, WireAgent{Key: key, Enabled: false})
			continue
		}
		svc, ok := svcVal.AsMap()
		if !ok {
			agents = append(agents, WireAgent{Key: key, Enabled: false})
			continue
		}
		compose := &ComposeSpec{}
		if img, ok := svc.Get("image"); ok {
			compose.Image, _ = img.AsString()
		}
		if envVal, ok := svc.Get("environment"); ok {
			full := valueToStringMap(envVal)
			filtered := map[string]any{}
			for k, v := range full {
				if _, allowed := AgentEnvAllowList[k]; allowed {
					filtered[k] = v
				}
			}
			compose.Environment = filtered
		}
		agents = append(agents, WireAgent{Key: key, Enabled: true, Compose: compose})
	}

	var configs []WireNamedConfig
	for _, name := range configMap.Keys() {
		entryVal, _ := configMap.Get(name)
		entry, ok := entryVal.AsMap()
		if !ok {
			continue
		}
		likeVal, hasLike := entry.Get("like")
		if !hasLike {
			continue
		}
		like, _ := likeVal.AsString()
		if like == "" {
			continue
		}
		c := WireNamedConfig{Name: name, Like: like}
		if useVal, ok := entry.Get("use"); ok {
			if s, ok := useVal.AsString(); ok && s != "" {
				c.Use = s
				configs = append(configs, c)
				continue
			}
		}
		cfgVal, hasCfg := entry.Get("config")
		if !hasCfg {
			cfgVal = manifest.NewMap()
		}
		clone := cfgVal.Clone()
		replaceSecrets(clone)
		c.Config = clone
		configs = append(configs, c)
	}

	state := &DeclaredState{
		Probes:          nonNilProbes(probes),
		Agents:          agents,
		Configs:         nonNilConfigs(configs),
		AgentToken:      TokenField{Keep: env.AgentToken != ""},
		AgentcoreToken:  TokenField{Keep: env.AgentcoreToken != ""},
		AgentcoreZoneID: env.AgentcoreZoneID,
		SocatTargetAddr: env.SocatTargetAddr,
	}

	_, hasRAService := svcMap.Get(remoteAccessServiceName)
	state.RA = WireRemoteAccess{
		Allowed: allowRemoteAccess,
		Enabled: hasRAService,
		Info:    raInfoTemplate,
	}
	if untilVal, ok := configMap.Get("__ra_until__"); ok {
		if s, ok := untilVal.AsString(); ok {
			if t, err := parseRAUntil(s); err == nil {
				state.RA.Until = t
			}
		}
	}

	return state, nil
}

func nonNilProbes(p []WireProbe) []WireProbe {
	if p == nil {
		return []WireProbe{}
	}
	return p
}

func nonNilConfigs(c []WireNamedConfig) []WireNamedConfig {
	if c == nil {
		return []WireNamedConfig{}
	}
	return c
}

func valueToStringMap(v *manifest.Value) map[string]any {
	m, ok := v.AsMap()
	if !ok {
		return nil
	}
	out := map[string]any{}
	for _, k := range m.Keys() {
		child, _ := m.Get(k)
		if s, ok := child.AsString(); ok {
			out[k] = s
			continue
		}
		if i, ok := child.AsInt(); ok {
			out[k] = i
			continue
		}
		if b, ok := child.AsBool(); ok {
			out[k] = b
			continue
		}
	}
	return out
}
