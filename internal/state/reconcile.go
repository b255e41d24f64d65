package state

import (
	"time"

	"github.com/infrasonar/rapp/internal/manifest"
)

const (
	seleniumServiceName     = "selenium"
	socatServiceName        = "socat"
	remoteAccessServiceName = "remote-access"
	raSentinelEpoch         = "1970-01-01T00:00:00Z"
)

// reconcileResult is the mutated trio of on-disk documents produced by a
// successful validated push, ready to be written atomically.
type reconcileResult struct {
	Compose *manifest.Value
	Config  *manifest.Value
	Env     *manifest.EnvFields
}

// reconcile applies phase 2 of a push: it mutates clones of the current
// compose and configurations documents (and builds a fresh env snapshot) to
// match incoming, an already-validated declared state. now is injected for
// deterministic remote-access window handling.
func reconcile(incoming *DeclaredState, currentCompose, currentConfig *manifest.Value, currentEnv *manifest.EnvFields, now time.Time) (*reconcileResult, error) {
	compose := currentCompose.Clone()
	config := currentConfig.Clone()

	composeMap, _ := compose.AsMap()
	services, ok := composeMap.Get("services")
	if !ok {
		services = manifest.NewMap()
		composeMap.Set("services", services)
	}
	svcMap, _ := services.AsMap()

	template, _ := composeMap.Get("x-infrasonar-template")

	configMap, _ := config.AsMap()
	if configMap == nil {
		configMap = manifest.NewOrderedMap()
		config = &manifest.Value{Kind: manifest.KindMap, Map: configMap}
	}

	desiredProbes := map[string]*WireProbe{}
	for i := range incoming.Probes {
		p := &incoming.Probes[i]
		desiredProbes[p.Key] = p
	}

	// Step 1: drop probe services with no matching enabled desired probe.
	for _, name := range svcMap.Keys() {
		if !hasSuffix(name, "-probe") {
			continue
		}
		key := name[:len(name)-len("-probe")]
		p, ok := desiredProbes[key]
		if !ok || !p.Enabled {
			svcMap.Delete(name)
		}
	}

	// Step 2: upsert/disable each desired probe's config entry and service.
	for _, p := range incoming.Probes {
		serviceName := p.Key + "-probe"
		entry := configEntry(configMap, p.Key)

		if !p.Enabled {
			entry.Set("enabled", manifest.NewBool(false))
			configMap.Set(p.Key, &manifest.Value{Kind: manifest.KindMap, Map: entry})
			svcMap.Delete(serviceName)
			continue
		}

		svc := buildTemplatedService(template, p.Compose.Image, p.Compose.Environment)
		svcMap.Set(serviceName, svc)

		assets, hadAssets := entry.Get("assets")
		newEntry := manifest.NewOrderedMap()
		if p.Use != "" {
			newEntry.Set("use", manifest.NewString(p.Use))
		} else if p.Config != nil {
			newEntry.Set("config", p.Config)
		}
		if hadAssets {
			newEntry.Set("assets", assets)
		}
		if newEntry.Len() == 0 {
			configMap.Delete(p.Key)
		} else {
			configMap.Set(p.Key, &manifest.Value{Kind: manifest.KindMap, Map: newEntry})
		}
	}

	// Step 3: selenium side-service.
	wantSelenium := false
	for _, p := range incoming.Probes {
		if p.Enabled && p.Key == "selenium" {
			wantSelenium = true
			break
		}
	}
	if wantSelenium {
		if _, ok := svcMap.Get(seleniumServiceName); !ok {
			svcMap.Set(seleniumServiceName, buildTemplatedService(template, "selenium/standalone-chrome", nil))
		}
	} else {
		svcMap.Delete(seleniumServiceName)
	}

	// Step 4: known agents.
	for _, a := range incoming.Agents {
		serviceName := a.Key + "-agent"
		if !a.Enabled {
			svcMap.Delete(serviceName)
			continue
		}
		env := map[string]any{}
		if existing, ok := svcMap.Get(serviceName); ok {
			if existingMap, ok := existing.AsMap(); ok {
				if existingEnv, ok := existingMap.Get("environment"); ok {
					if em, ok := existingEnv.AsMap(); ok {
						for _, k := range em.Keys() {
							if v, ok := em.Get(k); ok {
								if s, ok := v.AsString(); ok {
									env[k] = s
								}
							}
						}
					}
				}
			}
		}
		for k, v := range a.Compose.Environment {
			if v == nil {
				delete(env, k)
				continue
			}
			if s, ok := v.(string); ok && s == "" {
				delete(env, k)
				continue
			}
			env[k] = v
		}
		svcMap.Set(serviceName, buildTemplatedService(template, a.Compose.Image, env))
	}

	// Step 5: named configs — anything currently "like"-tagged is a
	// deletion candidate unless the desired set re-asserts it.
	toDelete := map[string]bool{}
	for _, name := range configMap.Keys() {
		entryVal, _ := configMap.Get(name)
		if em, ok := entryVal.AsMap(); ok {
			if _, hasLike := em.Get("like"); hasLike {
				toDelete[name] = true
			}
		}
	}
	for _, c := range incoming.Configs {
		delete(toDelete, c.Name)
		existing := configEntry(configMap, c.Name)
		assets, hadAssets := existing.Get("assets")

		entry := manifest.NewOrderedMap()
		entry.Set("like", manifest.NewString(c.Like))
		if c.Use != "" {
			entry.Set("use", manifest.NewString(c.Use))
		} else if c.Config != nil {
			entry.Set("config", c.Config)
		}
		if hadAssets {
			entry.Set("assets", assets)
		}
		configMap.Set(c.Name, &manifest.Value{Kind: manifest.KindMap, Map: entry})
	}
	for name := range toDelete {
		configMap.Delete(name)
	}

	// Step 6: socat forwarder.
	if incoming.SocatTargetAddr != "" {
		if _, ok := svcMap.Get(socatServiceName); !ok {
			svcMap.Set(socatServiceName, buildSocatService(incoming.SocatTargetAddr))
		}
	} else {
		svcMap.Delete(socatServiceName)
	}

	// Step 7: remote access.
	wantRA := incoming.RA.Allowed && incoming.RA.Enabled
	if wantRA {
		window := time.Unix(incoming.RA.Until, 0).Sub(now)
		wantRA = window > raMinWindow && window <= raMaxWindow
	}
	if wantRA {
		configMap.Set("__ra_until__", manifest.NewString(time.Unix(incoming.RA.Until, 0).UTC().Format(time.RFC3339)))
		svcMap.Set(remoteAccessServiceName, buildTemplatedService(template, "infrasonar/remote-access", nil))
	} else {
		svcMap.Delete(remoteAccessServiceName)
	}

	// Step 8: env fields.
	env := &manifest.EnvFields{
		AgentcoreZoneID: incoming.AgentcoreZoneID,
		SocatTargetAddr: incoming.SocatTargetAddr,
	}
	if incoming.AgentToken.Keep {
		env.AgentToken = currentEnv.AgentToken
	} else {
		env.AgentToken = incoming.AgentToken.Value
	}
	if incoming.AgentcoreToken.Keep {
		env.AgentcoreToken = currentEnv.AgentcoreToken
	} else {
		env.AgentcoreToken = incoming.AgentcoreToken.Value
	}

	return &reconcileResult{Compose: compose, Config: config, Env: env}, nil
}

func configEntry(configMap *manifest.OrderedMap, key string) *manifest.OrderedMap {
	if v, ok := configMap.Get(key); ok {
		if m, ok := v.AsMap(); ok {
			return m
		}
	}
	return manifest.NewOrderedMap()
}

// buildTemplatedService copies every x-infrasonar-template field except
// image and environment, then overlays the given image and environment.
func buildTemplatedService(template *manifest.Value, image string, environment map[string]any) *manifest.Value {
	svc := manifest.NewMap()
	if template != nil {
		if tm, ok := template.AsMap(); ok {
			for _, k := range tm.Keys() {
				if k == "image" || k == "environment" {
					continue
				}
				v, _ := tm.Get(k)
				svc.Map.Set(k, v.Clone())
			}
		}
	}
	svc.Map.Set("image", manifest.NewString(image))
	if len(environment) > 0 {
		env := manifest.NewMap()
		for k, v := range environment {
			env.Map.Set(k, scalarToValue(v))
		}
		svc.Map.Set("environment", env)
	}
	return svc
}

func buildSocatService(targetAddr string) *manifest.Value {
	svc := manifest.NewMap()
	svc.Map.Set("image", manifest.NewString("alpine/socat"))
	cmd := manifest.NewSeq()
	cmd.Seq = append(cmd.Seq, manifest.NewString("tcp-listen:8770,fork,reuseaddr"), manifest.NewString("tcp-connect:"+targetAddr))
	svc.Map.Set("command", cmd)
	return svc
}

func scalarToValue(v any) *manifest.Value {
	switch x := v.(type) {
	case string:
		return manifest.NewString(x)
	case bool:
		return manifest.NewBool(x)
	case int:
		return manifest.NewInt(int64(x))
	case int64:
		return manifest.NewInt(x)
	case float64:
		return &manifest.Value{Kind: manifest.KindScalar, Scalar: x}
	default:
		return manifest.NewNull()
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
