package state

import (
	"fmt"
	"time"

	"github.com/infrasonar/rapp/internal/manifest"
)

// ValidationError reports a single invariant violation found while checking
// an incoming declared-state document before it is reconciled onto disk.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

const (
	raMinWindow = 55 * time.Second
	raMaxWindow = 3 * 24 * time.Hour
)

// validate runs the full sanity check against incoming, mutating it in
// place to restore boolean secrets from current. currentEnv supplies the
// stored token values for Keep semantics. now is injected for deterministic
// testing of the ra window check.
func validate(incoming *DeclaredState, current *manifest.Value, currentEnv *manifest.EnvFields, now time.Time) error {
	seen := map[string]string{} // identifier -> "probe"|"config", for invariant 1

	for i := range incoming.Probes {
		p := &incoming.Probes[i]
		if !KeyPattern.MatchString(p.Key) {
			return validationErrorf("invalid probe key %q", p.Key)
		}
		if other, dup := seen[p.Key]; dup {
			return validationErrorf("duplicate identifier %q (probe vs %s)", p.Key, other)
		}
		seen[p.Key] = "probe"

		if !p.Enabled {
			continue
		}
		wantPrefix := "ghcr.io/infrasonar/" + p.Key + "-probe"
		if !hasImagePrefix(p.Compose.Image, wantPrefix) {
			return validationErrorf("probe %s image must begin with %q", p.Key, wantPrefix)
		}
		haveConfig := p.Config != nil && !p.Config.IsNull()
		haveUse := p.Use != ""
		if haveConfig == haveUse {
			return validationErrorf("probe %s must set exactly one of config or use", p.Key)
		}
		if haveUse {
			if p.Use == p.Key {
				return validationErrorf(`invalid "use" value for probe %s`, p.Key)
			}
		}
		if haveConfig {
			origConfig := lookupCurrentConfig(current, p.Key)
			if err := revertSecrets(p.Config, origConfig); err != nil {
				return validationErrorf("probe %s: %v", p.Key, err)
			}
		}
	}

	knownAgent := map[string]bool{}
	for _, k := range KnownAgentKeys {
		knownAgent[k] = true
	}
	for i := range incoming.Agents {
		a := &incoming.Agents[i]
		if !knownAgent[a.Key] {
			return validationErrorf("unknown agent key %q", a.Key)
		}
		if !a.Enabled {
			if a.Compose != nil {
				return validationErrorf("agent %s is disabled but has compose set", a.Key)
			}
			continue
		}
		if a.Compose == nil {
			return validationErrorf("agent %s is enabled but has no compose", a.Key)
		}
		wantPrefix := "ghcr.io/infrasonar/" + a.Key + "-agent"
		if !hasImagePrefix(a.Compose.Image, wantPrefix) {
			return validationErrorf("agent %s image must begin with %q", a.Key, wantPrefix)
		}
		for envKey, envVal := range a.Compose.Environment {
			validator, ok := AgentEnvAllowList[envKey]
			if !ok {
				return validationErrorf("agent %s: environment key %q is not allowed", a.Key, envKey)
			}
			s, ok := envVal.(string)
			if !ok {
				return validationErrorf("agent %s: environment key %q must be a string", a.Key, envKey)
			}
			if err := validator(s); err != nil {
				return validationErrorf("agent %s: %v", a.Key, err)
			}
		}
	}

	for i := range incoming.Configs {
		c := &incoming.Configs[i]
		if !KeyPattern.MatchString(c.Name) {
			return validationErrorf("invalid config name %q", c.Name)
		}
		if c.Like != "" && !KeyPattern.MatchString(c.Like) {
			return validationErrorf("invalid config like %q", c.Like)
		}
		if other, dup := seen[c.Name]; dup {
			return validationErrorf("duplicate identifier %q (config vs %s)", c.Name, other)
		}
		seen[c.Name] = "config"

		haveConfig := c.Config != nil && !c.Config.IsNull()
		haveUse := c.Use != ""
		if haveConfig == haveUse {
			return validationErrorf("config %s must set exactly one of config or use", c.Name)
		}
		if haveUse && c.Use == c.Name {
			return validationErrorf("invalid \"use\" value for config %s", c.Name)
		}
		if haveConfig {
			origConfig := lookupCurrentConfig(current, c.Name)
			if err := revertSecrets(c.Config, origConfig); err != nil {
				return validationErrorf("config %s: %v", c.Name, err)
			}
		}
	}

	// "use" must reference a known probe key or named-config name.
	for _, p := range incoming.Probes {
		if p.Enabled && p.Use != "" {
			if _, ok := seen[p.Use]; !ok {
				return validationErrorf(`invalid "use" value for probe %s`, p.Key)
			}
		}
	}
	for _, c := range incoming.Configs {
		if c.Use != "" {
			if _, ok := seen[c.Use]; !ok {
				return validationErrorf("invalid \"use\" value for config %s", c.Name)
			}
		}
	}

	if cycle := buildUseGraph(incoming).detectCycle(); cycle != nil {
		return validationErrorf("use reference cycle: %v", cycle)
	}

	if incoming.AgentcoreZoneID < 0 || incoming.AgentcoreZoneID > 9 {
		return validationErrorf("agentcore_zone_id out of range: %d", incoming.AgentcoreZoneID)
	}

	if err := validateToken("agent_token", incoming.AgentToken, currentEnv.AgentToken); err != nil {
		return err
	}
	if err := validateToken("agentcore_token", incoming.AgentcoreToken, currentEnv.AgentcoreToken); err != nil {
		return err
	}

	if incoming.RA.Allowed && incoming.RA.Enabled {
		until := time.Unix(incoming.RA.Until, 0)
		window := until.Sub(now)
		if window <= raMinWindow || window > raMaxWindow {
			incoming.RA.Enabled = false
		}
	}

	return nil
}

// hasImagePrefix reports whether image begins with prefix.
func hasImagePrefix(image, prefix string) bool {
	return len(image) >= len(prefix) && image[:len(prefix)] == prefix
}

// validateToken checks a wire TokenField: a fresh hex string is always
// accepted (the hex-format check already happened during JSON unmarshal); a
// Keep=true value requires a non-empty stored value to keep.
func validateToken(name string, t TokenField, stored string) error {
	if t.Keep && stored == "" {
		return validationErrorf("%s: keep requested but no value is currently stored", name)
	}
	return nil
}

// lookupCurrentConfig returns the "config" sub-document currently stored
// for key in the configurations manifest, or nil if absent.
func lookupCurrentConfig(current *manifest.Value, key string) *manifest.Value {
	m, ok := current.AsMap()
	if !ok {
		return nil
	}
	entry, ok := m.Get(key)
	if !ok {
		return nil
	}
	entryMap, ok := entry.AsMap()
	if !ok {
		return nil
	}
	cfg, ok := entryMap.Get("config")
	if !ok {
		return nil
	}
	return cfg
}
