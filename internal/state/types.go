// Package state implements the State Core: the
// declared-state projection (Get), validation+merge+reconciliation (Set),
// the update delegation, and the remote-access expiry reaper.
package state

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/infrasonar/rapp/internal/manifest"
)

// KeyPattern matches valid probe keys and config names.
var KeyPattern = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]{0,40}$`)

// KnownAgentKeys is the fixed, closed set of built-in agent keys. Kept as
// a single named slice so a future third agent is a one-line change.
var KnownAgentKeys = []string{"docker", "discovery"}

// agentEnvValidator checks a single allow-listed agent environment value.
type agentEnvValidator func(value string) error

// AgentEnvAllowList is the fixed allow-list of environment keys accepted in
// an enabled agent's compose.environment, each
// with its own validator.
var AgentEnvAllowList = map[string]agentEnvValidator{
	"LOG_LEVEL":     validateLogLevel,
	"LOG_COLORIZED": validateZeroOrOne,
}

func validateLogLevel(v string) error {
	switch v {
	case "debug", "info", "warning", "warn", "error", "critical",
		"DEBUG", "INFO", "WARNING", "WARN", "ERROR", "CRITICAL":
		return nil
	}
	return fmt.Errorf("invalid LOG_LEVEL: %q", v)
}

func validateZeroOrOne(v string) error {
	if v == "0" || v == "1" {
		return nil
	}
	return fmt.Errorf("must be \"0\" or \"1\", got %q", v)
}

// ComposeSpec is the wire form of a service's image and environment.
type ComposeSpec struct {
	Image       string         `json:"image"`
	Environment map[string]any `json:"environment,omitempty"`
}

// TokenField is either a 32-char lowercase hex string (a fresh value to
// set) or the boolean true (meaning "unchanged, keep the stored value").
type TokenField struct {
	Keep  bool
	Value string
}

var hexToken = regexp.MustCompile(`^[0-9a-f]{32}$`)

// UnmarshalJSON accepts either a 32-char lowercase hex string or the boolean
// true; the boolean false is rejected.
func (t *TokenField) UnmarshalJSON(data []byte) error {
	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil {
		if !asBool {
			return fmt.Errorf("token field boolean must be true")
		}
		t.Keep = true
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("token field must be a boolean or a 32-char hex string")
	}
	if !hexToken.MatchString(asString) {
		return fmt.Errorf("token field must be a 32-char lowercase hex string")
	}
	t.Value = asString
	return nil
}

// MarshalJSON emits the hex string when Value is set, otherwise true when
// Keep and false when neither is set.
func (t TokenField) MarshalJSON() ([]byte, error) {
	if t.Keep || t.Value != "" {
		if t.Value != "" {
			return json.Marshal(t.Value)
		}
		return json.Marshal(true)
	}
	return json.Marshal(false)
}

// WireProbe is a single entry in the declared state's "probes" list.
type WireProbe struct {
	Key     string          `json:"key"`
	Compose ComposeSpec     `json:"compose"`
	Config  *manifest.Value `json:"config,omitempty"`
	Use     string          `json:"use,omitempty"`
	Enabled bool            `json:"enabled"`
}

// WireAgent is a single entry in the declared state's "agents" list.
type WireAgent struct {
	Key     string       `json:"key"`
	Compose *ComposeSpec `json:"compose,omitempty"`
	Enabled bool         `json:"enabled"`
}

// WireNamedConfig is a single entry in the declared state's "configs" list.
type WireNamedConfig struct {
	Name   string          `json:"name"`
	Like   string          `json:"like"`
	Config *manifest.Value `json:"config,omitempty"`
	Use    string          `json:"use,omitempty"`
}

// WireRemoteAccess is the declared state's "ra" field.
type WireRemoteAccess struct {
	Allowed bool   `json:"allowed"`
	Enabled bool   `json:"enabled,omitempty"`
	Until   int64  `json:"until,omitempty"`
	Info    string `json:"info,omitempty"`
}

// DeclaredState is the full wire document exchanged by READ/PUSH.
type DeclaredState struct {
	Probes           []WireProbe       `json:"probes"`
	Agents           []WireAgent       `json:"agents"`
	Configs          []WireNamedConfig `json:"configs"`
	AgentToken       TokenField        `json:"agent_token"`
	AgentcoreToken   TokenField        `json:"agentcore_token"`
	AgentcoreZoneID  int               `json:"agentcore_zone_id"`
	SocatTargetAddr  string            `json:"socat_target_addr"`
	RA               WireRemoteAccess  `json:"ra"`
}
