package config

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix recognized by ApplyEnvOverlay.
const EnvPrefix = "AGENTIC_OS_"

// ApplyEnvOverlay scans environ for AGENTIC_OS_-prefixed variables and
// overrides the corresponding config value. `__` separates nesting
// levels, lowercased to match yaml field names: AGENTIC_OS_GATEWAY__PORT
// overrides gateway.port. Values are coerced: "true"/"false" to bool, a
// parseable number to int/float, otherwise left as a string. Variables
// that don't resolve to any existing field are ignored rather than
// rejected, since the overlay is additive convenience, not a second
// schema.
func ApplyEnvOverlay(cfg *Config, environ []string) {
	overrides := collectOverrides(environ)
	if len(overrides) == 0 {
		return
	}

	raw := asRawMap(cfg)
	for path, value := range overrides {
		setNested(raw, path, value)
	}
	mergeBack(cfg, raw)
}

// collectOverrides maps a lowercased, dot-joined config path to its raw
// environment string value.
func collectOverrides(environ []string) map[string]string {
	out := map[string]string{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		rest := strings.TrimPrefix(k, EnvPrefix)
		if rest == "" {
			continue
		}
		segments := strings.Split(rest, "__")
		for i, seg := range segments {
			segments[i] = strings.ToLower(seg)
		}
		out[strings.Join(segments, ".")] = v
	}
	return out
}

func asRawMap(cfg *Config) map[string]any {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return map[string]any{}
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil || raw == nil {
		return map[string]any{}
	}
	return raw
}

func mergeBack(cfg *Config, raw map[string]any) {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return
	}
	var overlaid Config
	if err := yaml.Unmarshal(data, &overlaid); err != nil {
		return
	}
	*cfg = overlaid
}

// setNested walks path (dot-separated, already lowercased) into m,
// creating intermediate maps as needed, and sets the coerced leaf value.
func setNested(m map[string]any, path, value string) {
	segments := strings.Split(path, ".")
	cur := m
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = coerce(value)
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}

// coerce applies the "true"/"false" -> bool, numeric-literal -> number,
// else string rule.
func coerce(v string) any {
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
