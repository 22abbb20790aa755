package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FallbackSecretKey is used when neither secret variable is set. Load rejects
// it outside debug mode.
const FallbackSecretKey = "your-default-secret-key"

const defaultDebugValue = "True"

// parseTruthy matches the accepted spellings exactly; surrounding whitespace
// makes a value false.
func parseTruthy(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// resolveSecret returns the first non-empty secret variable.
func resolveSecret(env *Environment) (string, string) {
	for _, key := range []string{"DJANGO_SECRET_KEY", "SECRET_KEY"} {
		if v, src, ok := env.Lookup(key); ok && v != "" {
			return v, src
		}
	}
	return FallbackSecretKey, SourceDefault
}

// resolveDebug prefers DJANGO_DEBUG whenever it is set, even to an empty
// string, and defaults to true.
func resolveDebug(env *Environment) (bool, string) {
	if v, src, ok := env.Lookup("DJANGO_DEBUG"); ok {
		return parseTruthy(v), src
	}
	if v, src, ok := env.Lookup("DEBUG"); ok {
		return parseTruthy(v), src
	}
	return parseTruthy(defaultDebugValue), SourceDefault
}

// resolveAllowedHosts accepts a JSON array or a comma separated list and
// never fails.
func resolveAllowedHosts(env *Environment) ([]string, string) {
	for _, key := range []string{"DJANGO_ALLOWED_HOSTS", "ALLOWED_HOSTS"} {
		if v, src, ok := env.Lookup(key); ok && v != "" {
			return parseHostList(v), src
		}
	}
	return []string{}, SourceDefault
}

func parseHostList(raw string) []string {
	if hosts, err := parseJSONList(raw); err == nil {
		return dedupe(hosts)
	}
	return dedupe(splitAndTrim(raw))
}

// resolveList parses a JSON array from key, falling back to def when the
// variable is unset. A set but malformed value is an error.
func resolveList(env *Environment, key, def string) ([]string, string, error) {
	raw, src, ok := env.Lookup(key)
	if !ok {
		raw, src = def, SourceDefault
	}
	list, err := parseJSONList(raw)
	if err != nil {
		return nil, src, fmt.Errorf("%s: %w", key, err)
	}
	return list, src, nil
}

func parseJSONList(raw string) ([]string, error) {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedList, err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// resolveLogLevels reads one level per known logger. Unknown level names are
// reported and replaced by INFO.
func resolveLogLevels(env *Environment) (map[string]LogLevel, map[string]string, []string) {
	levels := make(map[string]LogLevel, len(logLevelVars))
	sources := make(map[string]string, len(logLevelVars))
	var warnings []string

	for _, lv := range logLevelVars {
		raw, src, ok := env.Lookup(lv.env)
		if !ok {
			levels[lv.logger] = LevelInfo
			sources[lv.logger] = SourceDefault
			continue
		}
		level, err := ParseLogLevel(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using INFO", lv.env, err))
		}
		levels[lv.logger] = level
		sources[lv.logger] = src
	}

	return levels, sources, warnings
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
