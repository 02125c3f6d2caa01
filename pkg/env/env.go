// Package env reads process settings that must be known before the typed
// configuration is loaded.
package env

import (
	"os"
	"strconv"
	"strings"
)

const (
	// LogFormat selects "json" (default) or "console" log output.
	LogFormat = "LOG_FORMAT"
	// WorkerID overrides the hostname as this process's instance id.
	WorkerID = "BANKMS_WORKER_ID"
)

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val, ok := lookup(key); ok {
		return val
	}
	return fallback
}

// Bool parses key as a boolean, returning fallback when it is unset or unparsable.
func Bool(key string, fallback bool) bool {
	val, ok := lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	val = strings.TrimSpace(val)
	return val, val != ""
}
