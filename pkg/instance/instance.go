package instance

import (
	"os"

	"github.com/void1100/Bank-management-system/pkg/env"
)

// GetID returns the worker instance identifier used in logs and metrics.
func GetID() string {
	if id := env.Get(env.WorkerID, ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
