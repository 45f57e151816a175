// Package instance names the running process in logs.
package instance

import (
	"os"

	"github.com/angelmondragon/library-backend/pkg/env"
)

// ID returns LIBRARY_INSTANCE_ID, then the platform dyno name, then the
// hostname, falling back to "local".
func ID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return env.First(host, "LIBRARY_INSTANCE_ID", "DYNO")
}
