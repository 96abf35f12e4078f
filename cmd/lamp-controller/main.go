// Command lamp-controller drives a relay lamp from MQTT commands or an
// occupancy sensor and reports its state to a ThingsBoard-style broker.
package main

import (
	"fmt"
	"os"

	"github.com/sweeney/lamp-controller/internal/logger"
)

// Set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	defer logger.Sync()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
