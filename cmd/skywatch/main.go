// Command skywatch scans radio bands for drone control and telemetry
// emissions and raises alerts when a peak matches a known signature.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
