// Command replay feeds a recorded signal script through the interview
// pipeline. It is used to calibrate posture and stress thresholds offline.
package main

import (
	"os"

	"github.com/lexiqai/interview-coach/internal/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger := observability.GetLogger()
		logger.Error().Err(err).Msg("Replay failed")
		os.Exit(1)
	}
}
