package main

import (
	"log"
	"os"

	"amalgam/cmd"
	"amalgam/pkg/logging"
	"amalgam/pkg/version"

	"go.uber.org/zap"
)

func main() {
	if err := logging.Setup(false, version.AppName, version.Get().Version); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Execute the root command
	if err := cmd.Execute(logging.Logger); err != nil {
		logging.Logger.Debug("amalgam execution failed", zap.Error(err))
		logging.Sync()
		os.Exit(1)
	}

	logging.Sync()
}
