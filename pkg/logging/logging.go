package logging

import (
	"log"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// Logger is the global logger instance. It discards everything until Setup runs.
var Logger = zap.NewNop()

// Setup builds the global logger. Debug selects zap's development config.
func Setup(debug bool, appName, appVersion string) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	cfg.InitialFields = map[string]interface{}{
		"appName":    appName,
		"appVersion": appVersion,
	}

	logger, err := cfg.Build()
	if err != nil {
		Logger = zap.NewExample()
		return err
	}

	Logger = logger
	zap.ReplaceGlobals(Logger)
	return nil
}

// Sync flushes the global logger when stderr can be synced. Syncing a pipe or
// console device fails with EINVAL on some platforms, which is not reported.
func Sync() {
	if !term.IsTerminal(int(os.Stderr.Fd())) && !isRegularFile(os.Stderr) {
		return
	}
	if err := Logger.Sync(); err != nil {
		if !strings.Contains(strings.ToLower(err.Error()), "invalid argument") {
			log.Printf("Logger sync failed: %v", err)
		}
	}
}

// isRegularFile checks if the given file is a regular file.
func isRegularFile(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
