package main

import (
	"github.com/mozilla-ai/lumigator/internal/config"
	"github.com/mozilla-ai/lumigator/pkg/log"
	"go.uber.org/zap"
)

// initLogging installs the process logger as the zap global and returns the cleanup func.
func initLogging(cfg *config.Config) func() {
	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel), cfg.Service.LogFormat)
	undo := zap.ReplaceGlobals(logger)

	return func() {
		undo()
		_ = logger.Sync()
	}
}
