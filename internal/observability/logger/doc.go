// Package logger provides a singleton Zap logger with context-based scoping.
//
// Initialization (once, in main):
//
//	logger.Init(logger.Config{Env: "prod", Level: "info"})
//	defer logger.Sync()
//
// In handlers/services (with context):
//
//	log := logger.From(ctx)
//	log.Info("issuing token", logger.ClientID(id))
//
// Without context the singleton is used as fallback, so From(ctx) is always
// safe to call regardless of whether a middleware injected a scoped logger.
package logger
