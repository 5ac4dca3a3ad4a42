// Package logging holds the process-wide zap logger. Init is called once from
// main; packages log through L. Tests that exercise services directly can
// leave L as the default no-op-ish development logger.
package logging

import (
	"go.uber.org/zap"
)

// L is the shared sugared logger. Defaults to a development logger so tests
// and tools work without calling Init.
var L = zap.Must(zap.NewDevelopment()).Sugar()

// Init replaces L with a production or development logger depending on env.
func Init(env string) {
	var base *zap.Logger
	if env == "production" {
		base = zap.Must(zap.NewProduction())
	} else {
		base = zap.Must(zap.NewDevelopment())
	}
	L = base.Sugar()
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	_ = L.Sync()
}
