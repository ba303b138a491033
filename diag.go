// diag.go - Structured diagnostic output for the CLI
package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newDiagLogger builds the stderr console logger the CLI reports through.
// Warnings from the planner (stale duplicate rules and the like) go here;
// the byte-level serializer spew stays behind VerboseMode.
func newDiagLogger(verbose bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		// The development config only fails on bad user options, and we
		// pass none.
		panic(err)
	}
	return logger.Sugar()
}

// reportDiagnostics logs planner findings at warning level. These never
// fail the build: first-match-wins is deterministic, but the duplicate
// rule behind it is worth surfacing.
func reportDiagnostics(log *zap.SugaredLogger, diags []Diagnostic) {
	for _, d := range diags {
		log.Warnw("ambiguous section match",
			"section", d.Section,
			"chosen", d.Chosen,
			"shadowed", d.Shadowed,
		)
	}
}
