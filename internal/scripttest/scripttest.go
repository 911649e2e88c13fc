// Package scripttest provides a thin wrapper around rsc.io/script so
// command packages can exercise their CLI end to end from .txt script
// files (testdata/script/*.txt) instead of hand-rolled exec.Command
// plumbing, the way cmd/bd's own integration suite drives a compiled
// binary. Callers get a base Engine preloaded with script's default
// commands and conditions and add their own CLI-invoking command on
// top of it.
package scripttest

import (
	"context"
	"os"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"
)

// BaseEngine returns an Engine carrying rsc.io/script's default
// commands (cp, mkdir, exists, ...) and conditions, ready for a
// caller to layer a domain command (e.g. "wsctl") onto via
// engine.Cmds[name] = script.Command(...).
func BaseEngine() *script.Engine {
	e := script.NewEngine()
	e.Cmds = script.DefaultCmds()
	e.Conds = script.DefaultConds()
	return e
}

// Run executes every script file matching pattern (a glob such as
// "testdata/script/*.txt") against engine, one subtest per file, with
// the host process's environment available to scripts.
func Run(t *testing.T, engine *script.Engine, pattern string) {
	t.Helper()
	scripttest.Test(t, context.Background(), func() *script.Engine { return engine }, os.Environ(), pattern)
}
