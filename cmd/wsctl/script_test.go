package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	"rsc.io/script"

	"github.com/loomhq/workspace/internal/scripttest"
)

// TestScripts drives the wsctl command tree in-process against the
// .txt scripts under testdata/script, the way cmd/bd's integration
// tests drive a built binary. Each script only exercises the happy
// path: command Run funcs call fatal() on error, which calls
// os.Exit(1) and would take the whole test binary down with it, so
// scripts here never trigger a command failure.
func TestScripts(t *testing.T) {
	engine := scripttest.BaseEngine()
	engine.Cmds["wsctl"] = script.Command(
		script.CmdUsage{
			Summary: "run the wsctl command tree in-process",
			Args:    "args...",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			var stdout, stderr bytes.Buffer
			// Command Run funcs print with fmt.Println, i.e. to
			// os.Stdout, so capture that as well as cobra's own writer.
			r, w, err := os.Pipe()
			if err != nil {
				return nil, err
			}
			copied := make(chan struct{})
			go func() {
				io.Copy(&stdout, r)
				close(copied)
			}()
			realStdout := os.Stdout
			os.Stdout = w
			rootCmd.SetArgs(args)
			rootCmd.SetOut(w)
			rootCmd.SetErr(&stderr)
			runErr := rootCmd.Execute()
			os.Stdout = realStdout
			w.Close()
			<-copied
			r.Close()
			return func(*script.State) (string, string, error) {
				return stdout.String(), stderr.String(), runErr
			}, nil
		},
	)
	scripttest.Run(t, engine, "testdata/script/*.txt")
}
