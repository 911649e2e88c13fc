// Command wsctl is a small inspection CLI exercising the workspace
// engine end to end: creating a workspace, writing and reading files
// through its virtual filesystem, and listing the dynamic tables
// layered over the same document.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/loomhq/workspace/internal/persist/boltpersist"
	"github.com/loomhq/workspace/internal/vfs"
	"github.com/loomhq/workspace/internal/workspace"
)

var (
	dataDir     string
	workspaceID string
	jsonOutput  bool
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"})
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"})
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"})
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// persistedLogs names every named log this CLI's workspace replicates
// to disk: the four dynamic-workspace substores plus the filesystem's
// files metadata table (table.New prefixes table names with "table:").
var persistedLogs = []string{"dyn:tables", "dyn:fields", "dyn:rows", "dyn:cells", "table:files"}

// openClient builds and readies a workspace.Client backed by a bbolt
// file under dataDir, with a vfs.Filesystem layered over the same
// document so file metadata and dynamic tables persist side by side.
func openClient(ctx context.Context) (*workspace.Client, *vfs.Filesystem, error) {
	var fsys *vfs.Filesystem
	c := workspace.New(workspace.Definition{ID: workspaceID}).
		WithExtension(boltpersist.Factory(dataDir, persistedLogs, nil)).
		Build()

	if err := c.WhenReady(ctx); err != nil {
		return nil, nil, fmt.Errorf("workspace not ready: %w", err)
	}
	fsys = vfs.NewFilesystem(c.Doc(), nil)
	return c, fsys, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, failStyle.Render("error: "+err.Error()))
	os.Exit(1)
}

var rootCmd = &cobra.Command{
	Use:           "wsctl",
	Short:         "Inspect and drive a workspace engine instance",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./wsctl-data", "directory holding the workspace's bbolt snapshot")
	rootCmd.PersistentFlags().StringVar(&workspaceID, "id", "default", "workspace id")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON where applicable")

	rootCmd.AddCommand(mkdirCmd, writeCmd, catCmd, lsCmd, treeCmd, mvCmd, rmCmd, tablesCmd, createTableCmd)
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fatal(fmt.Errorf("%v", r))
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}
