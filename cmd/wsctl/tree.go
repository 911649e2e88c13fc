package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/loomhq/workspace/internal/vfs"
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Dump the path index as a tree, rooted at path (default /)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := "/"
		if len(args) == 1 {
			root = args[0]
		}
		ctx := context.Background()
		c, fsys, err := openClient(ctx)
		if err != nil {
			fatal(err)
		}
		defer c.Destroy(ctx)

		// lipgloss's adaptive colors only pick light/dark correctly once
		// the output's color profile is known — detect it via termenv the
		// way a real terminal renderer would, rather than assuming ANSI
		// is always available (e.g. when piped to a file).
		out := termenv.NewOutput(os.Stdout)
		lipgloss.SetColorProfile(out.Profile)

		fmt.Println(boldStyle.Render(root))
		printTree(ctx, fsys, root, "")
	},
}

func printTree(ctx context.Context, fsys *vfs.Filesystem, path, prefix string) {
	entries, err := fsys.ReadDirWithFileTypes(path)
	if err != nil {
		fmt.Println(failStyle.Render(prefix + "  <error: " + err.Error() + ">"))
		return
	}
	for i, e := range entries {
		last := i == len(entries)-1
		branch := "├── "
		childPrefix := prefix + "│   "
		if last {
			branch = "└── "
			childPrefix = prefix + "    "
		}
		label := e.Name
		if e.IsDir {
			label = boldStyle.Render(e.Name + "/")
		}
		fmt.Println(prefix + mutedStyle.Render(branch) + label)
		if e.IsDir {
			childPath := path
			if childPath != "/" {
				childPath += "/"
			}
			printTree(ctx, fsys, childPath+e.Name, childPrefix)
		}
	}
}
