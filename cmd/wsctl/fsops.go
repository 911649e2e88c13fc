package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder (and its ancestors)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, fsys, err := openClient(ctx)
		if err != nil {
			fatal(err)
		}
		defer c.Destroy(ctx)

		if _, err := fsys.Mkdir(args[0], true); err != nil {
			fatal(err)
		}
		fmt.Println(accentStyle.Render("created ") + args[0])
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <path> <content...>",
	Short: "Write (overwrite) a file's content",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, fsys, err := openClient(ctx)
		if err != nil {
			fatal(err)
		}
		defer c.Destroy(ctx)

		content := strings.Join(args[1:], " ")
		if err := fsys.WriteFile(ctx, args[0], content); err != nil {
			fatal(err)
		}
		fmt.Println(accentStyle.Render("wrote ") + args[0])
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file's current content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, fsys, err := openClient(ctx)
		if err != nil {
			fatal(err)
		}
		defer c.Destroy(ctx)

		content, err := fsys.ReadFile(ctx, args[0])
		if err != nil {
			fatal(err)
		}
		fmt.Println(content)
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a folder's children",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		ctx := context.Background()
		c, fsys, err := openClient(ctx)
		if err != nil {
			fatal(err)
		}
		defer c.Destroy(ctx)

		entries, err := fsys.ReadDirWithFileTypes(path)
		if err != nil {
			fatal(err)
		}
		for _, e := range entries {
			if e.IsDir {
				fmt.Println(boldStyle.Render(e.Name + "/"))
			} else {
				fmt.Println(e.Name)
			}
		}
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <from> <to>",
	Short: "Move or rename a file or folder",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, fsys, err := openClient(ctx)
		if err != nil {
			fatal(err)
		}
		defer c.Destroy(ctx)

		if err := fsys.Move(args[0], args[1]); err != nil {
			fatal(err)
		}
		fmt.Printf("%s -> %s\n", args[0], args[1])
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file or (with --recursive) a folder subtree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		recursive, _ := cmd.Flags().GetBool("recursive")
		ctx := context.Background()
		c, fsys, err := openClient(ctx)
		if err != nil {
			fatal(err)
		}
		defer c.Destroy(ctx)

		if err := fsys.Remove(ctx, args[0], recursive); err != nil {
			fatal(err)
		}
		fmt.Println(mutedStyle.Render("removed ") + args[0])
	},
}

func init() {
	rmCmd.Flags().Bool("recursive", false, "remove a non-empty folder's whole subtree")
}
