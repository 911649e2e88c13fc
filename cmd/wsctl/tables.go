package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the dynamic tables layered over this workspace's document",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c, _, err := openClient(ctx)
		if err != nil {
			fatal(err)
		}
		defer c.Destroy(ctx)

		tables := c.Workspace().Tables.List()
		if len(tables) == 0 {
			fmt.Println(mutedStyle.Render("(no tables)"))
			return
		}
		for _, t := range tables {
			fmt.Printf("%s  %s  %s\n", accentStyle.Render(t.ID), boldStyle.Render(t.Name), t.Description)
		}
	},
}

var createTableCmd = &cobra.Command{
	Use:   "create-table <id> <name>",
	Short: "Create a new dynamic table",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")
		ctx := context.Background()
		c, _, err := openClient(ctx)
		if err != nil {
			fatal(err)
		}
		defer c.Destroy(ctx)

		c.Workspace().Tables.Create(args[0], args[1], description, "")
		fmt.Println(accentStyle.Render("created table ") + args[0])
	},
}

func init() {
	createTableCmd.Flags().String("description", "", "table description")
}
