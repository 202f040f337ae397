package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	workspaceDBPath   string
	workspaceUsername string
)

// workspaceCmd represents the workspace command group
var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Workspace management commands",
	Long: `Commands for inspecting and maintaining TaskHive workspaces.

These commands operate directly on the database file.

Examples:
  # Show the workspaces a user belongs to
  hivectl workspace list --username alice

  # Purge archived workspaces whose grace period has passed
  hivectl workspace purge`,
}

// workspaceListCmd lists a user's workspaces
var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's workspaces",
	Long: `List the workspaces a user belongs to, with the user's role
in each.

Example:
  hivectl workspace list --username alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if workspaceUsername == "" {
			return fmt.Errorf("--username is required")
		}

		store, err := openDatabase(workspaceDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		user, err := store.Users().GetByUsername(ctx, workspaceUsername)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user '%s' not found", workspaceUsername)
		}

		memberships, err := store.Workspaces().ListForUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list workspaces: %w", err)
		}

		if len(memberships) == 0 {
			fmt.Printf("User '%s' belongs to no workspaces.\n", user.Username)
			return nil
		}

		// Print header
		fmt.Printf("\n%-36s  %-25s  %-8s  %-9s  %s\n",
			"ID", "NAME", "ROLE", "ARCHIVED", "JOINED")
		fmt.Println(strings.Repeat("-", 100))

		for _, m := range memberships {
			archived := "-"
			if m.Workspace.IsArchived {
				archived = "yes"
			}
			fmt.Printf("%-36s  %-25s  %-8s  %-9s  %s\n",
				m.Workspace.ID,
				truncate(m.Workspace.Name, 25),
				m.Role,
				archived,
				m.JoinedAt.Format("2006-01-02 15:04"),
			)
		}
		fmt.Printf("\nTotal: %d workspace(s)\n", len(memberships))

		return nil
	},
}

// workspacePurgeCmd removes archived workspaces past their grace period
var workspacePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Purge expired archived workspaces",
	Long: `Delete archived workspaces whose deletion schedule has passed.

The server's background loop runs the same purge on an interval; this
command exists for one-off maintenance.

Example:
  hivectl workspace purge`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(workspaceDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Workspaces().PurgeExpiredArchived(context.Background(), time.Now())
		if err != nil {
			return fmt.Errorf("purge workspaces: %w", err)
		}

		fmt.Printf("Purged %d workspace(s).\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspacePurgeCmd)

	for _, cmd := range []*cobra.Command{workspaceListCmd, workspacePurgeCmd} {
		cmd.Flags().StringVar(&workspaceDBPath, "db", defaultDBPath, "path to SQLite database file")
	}

	workspaceListCmd.Flags().StringVar(&workspaceUsername, "username", "", "username to look up (required)")
	workspaceListCmd.MarkFlagRequired("username")
}

// truncate shortens s to max characters with a ".." suffix.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 2 {
		return s[:max]
	}
	return s[:max-2] + ".."
}
