package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cityteam/stats-sub000/internal/core"
	"github.com/cityteam/stats-sub000/internal/services"
	"github.com/cityteam/stats-sub000/internal/storage"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users in the SQLite database",
	}

	var (
		name     string
		password string
		scope    string
		inactive bool
	)
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user",
		Long: `Create a user directly in the database. Use this to seed the first
superuser before the API is reachable:

  statsctl user add admin --scope superuser --password "$ADMIN_PASSWORD"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("STATS_PASSWORD")
			}
			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			if name == "" {
				name = args[0]
			}
			u, err := services.NewUserService(repo, nil).CreateUser(cmd.Context(), core.User{
				Name:     name,
				Username: args[0],
				Password: password,
				Scope:    scope,
				Active:   !inactive,
			})
			if err != nil {
				return err
			}
			logger.Info("Created user", "user_id", u.ID, "username", u.Username)
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", u.ID, u.Username)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name (default username)")
	add.Flags().StringVar(&password, "password", "", "password (default STATS_PASSWORD)")
	add.Flags().StringVar(&scope, "scope", "", `space separated scope, e.g. "pdx:admin"`)
	add.Flags().BoolVar(&inactive, "inactive", false, "create the user disabled")

	var activeOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			users, err := repo.ListUsers(cmd.Context(), activeOnly)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tSCOPE\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Name, u.Scope, u.Active)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&activeOnly, "active", false, "only active users")

	cmd.AddCommand(add, list)
	return cmd
}
