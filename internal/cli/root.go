// Package cli implements sanctuaryctl, the operator tool for posting
// notifications and inspecting their push deliveries.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sanctuaryweb/site/internal/cfg"
	"github.com/sanctuaryweb/site/internal/storage/sqlitedb"
	"github.com/sanctuaryweb/site/internal/version"
)

const defaultDatabasePath = "sanctuary.db"

type rootOptions struct {
	databasePath string
	jsonOutput   bool
	now          func() time.Time
}

// NewRootCommand builds the command tree. Output goes to out so tests can
// capture it.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{now: time.Now}

	root := &cobra.Command{
		Use:           "sanctuaryctl",
		Short:         "Operate the sanctuary site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	dbPath := os.Getenv(cfg.EnvPrefix + "DATABASE_PATH")
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}
	root.PersistentFlags().StringVar(&opts.databasePath, "database-path", dbPath, "sqlite database shared with the server")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of tables")

	root.AddCommand(newNotifyCommand(opts), newVersionCommand())
	return root
}

// withDB opens the database (applying migrations) for the duration of fn.
func (o *rootOptions) withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	db, err := sqlitedb.Open(ctx, o.databasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vi := version.Get()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit=%s, go=%s, dirty=%s)\n",
				vi.AppName, vi.Version, vi.Commit, vi.GoVersion, vi.Dirty())
			return err
		},
	}
}
