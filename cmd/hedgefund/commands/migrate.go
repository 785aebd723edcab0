package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/hedgefund/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "데이터베이스 마이그레이션 적용",
	Long: `Applies the embedded SQL migrations that have not run yet.
Already applied versions are skipped, so the command is safe to repeat.

Example:
  go run ./cmd/hedgefund migrate
  go run ./cmd/hedgefund migrate --list`,
	RunE: runMigrate,
}

var migrateList bool

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateList, "list", false, "print embedded migrations without applying them")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if migrateList {
		migrations, err := database.Migrations()
		if err != nil {
			return err
		}
		for _, m := range migrations {
			fmt.Fprintf(out, "  - %s\n", m.Version)
		}
		return nil
	}

	a, err := loadApp(os.Stderr)
	if err != nil {
		return err
	}
	if a.cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if err := a.openStore(); err != nil {
		return err
	}
	defer a.Close()

	applied, err := a.db.Migrate(context.Background())
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if len(applied) == 0 {
		fmt.Fprintln(out, "✅ Database is up to date")
		return nil
	}
	fmt.Fprintf(out, "✅ Applied %d migration(s):\n", len(applied))
	for _, v := range applied {
		fmt.Fprintf(out, "  - %s\n", v)
	}
	return nil
}
