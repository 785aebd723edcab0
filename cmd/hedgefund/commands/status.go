package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/httputil"
	"github.com/wonny/hedgefund/pkg/logger"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "API 서버 상태 확인",
	Long: `Queries /health of a running API and prints the dependency status.
Exits non-zero when the server is unreachable or degraded.

Example:
  go run ./cmd/hedgefund status
  go run ./cmd/hedgefund status --server http://localhost:8080`,
	RunE: runStatus,
}

var (
	statusServer  string
	statusTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:3000", "base URL of the API")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 10*time.Second, "overall timeout")
}

func runStatus(cmd *cobra.Command, args []string) error {
	// The server may run elsewhere, so a partial config is enough here
	log := logger.NewWithWriter(&config.Config{LogLevel: "warn", LogFormat: "console"}, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	client := httputil.New(5*time.Second, log).WithRetry(2, 500*time.Millisecond)
	resp, err := client.Get(ctx, strings.TrimRight(statusServer, "/")+"/health")
	if err != nil {
		return fmt.Errorf("❌ %s unreachable: %w", statusServer, err)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(resp.Body, &health); err != nil {
		return fmt.Errorf("❌ unexpected /health response (%d): %w", resp.StatusCode, err)
	}

	out := cmd.OutOrStdout()
	pretty, _ := json.MarshalIndent(health, "", "  ")
	fmt.Fprintln(out, string(pretty))

	if !resp.OK() {
		return fmt.Errorf("❌ server degraded (%d)", resp.StatusCode)
	}
	fmt.Fprintln(out, "✅ Server healthy")
	return nil
}
