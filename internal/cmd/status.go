package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/swarmcoord/internal/config"
	"github.com/Iron-Ham/swarmcoord/internal/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current claims table",
	Long: `Display the persisted claims table for the session in the current
directory. Columns are agent_id | file_path | claimed_at | status, the
format external audit tooling consumes.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	if len(reg.Snapshot()) == 0 {
		fmt.Println("No claims recorded")
		return nil
	}
	return reg.WriteTable(os.Stdout)
}

// openRegistry opens the session registry read-only style: no bus, no
// mutation intended.
func openRegistry() (*registry.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	reg, err := registry.New(cfg.Session.ResolveDir(cwd), nil)
	if err != nil {
		return nil, fmt.Errorf("open claim registry: %w", err)
	}
	return reg, nil
}
