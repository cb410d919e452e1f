package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var auditJSON bool

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print the append-only claim audit trail",
	Long: `Replay the session's claim audit log in recorded order. Every claim,
promotion, release, and conflict marker appears here even after the
claims table has been trimmed to final state.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "emit audit records as JSON")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	records := reg.History()
	if auditJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("Audit log is empty")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("#%-4d %-22s %-10s %-40s %s\n",
			rec.Seq,
			rec.RecordedAt.Format("2006-01-02T15:04:05Z07:00"),
			rec.Status,
			rec.FilePath,
			rec.AgentID,
		)
	}
	return nil
}
