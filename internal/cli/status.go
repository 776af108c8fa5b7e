package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindfold/coalesce/internal/engine"
	"github.com/mindfold/coalesce/internal/oracle"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show graph size, recent merges, and ledger trend",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng := engine.New(db, &oracle.StaticClient{})
	stats, err := eng.GetConvergenceStats()
	if err != nil {
		return fmt.Errorf("convergence stats: %w", err)
	}

	fmt.Printf("concepts:      %d (%d invariants)\n", stats.TotalConcepts, stats.InvariantCount)
	fmt.Printf("recent merges: %d (last 24h)\n", stats.RecentMerges)
	fmt.Printf("trend:         %s (avg compression %.3f)\n", stats.Trend, stats.AvgCompression)

	events, err := db.ListMergeEvents(5)
	if err != nil {
		return fmt.Errorf("list merge events: %w", err)
	}
	if len(events) > 0 {
		fmt.Println("\nrecent ledger entries:")
		for _, ev := range events {
			at := time.UnixMilli(ev.MergedAt).Format("2006-01-02 15:04")
			fmt.Printf("  %s  %s → %s (%.0f%%, %s)\n",
				at, ev.RemovedName, ev.KeptName, ev.Similarity, ev.Reason)
		}
	}
	return nil
}
