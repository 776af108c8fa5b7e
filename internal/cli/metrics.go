package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mindfold/coalesce/internal/engine"
	"github.com/mindfold/coalesce/internal/oracle"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute and print the current metrics snapshot",
	RunE:  runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
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
	m, err := eng.GetMetrics()
	if err != nil {
		return fmt.Errorf("compute metrics: %w", err)
	}

	fmt.Printf("concepts:     %d (%d invariants, %d clusters, %d edges)\n",
		m.Concepts, m.Invariants, m.Clusters, m.Edges)
	fmt.Printf("compression:  %.3f\n", m.Compression)
	fmt.Printf("entropy Δ:    %+.3f\n", m.EntropyDelta)
	fmt.Printf("drift:        %.3f\n", m.Drift)
	fmt.Printf("curvature:    %.3f\n", m.Curvature)
	fmt.Printf("adaptive:     %.3f\n", m.AdaptiveMatch)
	fmt.Printf("complexity:   %.3f\n", m.Complexity)

	if warnings := engine.DetectAnomalies(m); len(warnings) > 0 {
		fmt.Println()
		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}
	}
	return nil
}
