package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindfold/coalesce/internal/engine"
	"github.com/mindfold/coalesce/internal/oracle"
)

var (
	convergeThreshold   float64
	convergePredictive  bool
	convergeProbability float64
)

var convergeCmd = &cobra.Command{
	Use:   "converge",
	Short: "Run a convergence pass over the concept graph",
	Long:  "Merge semantically similar concepts. The default reactive mode asks the oracle to judge candidate pairs; --predictive spends the forecaster's predictions instead and needs no oracle.",
	RunE:  runConverge,
}

func init() {
	convergeCmd.Flags().Float64Var(&convergeThreshold, "threshold", 0, "reactive similarity threshold (default 0.85)")
	convergeCmd.Flags().BoolVar(&convergePredictive, "predictive", false, "merge forecast pairs instead of consulting the oracle")
	convergeCmd.Flags().Float64Var(&convergeProbability, "probability", 0, "predictive probability threshold (default 0.7)")
}

func runConverge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if convergePredictive {
		eng := engine.New(db, &oracle.StaticClient{})
		probability := convergeProbability
		if probability == 0 {
			probability = cfg.Convergence.Probability
		}
		res, err := eng.RunPredictiveConvergence(ctx, probability)
		if err != nil {
			return fmt.Errorf("predictive convergence: %w", err)
		}
		fmt.Printf("predictive: %d predictions, %d merged\n", res.Predictions, res.MergedCount)
		for _, c := range res.EarlyCollapses {
			fmt.Printf("  %s\n", c)
		}
		return nil
	}

	client, err := oracle.New(cfg.Oracle)
	if err != nil {
		return fmt.Errorf("oracle required for reactive convergence: %w", err)
	}
	eng := engine.New(db, client)

	threshold := convergeThreshold
	if threshold == 0 {
		threshold = cfg.Convergence.Threshold
	}
	res, err := eng.RunConvergence(ctx, threshold)
	if err != nil {
		return fmt.Errorf("convergence: %w", err)
	}

	fmt.Printf("merged %d pairs, %d concepts remain (compression %.3f)\n",
		res.MergedCount, res.TotalConcepts, res.CompressionRate)
	return nil
}
