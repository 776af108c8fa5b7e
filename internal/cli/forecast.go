package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mindfold/coalesce/internal/engine"
	"github.com/mindfold/coalesce/internal/oracle"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Print the drift forecast and predicted convergences",
	RunE:  runForecast,
}

func runForecast(cmd *cobra.Command, args []string) error {
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

	fc, err := eng.GetDriftForecast()
	if err != nil {
		return fmt.Errorf("forecast: %w", err)
	}
	state, err := eng.GetPredictiveState()
	if err != nil {
		return fmt.Errorf("predictive state: %w", err)
	}

	fmt.Printf("state:      %s (confidence %.2f)\n", fc.CurrentState, fc.Confidence)
	fmt.Printf("forecast:   %s\n", fc.Forecast)
	fmt.Printf("entropy:    %s, drift velocity %+.3f/h, stability %.2f\n",
		state.EntropyTrend, state.DriftVelocity, state.SystemStability)

	if len(state.PredictedConvergences) > 0 {
		fmt.Println("\npredicted convergences:")
		for _, p := range state.PredictedConvergences {
			fmt.Printf("  %s → %s (p=%.2f)\n", p.Concept, p.Target, p.Probability)
		}
	}
	if len(state.Recommendations) > 0 {
		fmt.Println("\nrecommendations:")
		for _, r := range state.Recommendations {
			fmt.Printf("  - %s\n", r)
		}
	}
	if fc.ActionRequired {
		fmt.Println("\naction required")
	}
	return nil
}
