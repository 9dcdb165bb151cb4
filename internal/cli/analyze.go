package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crypto-trader/internal/advanced"
	"crypto-trader/internal/aggregator"
	"crypto-trader/internal/analysis/detectors"
	"crypto-trader/internal/broker"
	"crypto-trader/internal/config"
	"crypto-trader/internal/models"
	"crypto-trader/internal/risk"
	"crypto-trader/internal/strategy"
	"crypto-trader/pkg/utils"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <symbol>",
		Short: "Run a one-shot analysis for a symbol",
		Long:  "Run both signal engines once for a symbol and print the full decision breakdown.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analyzeSymbol(app, args[0])
		},
	}
}

func analyzeSymbol(app *App, symbol string) error {
	mgr, err := config.NewManager(app.ConfigDir, app.Logger)
	if err != nil {
		return err
	}
	cfg := mgr.Config()

	feed := broker.NewSimFeed(0)
	registry := detectors.NewRegistry(cfg.DetectorWeights())
	strategyEngine := strategy.NewEngine(feed, sentimentProvider(cfg), registry, app.Logger)
	advancedEngine := advanced.NewEngine(feed, app.Logger)
	riskManager := risk.NewManager(riskConfig(cfg), app.Logger)
	agg := aggregator.New(strategyEngine, advancedEngine, riskManager, nil, app.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProviderTimeout())
	defer cancel()

	outcome, err := agg.Aggregate(ctx, symbol)
	if err != nil {
		return err
	}

	printDecision(outcome.Decision)
	printEvaluation(outcome.Evaluation)
	printOutcome(outcome)
	return nil
}

func printDecision(d *strategy.Decision) {
	if d == nil {
		return
	}
	color.Cyan("Strategy Engine: %s", d.Symbol)
	for _, tf := range d.Timeframes {
		r := tf.Result
		fmt.Printf("  %-4s  score %.3f  (%s)", tf.Timeframe, r.Scaled, r.Direction)
		for _, cat := range detectors.Categories() {
			fmt.Printf("  %s %.2f", cat, r.Categories[cat])
		}
		fmt.Println()
	}
	fmt.Printf("  majority: %s  action: %s\n", d.Majority, d.Action)
	fmt.Printf("  confluence: agreement %.2f  combined %.2f  passed %v\n",
		d.Confluence.Agreement, d.Confluence.Combined, d.Confluence.Passed)
	if d.Vetoed {
		color.Red("  vetoed: %s", d.Reason)
	}
	fmt.Println()
}

func printEvaluation(ev *advanced.Evaluation) {
	if ev == nil {
		return
	}
	color.Cyan("Advanced Engine: %s", ev.Symbol)
	l := ev.Layers
	fmt.Printf("  price action %.0f/30  indicators %.0f/25  alignment %.0f/20  volume %.0f/15  risk %.0f/10\n",
		l.PriceAction, l.Indicators, l.Alignment, l.Volume, l.RiskQuality)
	fmt.Printf("  total %.0f/100  direction %s  votes %d/3  r:r %.2f\n",
		ev.Total, ev.Direction, ev.Votes, ev.RiskReward)
	if ev.Signal == nil && ev.Reason != "" {
		color.Yellow("  no signal: %s", ev.Reason)
	}
	fmt.Println()
}

func printOutcome(out *aggregator.Outcome) {
	if !out.Tradeable {
		color.Red("risk denied: %s", out.DenyReason)
	}
	if out.Signal == nil {
		color.Yellow("no signal (%s)", out.Rule)
		return
	}

	sig := out.Signal
	header := color.GreenString
	if sig.Type == models.SignalSell {
		header = color.RedString
	}
	fmt.Println(header("%s %s @ %s  (%s, confidence %.0f%%)",
		sig.Type, sig.Symbol, utils.FormatPrice(sig.EntryPrice), out.Rule, sig.Confidence*100))
	fmt.Printf("  stop %s  target %s\n", utils.FormatPrice(sig.StopLoss), utils.FormatPrice(sig.TargetPrice))
	if sig.Plan != nil {
		for i, rung := range sig.Plan.Targets {
			fmt.Printf("  ladder %d: %s (%.0f%%)\n", i+1, utils.FormatPrice(rung.Price), rung.Fraction*100)
		}
		fmt.Printf("  leverage %.1fx", sig.Plan.Leverage)
		if sig.Plan.Trailing.Enabled {
			fmt.Printf("  trailing %.2f%%", sig.Plan.Trailing.Percent)
		}
		fmt.Println()
	}
	fmt.Printf("  %s\n", sig.Reasoning)
	fmt.Printf("  generated %s\n", sig.CreatedAt.Format(time.RFC3339))
}
