package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crypto-trader/internal/models"
	"crypto-trader/internal/store"
	"crypto-trader/pkg/utils"
)

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the trade journal",
	}
	cmd.AddCommand(newJournalTradesCmd(app))
	cmd.AddCommand(newJournalStatsCmd(app))
	return cmd
}

func newJournalTradesCmd(app *App) *cobra.Command {
	var symbol string
	var limit int

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List recent closed trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := openJournal(app)
			if err != nil {
				return err
			}
			defer journal.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			trades, err := journal.Trades(ctx, symbol, limit)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				color.Yellow("no trades recorded")
				return nil
			}

			for _, tr := range trades {
				line := fmt.Sprintf("%s  %-4s %-10s  %s → %s  %s  %s  (%s, %s)",
					tr.ClosedAt.Format("2006-01-02 15:04"),
					tr.Side, tr.Symbol,
					utils.FormatPrice(tr.EntryPrice), utils.FormatPrice(tr.ExitPrice),
					utils.FormatUSD(tr.PnL), tr.Status,
					tr.Reason, utils.FormatDuration(tr.Duration))
				switch tr.Status {
				case models.TradeWin:
					color.Green("%s", line)
				case models.TradeLoss:
					color.Red("%s", line)
				default:
					fmt.Println(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "filter by symbol")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum trades to show")
	return cmd
}

func newJournalStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate performance",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := openJournal(app)
			if err != nil {
				return err
			}
			defer journal.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			stats, err := journal.Stats(ctx)
			if err != nil {
				return err
			}

			color.Cyan("Journal Statistics")
			fmt.Printf("  trades:    %d\n", stats.Trades)
			fmt.Printf("  wins:      %d\n", stats.Wins)
			fmt.Printf("  losses:    %d\n", stats.Losses)
			fmt.Printf("  win rate:  %s\n", utils.FormatPercent(stats.WinRate*100))
			if stats.TotalPnL >= 0 {
				color.Green("  total pnl: %s", utils.FormatUSD(stats.TotalPnL))
			} else {
				color.Red("  total pnl: %s", utils.FormatUSD(stats.TotalPnL))
			}
			return nil
		},
	}
}

func openJournal(app *App) (*store.Journal, error) {
	return store.OpenJournal(filepath.Join(app.ConfigDir, "journal.db"), app.Logger)
}
