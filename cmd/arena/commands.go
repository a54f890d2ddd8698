package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"arena/internal/app"
	"arena/internal/config"
	"arena/internal/ledger"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:   "arena",
		Short: "AI Trading Arena - LLM traders competing on simulated accounts",
		Long: `arena runs several language-model traders side by side. Each trader receives the same
market snapshot, answers with a JSON trading decision, and has its simulated account updated
after risk validation. State is pushed to observers over websocket and persisted between runs.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath(), "Configuration file path (env ARENA_CONFIG)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and trading engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath)
		},
	})
	root.AddCommand(newSnapshotCmd(&cfgPath))
	return root
}

func newSnapshotCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print a summary of the persisted arena state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return printSnapshot(ctx, cmd.OutOrStdout(), cfg.Persistence)
		},
	}
}

func printSnapshot(ctx context.Context, w io.Writer, pc config.PersistenceConfig) error {
	backend, err := app.OpenBackend(pc)
	if err != nil {
		return err
	}
	defer backend.Close()

	doc, err := backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot from %s: %w", backend.Name(), err)
	}
	agents := append([]*ledger.Agent(nil), doc.AITraders...)
	sort.Slice(agents, func(i, j int) bool { return agents[i].CurrentBalance > agents[j].CurrentBalance })

	fmt.Fprintf(w, "snapshot (%s) last update: %s, runtime %ds\n", backend.Name(), doc.LastUpdate, doc.TimeElapsed)
	fmt.Fprintf(w, "%-10s %12s %10s %8s %8s %6s  %s\n", "AGENT", "BALANCE", "PNL", "TRADES", "WINRATE", "OPEN", "LAST ACTION")
	for _, a := range agents {
		fmt.Fprintf(w, "%-10s %12.2f %+10.2f %8d %7.1f%% %6d  %s\n",
			a.Name, a.CurrentBalance, a.TotalPnL, a.TotalTrades, a.WinRate, len(a.OpenPositions), a.LastAction)
	}
	fmt.Fprintf(w, "chart points: %d, messages: %d\n", len(doc.ChartData), len(doc.Messages))
	return nil
}
