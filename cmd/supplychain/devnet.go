// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/supplychain"
	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/event"
	"github.com/blinklabs-io/supplychain/internal/config"
	"github.com/blinklabs-io/supplychain/internal/devnet"
	"github.com/blinklabs-io/supplychain/keystore"
	"github.com/blinklabs-io/supplychain/lamports"
	ledgerdevnet "github.com/blinklabs-io/supplychain/ledger/devnet"
	"github.com/blinklabs-io/supplychain/repository"
)

func devnetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devnet",
		Short: "Work with the in-process development ledger",
	}
	cmd.AddCommand(devnetScenarioCommand())
	cmd.AddCommand(devnetListCommand())
	return cmd
}

// ledgerDir and viewDir split the data dir between the account store and
// the view. Both are empty, meaning in-memory, without a data dir.
func ledgerDir(cfg *config.Config) string {
	if cfg.DataDir == "" {
		return ""
	}
	return filepath.Join(cfg.DataDir, "ledger")
}

func viewDir(cfg *config.Config) string {
	if cfg.DataDir == "" {
		return ""
	}
	return filepath.Join(cfg.DataDir, "view")
}

func openLedger(
	cfg *config.Config,
	logger *slog.Logger,
	reg prometheus.Registerer,
	bus *event.EventBus,
) (*ledgerdevnet.Ledger, error) {
	programID, err := cfg.ProgramAddress()
	if err != nil {
		return nil, err
	}
	return ledgerdevnet.New(ledgerdevnet.Config{
		PromRegistry:  reg,
		Logger:        logger,
		EventBus:      bus,
		DataDir:       ledgerDir(cfg),
		ProgramID:     programID,
		QueueCapacity: cfg.QueueCapacity,
	})
}

func devnetScenarioCommand() *cobra.Command {
	var scenarioFile string
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run a full supply-chain lifecycle against the development ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := mustConfig(cmd)
			return devnetScenarioRun(cmd, cfg, scenarioFile)
		},
	}
	cmd.Flags().StringVar(&scenarioFile, "scenario", "", "path to a scenario YAML file")
	return cmd
}

func devnetScenarioRun(cmd *cobra.Command, cfg *config.Config, scenarioFile string) error {
	logger := commonRun(cfg)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scenario := devnet.DefaultScenario()
	if scenarioFile != "" {
		var err error
		if scenario, err = devnet.LoadScenario(scenarioFile); err != nil {
			return err
		}
	}
	airdrop, err := lamports.Parse(cfg.AirdropSol)
	if err != nil {
		return fmt.Errorf("invalid airdropSol: %w", err)
	}
	commitTimeout, err := cfg.CommitTimeoutDuration()
	if err != nil {
		return err
	}
	pollInterval, err := cfg.PollIntervalDuration()
	if err != nil {
		return err
	}
	if cfg.Tracing {
		shutdown, err := supplychain.SetupTracing(ctx, cfg.TracingStdout, programName)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to flush traces", "component", programName, "error", err)
			}
		}()
	}

	reg := prometheus.DefaultRegisterer
	bus := event.NewEventBus(reg, logger)
	defer bus.Stop()
	l, err := openLedger(cfg, logger, reg, bus)
	if err != nil {
		return err
	}
	defer l.Close()
	if cfg.MetricsPort != 0 {
		srv := startMetricsServer(cfg, logger)
		defer srv.Close()
	}

	client, err := supplychain.New(supplychain.NewConfig(
		supplychain.WithLedger(l),
		supplychain.WithProgramID(l.ProgramID()),
		supplychain.WithLogger(logger),
		supplychain.WithPrometheusRegistry(reg),
		supplychain.WithEventBus(bus),
		supplychain.WithCommitTimeout(commitTimeout),
		supplychain.WithPollInterval(pollInterval),
		supplychain.WithView(cfg.ViewDriver, cfg.ViewDsn, viewDir(cfg)),
	))
	if err != nil {
		return err
	}
	defer client.Close()

	ks := keystore.NewKeyStore(keystore.KeyStoreConfig{
		Dir:    cfg.KeyDir,
		Logger: logger,
	})
	report, err := devnet.NewRunner(
		client,
		l,
		devnet.WithKeySource(ks),
		devnet.WithLogger(logger),
		devnet.WithScenario(scenario),
		devnet.WithAirdrop(airdrop),
	).Run(ctx)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

func startMetricsServer(cfg *config.Config, logger *slog.Logger) *http.Server {
	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+addr,
		"component", programName,
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", programName,
			)
			os.Exit(1)
		}
	}()
	return srv
}

func printReport(out io.Writer, report *devnet.Report) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tWALLET\tSLOT\tRECORD\tSIGNATURE")
	for _, step := range report.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			step.Action, step.Wallet, step.Slot, step.Record, step.Signature)
	}
	fmt.Fprintln(tw)
	names := make([]string, 0, len(report.Balances))
	for name := range report.Balances {
		names = append(names, name)
	}
	slices.Sort(names)
	fmt.Fprintln(tw, "WALLET\tBALANCE (SOL)")
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, report.Balances[name].String())
	}
	tw.Flush()
}

func devnetListCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List records of one kind held by the development ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mustConfig(cmd)
			if cfg.DataDir == "" {
				return errors.New("devnet list needs a dataDir holding a ledger")
			}
			kind, err := entity.ParseKind(args[0])
			if err != nil {
				return err
			}
			logger := commonRun(cfg)
			l, err := openLedger(cfg, logger, nil, nil)
			if err != nil {
				return err
			}
			defer l.Close()
			repo := repository.New(repository.Config{
				Reader:    l,
				Logger:    logger,
				ProgramID: l.ProgramID(),
			})
			var entries []repository.Entry
			if owner != "" {
				wallet, err := address.Parse(owner)
				if err != nil {
					return fmt.Errorf("invalid owner: %w", err)
				}
				entries, err = repo.OwnedBy(cmd.Context(), kind, wallet)
				if err != nil {
					return err
				}
			} else {
				entries, err = repo.ListByKind(cmd.Context(), kind, nil)
				if err != nil {
					return err
				}
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only records owned by this wallet")
	return cmd
}

func printEntries(out io.Writer, entries []repository.Entry) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tOWNER\tBALANCE (SOL)")
	for _, e := range entries {
		ownerStr := "-"
		if o, ok := e.Entity.(entity.Owned); ok {
			ownerStr = o.OwnerAddress().String()
		}
		balance := "-"
		if f, ok := e.Entity.(entity.Funded); ok {
			balance = lamports.Format(f.BalanceLamports())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Address, ownerStr, balance)
	}
	tw.Flush()
}
