package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fcvanalyst/internal/config"
	"fcvanalyst/internal/dataset"
	"fcvanalyst/internal/executor"
	"fcvanalyst/internal/indicator"
	"fcvanalyst/internal/llm"
	"fcvanalyst/internal/logging"
	"fcvanalyst/internal/server"
)

var (
	configPath string
	debug      bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fcvanalyst",
	Short: "FCV Data Analyst - natural-language analysis over conflict event data",
	Long: `fcvanalyst answers analytical questions about conflict event datasets.

Questions are planned into a structured query spec, turned into sandboxed
analysis code against the loaded dataset, executed, and summarised into
grounded key takeaways. Population and World Bank indicator tables are
fetched on demand from the Data360 API and cached for the process lifetime.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(debug)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Debug && !debug {
			logger, err = logging.New(true)
			if err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, err := llm.NewClientFromConfig(ctx, cfg.ProviderConfig())
		if err != nil {
			return err
		}

		store := dataset.NewMemoryStore()
		if cfg.DataPath != "" {
			if frame, err := dataset.LoadPath(cfg.DataPath); err != nil {
				logger.Warn("default dataset not loaded", zap.String("path", cfg.DataPath), zap.Error(err))
			} else {
				store.Put(server.DefaultSession, frame)
				logger.Info("default dataset loaded",
					zap.String("path", cfg.DataPath), zap.Int("rows", frame.NumRows()))
				watcher, err := dataset.NewWatcher(store, server.DefaultSession, cfg.DataPath, logger)
				if err != nil {
					logger.Warn("dataset watcher unavailable", zap.Error(err))
				} else {
					go watcher.Run(ctx)
				}
			}
		}

		baseURL := cfg.Data360BaseURL
		if baseURL == "" {
			baseURL = indicator.DefaultBaseURL
		}
		enricher := indicator.NewService(
			indicator.NewClient(baseURL, indicator.NewMemoryCache(), logger), logger)

		srv := &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: server.New(client, executor.NewYaegiEngine(logger), store, enricher, logger).Handler(),
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("provider", cfg.Provider))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <country> [yearFrom yearTo]",
	Short: "Resolve a country name and fetch its population series",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		code, ok := indicator.DefaultChain().Resolve(name)
		if !ok {
			return fmt.Errorf("could not resolve %q to an ISO3 code", name)
		}
		fmt.Printf("%s -> %s\n", name, code)
		if len(args) < 3 {
			return nil
		}
		yearFrom, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid yearFrom: %w", err)
		}
		yearTo, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid yearTo: %w", err)
		}

		client := indicator.NewClient(indicator.DefaultBaseURL, indicator.NewMemoryCache(), logger)
		obs, warning, err := client.Fetch(cmd.Context(), indicator.PopulationIndicator, code, yearFrom, yearTo)
		if err != nil {
			return err
		}
		if warning != "" {
			fmt.Fprintln(os.Stderr, "warning:", warning)
		}
		for _, o := range obs {
			fmt.Printf("%s\t%s\t%s\n", o.RefArea, o.TimePeriod, o.ObsValue)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
