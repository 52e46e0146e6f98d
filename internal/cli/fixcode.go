package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/esbmc/esbmc-ai/internal/chat"
	"github.com/esbmc/esbmc-ai/internal/config"
	"github.com/esbmc/esbmc-ai/internal/llm"
	"github.com/esbmc/esbmc-ai/internal/llm/configbuilder"
	"github.com/esbmc/esbmc-ai/internal/logging"
	"github.com/esbmc/esbmc-ai/internal/observability"
	"github.com/esbmc/esbmc-ai/internal/repair"
	"github.com/esbmc/esbmc-ai/internal/solution"
	"github.com/esbmc/esbmc-ai/internal/verifier"
)

// NewFixCodeCmd wires the fix-code command: verify each source file and drive
// the repair loop on the ones the verifier rejects.
func NewFixCodeCmd(opts *Options) *cobra.Command {
	var modelOverride string
	var maxAttempts int

	cmd := &cobra.Command{
		Use:   "fix-code <file>...",
		Short: "Verify source files and repair the ones that fail",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if maxAttempts > 0 {
				cfg.Repair.MaxAttempts = maxAttempts
			}

			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			registry, err := configbuilder.BuildRegistryFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("build model registry: %w", err)
			}
			provider, route, err := registry.Resolve(modelOverride)
			if err != nil {
				return err
			}

			metrics := observability.NewMetrics()
			if cfg.Metrics.Enabled {
				go serveMetrics(cmd.Context(), cfg.Metrics.Addr, metrics, logger)
			}

			failed := 0
			for _, path := range args {
				outcome, err := fixOne(cmd, cfg, path, provider, route, logger, metrics)
				if err != nil {
					if llm.IsAuth(err) || llm.IsTransient(err) {
						metrics.RecordModelFailure(route.Provider)
					}
					return fmt.Errorf("%s: %w", path, err)
				}
				if outcome != repair.OutcomeSafe && outcome != repair.OutcomeRepaired {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) could not be repaired", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modelOverride, "model", "", "Override model id for this run")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Override repair attempt budget")
	return cmd
}

// fixOne runs one file through its own loop, session, and tracker.
func fixOne(cmd *cobra.Command, cfg *config.Config, path string, provider llm.Provider, route llm.ModelRoute, logger *zap.Logger, metrics *observability.Metrics) (repair.Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return repair.OutcomeError, err
	}
	source := string(data)

	check, params, err := buildVerifier(cfg, filepath.Ext(path), logger)
	if err != nil {
		return repair.OutcomeError, err
	}

	tracker := solution.NewTracker(map[string]string{path: source})
	session := chat.NewSession(provider, route, cfg.Chat.Cooldown, cfg.Chat.MaxRetries, logger)
	loop := repair.New(check, session, tracker, repair.Config{
		MaxAttempts:     cfg.Repair.MaxAttempts,
		OutputFormat:    cfg.Repair.VerifierOutputType,
		SystemPrompt:    cfg.Repair.SystemPrompt,
		InitialPrompt:   cfg.Repair.InitialPrompt,
		RetryPrompt:     cfg.Repair.RetryPrompt,
		VerifierParams:  params,
		VerifierTimeout: cfg.Verifier.Timeout,
	}, logger.With(zap.String("file", path)), metrics)

	result := loop.Run(cmd.Context(), path)
	if result.Err != nil {
		return result.Outcome, result.Err
	}

	out := cmd.OutOrStdout()
	switch result.Outcome {
	case repair.OutcomeSafe:
		fmt.Fprintf(out, "%s: verification successful, no repair needed\n", path)
	case repair.OutcomeRepaired:
		fmt.Fprintf(out, "%s: repaired after %d attempt(s)\n", path, result.AttemptsMade)
		if err := writeRepaired(cfg, path, source, result.FinalSource[path]); err != nil {
			return result.Outcome, err
		}
	case repair.OutcomeExhausted:
		fmt.Fprintf(out, "%s: attempt budget exhausted after %d attempt(s), no fix found\n", path, result.AttemptsMade)
	}
	return result.Outcome, nil
}

// buildVerifier resolves the configured backend through a registry. The
// scratch file suffix follows the input file so the checker picks the right
// frontend. Returned params apply only to the ESBMC backend; the oracle
// carries its arguments itself.
func buildVerifier(cfg *config.Config, ext string, logger *zap.Logger) (verifier.Verifier, []string, error) {
	reg := verifier.NewRegistry()
	if cfg.Verifier.ESBMC.Path != "" {
		reg.Register(&verifier.ESBMC{
			Path:          cfg.Verifier.ESBMC.Path,
			ScratchDir:    cfg.Verifier.ScratchDir,
			EntryFunction: cfg.Verifier.ESBMC.EntryFunction,
			FileExt:       ext,
			Logger:        logger,
		}, cfg.Verifier.Backend == "esbmc")
	}
	if cfg.Verifier.Oracle.Command != "" {
		reg.Register(&verifier.Oracle{
			Command:    cfg.Verifier.Oracle.Command,
			Args:       cfg.Verifier.Oracle.Args,
			ScratchDir: cfg.Verifier.ScratchDir,
			FileExt:    ext,
		}, cfg.Verifier.Backend == "oracle")
	}

	v, err := reg.Resolve(cfg.Verifier.Backend)
	if err != nil {
		return nil, nil, err
	}

	var params []string
	if cfg.Verifier.Backend == "esbmc" {
		params = cfg.Verifier.ESBMC.Params
	}
	return v, params, nil
}

// writeRepaired persists the accepted source, and optionally a unified diff
// against the original, under the configured output directory. An empty
// output_dir overwrites the input file in place.
func writeRepaired(cfg *config.Config, path, original, repaired string) error {
	dest := path
	if cfg.Repair.OutputDir != "" {
		if err := os.MkdirAll(cfg.Repair.OutputDir, 0o755); err != nil {
			return err
		}
		dest = filepath.Join(cfg.Repair.OutputDir, filepath.Base(path))
	}
	if err := os.WriteFile(dest, []byte(repaired), 0o644); err != nil {
		return err
	}

	if cfg.Repair.GeneratePatches {
		diff, err := solution.UnifiedDiff(path, original, path, repaired)
		if err != nil {
			return fmt.Errorf("generate patch: %w", err)
		}
		return os.WriteFile(dest+".patch", []byte(diff), 0o644)
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, metrics *observability.Metrics, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener starting", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}
