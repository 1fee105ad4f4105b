package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/apresai/readcast/internal/config"
	"github.com/apresai/readcast/internal/observability"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "readcast",
	Short:         "Turn an article into a two-host podcast episode",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("readcast %s\n", Version)
	},
}

var (
	flagConfig   string
	flagLogLevel string
	flagVerbose  bool
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", os.Getenv("READCAST_CONFIG"), "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable detailed logging instead of the progress bar")
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// app is the per-invocation runtime: resolved config, logger and a lazily
// loaded AWS config shared by every AWS-backed component.
type app struct {
	cfg config.Config
	log *slog.Logger

	awsOnce sync.Once
	awsCfg  aws.Config
	awsErr  error

	shutdown func()
}

// setup loads .env, the config file and optional Secrets Manager keys, then
// initializes logging and tracing. quiet raises the log floor to warn so
// the progress bar is not interleaved with info lines.
func setup(ctx context.Context, quiet bool, override func(*config.Config)) (*app, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, shutdown: func() {}}
	a.log = observability.InitLogger(os.Stderr, a.logLevel(quiet))
	slog.SetDefault(a.log)

	if cfg.AWS.SecretPrefix != "" {
		awsCfg, err := a.loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		if n := config.LoadSecrets(ctx, config.NewSecretsClient(awsCfg), cfg.AWS.SecretPrefix, a.log); n > 0 {
			// Reload so the fetched keys flow through the env overrides.
			if a.cfg, err = config.Load(flagConfig); err != nil {
				return nil, err
			}
		}
	}

	if override != nil {
		override(&a.cfg)
		if err := a.cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if a.cfg.Telemetry.TracingEnabled {
		tp, err := observability.InitTracer(ctx, "readcast", Version, a.cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			a.log.WarnContext(ctx, "Tracing disabled", "error", err)
		} else {
			a.shutdown = func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(sctx); err != nil {
					a.log.Warn("Tracer shutdown failed", "error", err)
				}
			}
		}
	}
	return a, nil
}

func (a *app) logLevel(quiet bool) string {
	switch {
	case flagLogLevel != "":
		return flagLogLevel
	case flagVerbose:
		return "debug"
	case quiet:
		if observability.ParseLevel(a.cfg.Telemetry.LogLevel) < slog.LevelWarn {
			return "warn"
		}
	}
	return a.cfg.Telemetry.LogLevel
}

// loadAWS loads the AWS config once per invocation.
func (a *app) loadAWS(ctx context.Context) (aws.Config, error) {
	a.awsOnce.Do(func() {
		a.awsCfg, a.awsErr = config.LoadAWS(ctx, a.cfg.AWS.Region)
	})
	return a.awsCfg, a.awsErr
}

func (a *app) timeout() time.Duration {
	return time.Duration(a.cfg.TimeoutSeconds) * time.Second
}
