package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Axidify/Terminality-V2-sub001/commands"
	"github.com/Axidify/Terminality-V2-sub001/internal/catalog"
	"github.com/Axidify/Terminality-V2-sub001/internal/config"
	"github.com/Axidify/Terminality-V2-sub001/internal/game"
	"github.com/Axidify/Terminality-V2-sub001/internal/logging"
	"github.com/Axidify/Terminality-V2-sub001/internal/metrics"
	"github.com/Axidify/Terminality-V2-sub001/internal/systems"
)

const shutdownTimeout = 15 * time.Second

var (
	cfg *config.Config

	// Flags override the environment.
	listenAddr  string
	metricsAddr string
	contentPath string
	logLevel    string
	noWatch     bool

	resolveQuest    string
	resolveTemplate string
	resolveInstance string
)

var rootCmd = &cobra.Command{
	Use:           "terminality",
	Short:         "Terminality hacking simulation terminal server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		if cmd.Flags().Changed("metrics") {
			cfg.MetricsAddr = metricsAddr
		}
		if contentPath != "" {
			cfg.ContentPath = contentPath
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if noWatch {
			cfg.WatchContent = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept telnet terminals",
	RunE:  runServe,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the systems visible in a quest context as JSON",
	RunE:  runResolve,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the content directory and report problems",
	RunE:  runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&contentPath, "content", "", "content directory (default $CONTENT_PATH or data/content)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "TCP address for terminals (default $LISTEN_ADDR or :4000)")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics", "", "address for /metrics, empty to disable")
	serveCmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload content when files change")

	resolveCmd.Flags().StringVar(&resolveQuest, "quest", "", "quest id")
	resolveCmd.Flags().StringVar(&resolveTemplate, "template", "", "quest template id")
	resolveCmd.Flags().StringVar(&resolveInstance, "instance", "", "quest instance id")

	rootCmd.AddCommand(serveCmd, resolveCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openStateStore(ctx context.Context) (game.StateStore, error) {
	switch cfg.StateBackend {
	case "s3":
		return game.NewS3Store(ctx, game.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
		})
	default:
		return game.NewFileStore(cfg.StatePath)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.ContentPath)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	for _, w := range cat.Warnings {
		logging.L().Warn("content warning", logging.String("warning", w))
	}
	store, err := openStateStore(ctx)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	world := game.NewWorld(cat,
		game.WithStateStore(store),
		game.WithLockoutCooldown(cfg.LockoutCooldown),
		game.WithCommandRate(cfg.CommandRate),
		game.WithIdleTimeout(cfg.IdleTimeout),
	)
	logging.L().Info("content loaded",
		logging.String("path", cfg.ContentPath),
		logging.Int("systems", len(cat.Systems)),
		logging.Int("quests", len(cat.Quests)),
		logging.String("state", store.Name()),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return game.ListenAndServe(ctx, cfg.ListenAddr, world, commands.Dispatch)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logging.L().Info("metrics listening", logging.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.WatchContent {
		cw, err := game.NewContentWatcher(cfg.ContentPath, world.Reload)
		if err != nil {
			return fmt.Errorf("watch content: %w", err)
		}
		if err := cw.Start(ctx); err != nil {
			return fmt.Errorf("watch content: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			cw.Stop()
			return nil
		})
	}

	err = g.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cerr := world.Close(shutdownCtx); cerr != nil {
		logging.L().Error("flush desktop state", logging.Err(cerr))
	}
	logging.L().Info("server stopped")
	return err
}

func runResolve(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load(cfg.ContentPath)
	if err != nil {
		return err
	}
	defs, warnings, err := cat.Resolve(systems.Context{
		QuestID:    resolveQuest,
		TemplateID: resolveTemplate,
		InstanceID: resolveInstance,
	})
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w.String())
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(defs)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load(cfg.ContentPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, w := range cat.Warnings {
		fmt.Fprintln(out, "warning:", w)
	}
	if _, _, err := cat.Resolve(systems.Context{}); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d systems, %d quests, %d warnings\n", len(cat.Systems), len(cat.Quests), len(cat.Warnings))
	return nil
}
