package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/perflens/perflens/internal/config"
	"github.com/perflens/perflens/internal/controller"
	"github.com/perflens/perflens/internal/mcp"
	"github.com/perflens/perflens/internal/report"
	"github.com/perflens/perflens/internal/snapshot"
	"github.com/perflens/perflens/internal/store"
	"github.com/perflens/perflens/internal/thirdparty"
	"github.com/perflens/perflens/internal/web"
	"github.com/perflens/perflens/pkg/events"
)

var (
	// Version is set at build time
	Version = "dev"

	configPath   string
	storeDir     string
	taxonomyPath string

	markdownOut bool
	noSave      bool
	httpPort    int
	noHTTP      bool
	endpoint    string
	outDir      string
)

var rootCmd = &cobra.Command{
	Use:   "perflens",
	Short: "Attribution engine for browser performance telemetry",
	Long: `Perflens turns raw page-load telemetry (V8 coverage snapshots, HAR,
performance entries) into actionable findings: dead and post-paint
code per file, classified layout-shift causes, and third-party
script cost by vendor category.

Basic Usage:
  perflens analyze ./capture        # Analyze a capture bundle directory
  perflens capture https://a.com    # Drive a harness, capture, analyze
  perflens serve                    # MCP stdio server for coding agents
  perflens watch ~/captures         # Re-analyze as new bundles land
  perflens sessions                 # List saved sessions`,
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.perflens/config.toml)")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store-dir", "", "Session store directory (default ~/.perflens/sessions)")
	rootCmd.PersistentFlags().StringVar(&taxonomyPath, "taxonomy", "", "Third-party taxonomy TOML (default built-in)")

	analyzeCmd.Flags().BoolVar(&markdownOut, "markdown", false, "Emit the report as markdown instead of styled terminal output")
	analyzeCmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the report as a session")

	captureCmd.Flags().StringVar(&endpoint, "endpoint", "", "Capture harness websocket endpoint")
	captureCmd.Flags().StringVar(&outDir, "out", "", "Directory to write the raw capture bundle to")
	captureCmd.Flags().BoolVar(&markdownOut, "markdown", false, "Emit the report as markdown instead of styled terminal output")

	serveCmd.Flags().BoolVar(&noHTTP, "no-http", false, "Disable the HTTP report API")
	serveCmd.Flags().IntVar(&httpPort, "http-port", 0, "HTTP report API port (default from config)")

	rootCmd.AddCommand(analyzeCmd, captureCmd, serveCmd, watchCmd, sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deps loads the pieces every subcommand needs.
func deps() (*config.Config, *store.Store, *thirdparty.Taxonomy, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, nil, err
	}

	dir := storeDir
	if dir == "" {
		dir, err = store.DefaultDir()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("resolving store dir: %w", err)
		}
	}
	st, err := store.NewStore(dir)
	if err != nil {
		return nil, nil, nil, err
	}

	var tax *thirdparty.Taxonomy
	if taxonomyPath != "" {
		tax, err = thirdparty.LoadTaxonomyFile(taxonomyPath)
	} else {
		tax, err = thirdparty.LoadTaxonomy()
	}
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, st, tax, nil
}

func analyzeBundle(ctx context.Context, bundle *snapshot.Bundle, cfg *config.Config, st *store.Store, tax *thirdparty.Taxonomy, save bool) (*report.Report, error) {
	r := report.Build(ctx, bundle, report.Options{
		Thresholds: cfg.ReportThresholds(),
		Shift:      cfg.ShiftThresholds(),
		Taxonomy:   tax,
	})
	if save {
		if _, err := st.Save(r); err != nil {
			return nil, fmt.Errorf("saving session: %w", err)
		}
	}
	return r, nil
}

func emit(r *report.Report) {
	if markdownOut {
		fmt.Print(report.RenderMarkdown(r))
	} else {
		fmt.Print(report.RenderTerminal(r))
	}
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <bundle-dir>",
	Short: "Analyze a capture bundle directory and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, tax, err := deps()
		if err != nil {
			return err
		}

		bundle, err := snapshot.LoadBundle(args[0])
		if err != nil {
			return err
		}

		r, err := analyzeBundle(cmd.Context(), bundle, cfg, st, tax, !noSave)
		if err != nil {
			return err
		}
		emit(r)
		if r.SessionID != "" {
			fmt.Fprintf(os.Stderr, "session saved: %s\n", r.SessionID)
		}
		return nil
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture <url>",
	Short: "Capture a page load through the harness, then analyze it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, tax, err := deps()
		if err != nil {
			return err
		}

		ep := endpoint
		if ep == "" {
			ep = cfg.Harness.Endpoint
		}

		dialCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		client, err := controller.Dial(dialCtx, ep)
		cancel()
		if err != nil {
			return err
		}
		defer client.Close()

		captureCtx, cancel := context.WithTimeout(cmd.Context(),
			time.Duration(cfg.Harness.NavigateTimeoutSeconds+cfg.Harness.IdleTimeoutSeconds)*time.Second)
		defer cancel()

		bundle, err := controller.Capture(captureCtx, client, args[0])
		if err != nil {
			return err
		}

		if outDir != "" {
			if err := snapshot.WriteBundle(outDir, bundle); err != nil {
				log.Printf("writing bundle to %s: %v", outDir, err)
			}
		}

		r := report.Build(cmd.Context(), bundle, report.Options{
			Thresholds: cfg.ReportThresholds(),
			Shift:      cfg.ShiftThresholds(),
			Taxonomy:   tax,
			DOM:        client,
		})
		id, err := st.Save(r)
		if err != nil {
			return fmt.Errorf("saving session: %w", err)
		}

		emit(r)
		fmt.Fprintf(os.Stderr, "session saved: %s\n", id)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP tools on stdio, plus the HTTP report API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, tax, err := deps()
		if err != nil {
			return err
		}

		if !noHTTP {
			port := httpPort
			if port == 0 {
				port = cfg.Server.Port
			}
			srv := web.NewServer(st, port)
			if err := srv.Start(); err != nil {
				// stdio stays usable without the HTTP surface
				fmt.Fprintf(os.Stderr, "http server: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "http report api on port %d\n", srv.Port())
				defer srv.Stop()
			}
		}

		return mcp.NewServer(Version, st, cfg, tax).ServeStdio()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <capture-root>",
	Short: "Watch a directory and analyze capture bundles as they land",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, tax, err := deps()
		if err != nil {
			return err
		}

		bus := events.NewEventBus()
		defer bus.Shutdown()

		watcher, err := store.NewCaptureWatcher(args[0], bus)
		if err != nil {
			return err
		}
		defer watcher.Close()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		log.Printf("watching %s for capture bundles", args[0])
		for {
			select {
			case dir := <-watcher.Bundles():
				bundle, err := snapshot.LoadBundle(dir)
				if err != nil {
					log.Printf("skipping %s: %v", filepath.Base(dir), err)
					continue
				}
				r := report.Build(cmd.Context(), bundle, report.Options{
					Thresholds: cfg.ReportThresholds(),
					Shift:      cfg.ShiftThresholds(),
					Taxonomy:   tax,
					Bus:        bus,
				})
				id, err := st.Save(r)
				if err != nil {
					log.Printf("saving session for %s: %v", filepath.Base(dir), err)
					continue
				}
				log.Printf("analyzed %s: session %s (%s)", filepath.Base(dir), id, r.PageURL)
			case <-sigCh:
				return nil
			case <-cmd.Context().Done():
				return nil
			}
		}
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, _, err := deps()
		if err != nil {
			return err
		}

		infos, err := st.List()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, info := range infos {
			marker := ""
			if !info.Complete {
				marker = " (partial)"
			}
			fmt.Printf("%s  %s  %s%s\n", info.ID, info.GeneratedAt.Format(time.RFC3339), info.PageURL, marker)
		}
		return nil
	},
}
