package cmd

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"opay/assetcache"
	"opay/connectivity"
	"opay/exception"
	"opay/logx"
	"opay/monitoring"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the offline payment agent",
	Long: `Runs the long-lived agent: serves the application shell through the
versioned asset cache, watches connectivity, and syncs the pending
transaction queue to the remote verifier whenever the device comes back
online.`,
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent() {
	monitoring.InitMetrics()

	comps, err := buildComponents()
	if err != nil {
		log.Fatalf("Failed to initialize agent: %v", err)
	}
	defer comps.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, err := assetcache.NewAssetCache(comps.provider, comps.bus, assetcache.Config{
		Version:      comps.cfg.CacheVersion,
		ShellEntry:   comps.cfg.ShellEntry,
		Assets:       comps.cfg.ShellAssets,
		APIPrefix:    comps.cfg.APIPrefix,
		UpstreamURL:  comps.cfg.UpstreamURL,
		FetchTimeout: time.Duration(comps.cacheCfg.FetchTimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to initialize asset cache: %v", err)
	}

	// Install may fail while offline; the previous generation (if any) keeps
	// serving and the next restart retries.
	if err := cache.Install(ctx); err != nil {
		logx.Warn("AGENT", "Cache install incomplete: ", err)
	} else if err := cache.Activate(); err != nil {
		logx.Warn("AGENT", "Cache activation failed: ", err)
	}

	watcher := connectivity.NewWatcher(comps.remote, comps.bus,
		time.Duration(comps.syncCfg.ProbeIntervalSeconds)*time.Second)

	exception.SafeGo("connectivity-watcher", func() { watcher.Run(ctx) })
	exception.SafeGo("engine-sync-loop", func() { comps.engine.Run(ctx) })

	mux := http.NewServeMux()
	monitoring.RegisterMetrics(mux)
	mux.Handle("/", cache)

	server := &http.Server{Addr: comps.cfg.ListenAddr, Handler: mux}
	exception.SafeGo("http-server", func() {
		logx.Info("AGENT", "Serving application shell on ", comps.cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Error("AGENT", "HTTP server failed: ", err)
		}
	})

	<-ctx.Done()
	logx.Info("AGENT", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
