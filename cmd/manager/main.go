// Command manager serves the crawl ingress HTTP API (spec §4.3, §6): a
// single POST / endpoint that validates a client request, probes the seed,
// and plants a ROOT node for the Feeder pool to pick up.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/spf13/cobra"

	"github.com/bluedotiya/web-crawler/internal/config"
	"github.com/bluedotiya/web-crawler/internal/manager"
	"github.com/bluedotiya/web-crawler/internal/probe"
	"github.com/bluedotiya/web-crawler/internal/store/mongo"
)

const version = "0.2.0"

func main() {
	root := &cobra.Command{
		Use:     "manager",
		Short:   "crawl ingress HTTP API",
		Version: version,
	}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "start the manager HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if v, _ := cmd.Flags().GetString("bind-address"); v != "" {
				cfg.BindAddress = v
			}
			if v, _ := cmd.Flags().GetString("bind-port"); v != "" {
				cfg.BindPort = v
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	serve.Flags().String("bind-address", "", "override the configured bind address")
	serve.Flags().String("bind-port", "", "override the configured bind port")

	root.AddCommand(serve)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	graph, err := mongo.Open(connCtx, mongo.Config{
		Host:     cfg.StoreHost,
		User:     cfg.StoreUser,
		Password: cfg.StorePassword,
		Database: cfg.StoreDatabase,
	})
	if err != nil {
		return fmt.Errorf("connect to graph store: %w", err)
	}

	handler := &manager.Handler{
		Store:   graph,
		Fetcher: fetcherFor(cfg),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST},
	}))

	e.POST("/", handler.CreateJobHandler)
	e.GET("/healthz", handler.HealthHandler)

	addr := fmt.Sprintf("%s:%s", cfg.BindAddress, cfg.BindPort)

	go func() {
		if err := e.Start(addr); err != nil {
			e.Logger.Info("shutting down the manager http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return graph.Close(context.Background())
}

func fetcherFor(cfg config.Config) *probe.Fetcher {
	f := probe.NewFetcher()
	if cfg.UserAgent != "" {
		f.UserAgent = cfg.UserAgent
	}
	return f
}
