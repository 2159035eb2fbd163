package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"labelpress/internal/config"
	"labelpress/internal/daemon"
	"labelpress/internal/ipc"
	"labelpress/internal/logging"
	"labelpress/internal/printing"
	"labelpress/internal/region"
	"labelpress/internal/render"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewForDir(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir, "labelpressd")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := buildDaemon(cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	ipcServer, err := ipc.NewServer(ctx, buildSocketPath(cfg), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		d.Stop()
		os.Exit(1)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("labelpressd ready",
		logging.String("transport", d.TransportAddr()),
		logging.String("output_dir", cfg.Paths.OutputDir))

	<-ctx.Done()
	logger.Info("labelpressd shutting down")
	d.Stop()
}

func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	renderer := render.NewPoppler(cfg.Render.Rasterizer, cfg.Render.InfoTool, cfg.Label.DPI)
	locator := region.NewContentLocator()

	var printer printing.Printer
	if cfg.Printing.Enabled {
		printer = printing.NewCUPS()
	}

	jrnl, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}
	return daemon.New(cfg, jrnl, renderer, locator, printer, logger)
}
