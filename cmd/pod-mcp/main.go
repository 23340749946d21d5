package main

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/patent-pod-intake/internal/adapters/mcp"
	"github.com/kirillkom/patent-pod-intake/internal/bootstrap"
	"github.com/kirillkom/patent-pod-intake/internal/config"
	"github.com/kirillkom/patent-pod-intake/internal/observability/logging"
)

const (
	serviceName = "pod-mcp"
	version     = "0.1.0"
)

func main() {
	// stdout carries the protocol.
	logger := logging.New(os.Stderr, "json", serviceName, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config_error", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(context.Background(), cfg, serviceName, logger)
	if err != nil {
		logger.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer(mcpadapter.NewTools(app.ApplicationsUC, logger), version)
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp_serve_error", "error", err)
		app.Close()
		os.Exit(1)
	}
}
