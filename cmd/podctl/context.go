package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/patent-pod-intake/internal/bootstrap"
	"github.com/kirillkom/patent-pod-intake/internal/config"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
	"github.com/kirillkom/patent-pod-intake/internal/observability/logging"
)

const serviceName = "podctl"

// services is the slice of the pipeline the commands drive.
type services struct {
	intake     ports.IntakeService
	classifier ports.ClassificationOrchestrator
	review     ports.ReviewService
	apps       ports.ApplicationReader
	events     ports.EventSubscriber
	close      func()
}

type commandContext struct {
	configPath string
	sqlitePath string
	owner      string
	jsonOutput bool
	logLevel   string

	open func(ctx context.Context, cc *commandContext) (*services, error)
}

func newCommandContext() *commandContext {
	return &commandContext{open: openServices}
}

func (c *commandContext) withServices(cmd *cobra.Command, fn func(*services) error) error {
	svc, err := c.open(cmd.Context(), c)
	if err != nil {
		return err
	}
	if svc.close != nil {
		defer svc.close()
	}
	return fn(svc)
}

func openServices(ctx context.Context, cc *commandContext) (*services, error) {
	if path := strings.TrimSpace(cc.configPath); path != "" {
		if err := os.Setenv("CONFIG_FILE", path); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if path := strings.TrimSpace(cc.sqlitePath); path != "" {
		cfg.DBDriver = "sqlite"
		cfg.SQLitePath = path
	}

	logger := logging.New(os.Stderr, "text", serviceName, cc.logLevel)
	app, err := bootstrap.New(ctx, cfg, serviceName, logger)
	if err != nil {
		return nil, err
	}

	svc := &services{
		intake:     app.IntakeUC,
		classifier: app.ClassifyUC,
		review:     app.ReviewUC,
		apps:       app.ApplicationsUC,
		close:      app.Close,
	}
	if app.Events != nil {
		svc.events = app.Events
	}
	return svc, nil
}

var errEventsDisabled = errors.New("commit events are disabled; set EVENTS_ENABLED=true and configure EVENTS_BACKEND")
