package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"veriflow/internal/artifacts"
	"veriflow/internal/camera"
	"veriflow/internal/config"
	"veriflow/internal/frameextract"
	"veriflow/internal/logging"
	"veriflow/internal/notifications"
	"veriflow/internal/recording"
	"veriflow/internal/session"
	"veriflow/internal/submission"
	"veriflow/internal/wizard"

	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// ensureLogger builds the process logger once. Log lines go to a file in the
// configured log dir so terminal output stays reserved for command results.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "veriflow.log")},
		})
		if err != nil {
			c.loggerErr = fmt.Errorf("initialize logger: %w", err)
			return
		}
		c.logger = logging.NewComponentLogger(logger, "cli")
	})
	return c.logger, c.loggerErr
}

// pipeline bundles the capture components a command needs. Commands that only
// touch the store or tracker open those directly instead.
type pipeline struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *artifacts.Store
	tracker      *session.Tracker
	manager      *camera.Manager
	extractor    *frameextract.Extractor
	recorder     *recording.Recorder
	notifier     notifications.Service
	orchestrator *submission.Orchestrator
	wizard       *wizard.Wizard

	front  *wizard.DocumentStage
	back   *wizard.DocumentStage
	face   *wizard.FaceStage
	submit *wizard.SubmitStage
}

func (p *pipeline) Close() error {
	if p == nil || p.store == nil {
		return nil
	}
	return p.store.Close()
}

func (p *pipeline) stageFor(name string) (wizard.Handler, bool) {
	switch name {
	case "front":
		return p.front, true
	case "back":
		return p.back, true
	case "face":
		return p.face, true
	}
	return nil, false
}

// newPipeline assembles the full capture pipeline. onTick receives the
// countdown before face-clip recording starts; pass nil to skip it.
func (c *commandContext) newPipeline(ctx context.Context, onTick func(remaining int)) (*pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	store, err := artifacts.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	tracker, err := session.Open(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open session tracker: %w", err)
	}

	manager := camera.NewManager(cfg, logger)
	extractor := frameextract.New(cfg, logger)
	notifier := notifications.NewService(cfg)
	encoding := recording.SelectEncoding(recording.EncoderSupport(ctx, cfg.FFmpegBinary()))
	recorder := recording.NewRecorder(cfg, logger, store, encoding, onTick)
	orchestrator := submission.NewOrchestrator(cfg, logger, store, tracker, extractor, notifier)

	front := wizard.NewDocumentStage(cfg, logger, manager, extractor, store, tracker, notifier, artifacts.KeyFront)
	back := wizard.NewDocumentStage(cfg, logger, manager, extractor, store, tracker, notifier, artifacts.KeyBack)
	face := wizard.NewFaceStage(cfg, logger, manager, recorder, tracker, notifier)
	submit := wizard.NewSubmitStage(cfg, logger, store, orchestrator)

	return &pipeline{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		tracker:      tracker,
		manager:      manager,
		extractor:    extractor,
		recorder:     recorder,
		notifier:     notifier,
		orchestrator: orchestrator,
		wizard:       wizard.New(cfg, logger, tracker, notifier, front, back, face, submit),
		front:        front,
		back:         back,
		face:         face,
		submit:       submit,
	}, nil
}

func (c *commandContext) openStore() (*artifacts.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return artifacts.Open(cfg)
}

func (c *commandContext) openTracker() (*session.Tracker, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return session.Open(cfg)
}

func countdownPrinter(out io.Writer) func(remaining int) {
	return func(remaining int) {
		fmt.Fprintf(out, "Recording starts in %d...\n", remaining)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
