package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/contact"
	"github.com/Ramsey-B/clover/internal/repositories/dedupecandidate"
	"github.com/Ramsey-B/clover/internal/repositories/dedupemerge"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

type commandContext struct {
	envFileFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     ectologger.Logger
	loggerErr  error
}

func newCommandContext(envFileFlag *string) *commandContext {
	return &commandContext{envFileFlag: envFileFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var files []string
		if c.envFileFlag != nil && strings.TrimSpace(*c.envFileFlag) != "" {
			files = append(files, strings.TrimSpace(*c.envFileFlag))
		}
		c.config, c.configErr = config.Load(files...)
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (ectologger.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = newLogger(cfg)
	})
	return c.logger, c.loggerErr
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = level

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

// core is the database-backed part of the service shared by every command.
type core struct {
	db         database.DB
	contacts   *contact.Repository
	candidates *dedupecandidate.Repository
	merges     *dedupemerge.Repository
	configs    *matching.ConfigHolder
	service    *dedupe.Service
}

func newCore(db database.DB, cfg *config.Config, logger ectologger.Logger, emitter dedupe.EventEmitter) (*core, error) {
	configs, err := matching.NewConfigHolder(cfg.DedupeConfig())
	if err != nil {
		return nil, err
	}

	c := &core{
		db:         db,
		contacts:   contact.NewRepository(db, logger),
		candidates: dedupecandidate.NewRepository(db, logger),
		merges:     dedupemerge.NewRepository(db, logger),
		configs:    configs,
	}
	normalizer := normalizers.NewContactNormalizer(normalizers.MatchrEncoder{})
	c.service = dedupe.NewService(logger, c.contacts, c.candidates, configs, normalizer, emitter, cfg.DedupeWorkers)
	return c, nil
}

// openCore connects to the database for one-shot commands.
func (c *commandContext) openCore(ctx context.Context) (*core, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.Database(), logger)
	if err != nil {
		return nil, err
	}
	return newCore(db, cfg, logger, nil)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
