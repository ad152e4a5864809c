package app

import (
	"context"
	"fmt"

	configapp "github.com/doeshing/litvis-go/internal/application/config"
	"github.com/doeshing/litvis-go/internal/application/doctor"
	"github.com/doeshing/litvis-go/internal/application/narrative"
	"github.com/doeshing/litvis-go/internal/application/program"
	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/infrastructure/cache"
	"github.com/doeshing/litvis-go/internal/infrastructure/compiler"
	"github.com/doeshing/litvis-go/internal/infrastructure/config"
	"github.com/doeshing/litvis-go/internal/infrastructure/document"
	"github.com/doeshing/litvis-go/internal/infrastructure/elmvalue"
	"github.com/doeshing/litvis-go/internal/infrastructure/envcache"
	"github.com/doeshing/litvis-go/internal/infrastructure/executor"
	"github.com/doeshing/litvis-go/internal/infrastructure/gc"
	"github.com/doeshing/litvis-go/internal/infrastructure/history"
	"github.com/doeshing/litvis-go/internal/infrastructure/lockfile"
	"github.com/doeshing/litvis-go/internal/pkg/logger"
	"github.com/doeshing/litvis-go/internal/ports"
)

// Options selects the config file and log verbosity.
type Options struct {
	ConfigPath string
	Verbose    bool
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config           domain.Config
	ConfigProvider   ports.ConfigProvider
	ConfigLoader     *config.FileLoader
	NarrativeService *narrative.Service
	DoctorService    *doctor.Service
	Environments     *envcache.Cache
	Collector        *gc.Collector
	HistoryStore     ports.RunHistoryRepository
	Logger           ports.Logger
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := configapp.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgLoader.Path(), err)
	}

	log := logger.NewStd(opts.Verbose)
	locks := lockfile.New(log)
	elm := compiler.New(compiler.Settings{
		Elm:            cfg.Compiler.Elm,
		RunElm:         cfg.Compiler.RunElm,
		ElmVersion:     cfg.Compiler.ElmVersion,
		CompileTimeout: cfg.CompileTimeout(),
	}, executor.NewLocalExecutor(log), log)

	collector := gc.New(cfg.Cache.Dir, locks, gc.Policy{
		Interval:           cfg.GCInterval(),
		MaxProgramCount:    cfg.MaxProgramCount(),
		MaxProgramLifetime: cfg.MaxProgramLifetime(),
	}, log)
	environments := envcache.New(cfg.Cache.Dir, locks, elm, collector, cfg.EnvironmentTimeout(), log)

	parser, err := elmvalue.NewCachedParser(elmvalue.NewParser(), cfg.Parser.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("value parser: %w", err)
	}
	runner := program.NewRunner(locks, elm, cache.NewFileResultStore(), parser, cfg.ProgramTimeout(), log).
		WithStaleLockAge(cfg.ProgramTimeout() + cfg.CompileTimeout())

	var historyStore ports.RunHistoryRepository
	if cfg.History.Enabled {
		historyStore = history.NewSQLiteStore(cfg.History.Path)
	}

	narrativeService := &narrative.Service{
		Loader:       document.NewLoader(cfg.DefaultEnvironmentSpec(), log),
		Environments: environments,
		Runner:       runner,
		History:      historyStore,
		Concurrency:  cfg.Concurrency(),
		Logger:       log,
	}

	doctorService := &doctor.Service{
		ConfigProvider: cfgLoader,
		Compiler:       elm,
		History:        historyStore,
	}

	return &Container{
		Config:           cfg,
		ConfigProvider:   cfgLoader,
		ConfigLoader:     cfgLoader,
		NarrativeService: narrativeService,
		DoctorService:    doctorService,
		Environments:     environments,
		Collector:        collector,
		HistoryStore:     historyStore,
		Logger:           log,
	}, nil
}
