package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"repverse/internal/app/jobs"
	appsubmission "repverse/internal/app/submission"
	"repverse/internal/domain/evaluation"
	"repverse/internal/domain/marketplace"
	"repverse/internal/domain/submission"
	"repverse/internal/infra/llm"
	"repverse/internal/infra/observability"
	"repverse/internal/infra/store/memory"
	"repverse/internal/infra/store/postgres"
	"repverse/internal/infra/workresolver"
	"repverse/internal/shared/config"
	"repverse/internal/shared/logging"
	"repverse/internal/shared/utils"
	id "repverse/internal/shared/utils/id"

	shell "github.com/ipfs/go-ipfs-api"
)

// Foundation holds the wired services shared by the server and the CLI.
// Create it with BuildFoundation and defer Close.
type Foundation struct {
	Config   config.RuntimeConfig
	Logger   logging.Logger
	Obs      *observability.Observability
	Degraded *DegradedComponents

	Model       llm.Client
	Engine      *evaluation.Engine
	Store       marketplace.Store
	Resolver    *workresolver.Resolver
	Submissions *appsubmission.Service
	Jobs        *jobs.Service

	cleanups []func()
}

// BuildFoundation wires config into live components. Observability and the
// IPFS client are optional; the model, engine and store are required.
func BuildFoundation(ctx context.Context, cfg config.RuntimeConfig, logger logging.Logger) (*Foundation, error) {
	logger = logging.OrNop(logger)
	utils.SetDefaultLevel(utils.ParseLevel(cfg.LogLevel))
	strategy, err := id.ParseStrategy(cfg.IDStrategy)
	if err != nil {
		logger.Warn("[Bootstrap] %v; falling back to ksuid", err)
	}
	id.SetStrategy(strategy)

	f := &Foundation{Config: cfg, Logger: logger, Degraded: NewDegradedComponents()}

	var ipfs workresolver.IPFSReader
	stages := []Stage{
		{
			Name: "observability", Required: false,
			Init: func(ctx context.Context) error {
				f.Obs = observability.New(ctx, cfg.Observability, logger)
				f.addCleanup(func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := f.Obs.Shutdown(shutdownCtx); err != nil {
						logger.Warn("[Bootstrap] observability shutdown: %v", err)
					}
				})
				return nil
			},
		},
		{
			Name: "model", Required: true,
			Init: func(context.Context) error {
				model, err := llm.NewClient(cfg.LLM, f.Obs.Metrics, logger)
				if err != nil {
					return err
				}
				f.Model = model
				return nil
			},
		},
		{
			Name: "engine", Required: true,
			Init: func(context.Context) error {
				policies, err := policySetFromConfig(cfg.Evaluation.Policies)
				if err != nil {
					return fmt.Errorf("evaluator policies: %w", err)
				}
				engine, err := evaluation.NewEngine(f.Model, policies,
					evaluation.WithParallelAgents(cfg.Evaluation.ParallelAgents),
					evaluation.WithLogger(logging.NewComponentLogger("Evaluation")),
					evaluation.WithTracer(f.Obs.Tracer.Tracer()),
					evaluation.WithRecorder(f.Obs.Metrics),
				)
				if err != nil {
					return err
				}
				f.Engine = engine
				return nil
			},
		},
		{
			Name: "store", Required: true,
			Init: f.initStore,
		},
		{
			Name: "ipfs", Required: false,
			Init: func(context.Context) error {
				addr := strings.TrimSpace(cfg.Resolver.IPFSAPIAddress)
				if addr == "" {
					return fmt.Errorf("no IPFS API address configured")
				}
				ipfs = shell.NewShell(addr)
				return nil
			},
		},
	}
	if err := RunStages(ctx, stages, f.Degraded, logger); err != nil {
		f.Close()
		return nil, err
	}

	f.Resolver = workresolver.New(workresolver.Config{
		CacheSize: cfg.Resolver.CacheSize,
		CacheTTL:  cfg.Resolver.CacheTTL(),
		MaxBytes:  cfg.Resolver.MaxFetchBytes,
		Timeout:   time.Duration(cfg.Resolver.TimeoutSeconds) * time.Second,
	}, ipfs, logging.NewComponentLogger("WorkResolver"))

	f.Submissions = appsubmission.NewService(f.Engine, f.Resolver, f.Store, appsubmission.Config{
		PassThreshold: cfg.Evaluation.PassThreshold,
		Policy: submission.Policy{
			VetoThreshold: cfg.Evaluation.VetoThreshold,
			MaxRetries:    cfg.Evaluation.MaxRetries,
		},
	}, appsubmission.WithLogger(logging.NewComponentLogger("Submissions")))
	f.Jobs = jobs.NewService(f.Model, f.Model, logging.NewComponentLogger("Jobs"))

	if !f.Degraded.IsEmpty() {
		logger.Warn("[Bootstrap] Degraded components: %s", f.Degraded)
	}
	return f, nil
}

func (f *Foundation) initStore(ctx context.Context) error {
	databaseURL := strings.TrimSpace(f.Config.Storage.DatabaseURL)
	if databaseURL == "" {
		f.Logger.Info("[Bootstrap] Using in-memory store")
		f.Store = memory.New()
		return nil
	}
	pool, err := postgres.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	f.addCleanup(pool.Close)
	store, err := postgres.New(pool)
	if err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	f.Logger.Info("[Bootstrap] Using postgres store")
	f.Store = store
	return nil
}

func (f *Foundation) addCleanup(fn func()) {
	f.cleanups = append(f.cleanups, fn)
}

// Close releases resources in reverse order of acquisition.
func (f *Foundation) Close() {
	if f == nil {
		return
	}
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
	f.cleanups = nil
}
