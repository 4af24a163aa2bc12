package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/zero-day-ai/conductor/internal/config"
	"github.com/zero-day-ai/conductor/internal/database"
	"github.com/zero-day-ai/conductor/internal/delegation"
	"github.com/zero-day-ai/conductor/internal/engine"
	"github.com/zero-day-ai/conductor/internal/evidence"
	"github.com/zero-day-ai/conductor/internal/execunit"
	"github.com/zero-day-ai/conductor/internal/intake"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/llm/providers"
	"github.com/zero-day-ai/conductor/internal/lock"
	"github.com/zero-day-ai/conductor/internal/memory"
	"github.com/zero-day-ai/conductor/internal/observability"
	"github.com/zero-day-ai/conductor/internal/planner"
	"github.com/zero-day-ai/conductor/internal/tracker"
	"github.com/zero-day-ai/conductor/internal/types"
)

// Daemon owns the assembled runtime: database, engine, HTTP server and
// the background pruner.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *database.DB
	engine   *engine.Engine
	server   *Server
	reporter *CallbackReporter
	etcd     *clientv3.Client

	pruneStop chan struct{}
}

// Build assembles a daemon from configuration. Nothing runs until Run is
// called.
func Build(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbCfg := database.DefaultConfig(cfg.Database.Path)
	dbCfg.MaxOpenConns = cfg.Database.MaxConnections
	dbCfg.BusyTimeout = cfg.Database.BusyTimeout
	db, err := database.OpenWithConfig(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	d := &Daemon{cfg: cfg, logger: logger, db: db, pruneStop: make(chan struct{})}
	if err := d.wire(); err != nil {
		_ = db.Close()
		if d.etcd != nil {
			_ = d.etcd.Close()
		}
		return nil, err
	}
	return d, nil
}

func (d *Daemon) wire() error {
	cfg := d.cfg

	registry, err := providers.BuildRegistry(cfg.LLM)
	if err != nil {
		return err
	}
	gateway := llm.NewGateway(registry, cfg.LLM.DefaultProvider, cfg.LLM.EscalationProvider,
		llm.WithLogger(d.logger),
		llm.WithTracer(observability.Tracer("llm")),
		llm.WithLiveness(llm.LivenessConfig{
			HeartbeatWindow: cfg.Engine.HeartbeatWindow,
			MonitorTick:     cfg.Engine.MonitorTick,
			Retries:         cfg.Engine.LivenessRetries,
		}),
	)

	var pool *execunit.Pool
	if len(cfg.ExecUnit.Command) > 0 {
		launcher, err := execunit.NewCommandLauncher(cfg.ExecUnit.Command, d.logger)
		if err != nil {
			return err
		}
		pool = execunit.NewPool(launcher, cfg.ExecUnit.Slots, cfg.ExecUnit.SubmitTimeout, d.logger)
	} else {
		d.logger.Warn("no execution unit command configured, execute steps will fail")
	}

	var trackerClient tracker.Client
	if cfg.Tracker.BaseURL != "" {
		trackerClient = tracker.NewHTTPClient(cfg.Tracker.BaseURL, cfg.Tracker.Token)
	}

	workspaces := evidence.NewWorkspaceStore(cfg.Evidence.WorkspacesRoot)
	collector := evidence.NewCollector(workspaces, workspaces,
		evidence.WithSearchLimit(cfg.Evidence.SearchLimit),
		evidence.WithLogger(d.logger),
	)

	contexts := memory.NewContextStore(database.NewContextDAO(d.db), cfg.Engine.ContextTTL, d.logger)
	procedural := memory.NewProceduralMemory(database.NewPatternDAO(d.db), d.logger)

	agents := delegation.NewRegistry(delegation.NewGenericAgent(gateway, 12000))
	delegator := delegation.NewExecutor(agents,
		delegation.WithMaxParallel(cfg.Engine.MaxParallelDelegations),
		delegation.WithLogger(d.logger),
	)

	locker, err := d.buildLocker()
	if err != nil {
		return err
	}

	// The engine exists before the controller callback fires, so the
	// indirection through d.engine is safe.
	controller := lock.NewController(locker, holderID(), cfg.Lock.HeartbeatInterval,
		lock.WithControllerLogger(d.logger),
		lock.WithLostHandler(func(threadID types.ID) {
			if d.engine != nil {
				d.engine.OnLockLost(threadID)
			}
		}),
	)

	reporter := engine.Reporter(engine.NopReporter{})
	if cfg.Daemon.CallbackURL != "" {
		d.reporter = NewCallbackReporter(cfg.Daemon.CallbackURL, d.logger)
		reporter = d.reporter
	}

	d.engine = engine.New(engine.Deps{
		Classifier:  intake.NewClassifier(gateway, d.logger),
		Collector:   collector,
		Planner:     planner.NewPlanner(gateway, procedural, d.logger),
		Dispatcher:  engine.NewDispatcher(gateway, pool, trackerClient, d.logger),
		Evaluator:   engine.NewEvaluator(cfg.Engine.Policy.ForbiddenPaths, cfg.Engine.Policy.MaxChangedArtifacts, d.logger),
		Delegator:   delegator,
		Synthesizer: delegation.NewSynthesizer(gateway),
		Checkpoints: engine.NewCheckpointer(database.NewCheckpointDAO(d.db)),
		Locks:       controller,
		Gateway:     gateway,
	}, cfg.Engine.Policy,
		engine.WithReporter(reporter),
		engine.WithContextStore(contexts),
		engine.WithProceduralMemory(procedural),
		engine.WithEngineLogger(d.logger),
		engine.WithEngineTracer(observability.Tracer("engine")),
	)

	d.server = NewServer(d.engine, cfg.Daemon, d.logger)
	return nil
}

// buildLocker selects the distributed lock backend.
func (d *Daemon) buildLocker() (lock.Locker, error) {
	switch d.cfg.Lock.Backend {
	case "", "store":
		return lock.NewStoreLocker(database.NewLockDAO(d.db), d.cfg.Lock.StaleThreshold), nil
	case "etcd":
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   d.cfg.Lock.Etcd.Endpoints,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("etcd connect: %w", err)
		}
		d.etcd = client
		return lock.NewEtcdLocker(client, d.cfg.Lock.Etcd.LeaseTTL), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", d.cfg.Lock.Backend)
	}
}

// Run recovers interrupted workflows, starts the pruner and serves HTTP
// until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.engine.Recover(ctx); err != nil {
		d.logger.Error("workflow recovery failed", "error", err)
	}
	go d.pruneLoop()

	errCh := make(chan error, 1)
	go func() { errCh <- d.server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return d.Close(shutdownCtx)
	}
}

// pruneLoop removes expired checkpoints and context entries hourly.
func (d *Daemon) pruneLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := d.engine.Prune(context.Background(), d.cfg.Engine.CheckpointTTL); err != nil {
				d.logger.Warn("prune failed", "error", err)
			}
		case <-d.pruneStop:
			return
		}
	}
}

// Close stops the server and releases resources.
func (d *Daemon) Close(ctx context.Context) error {
	close(d.pruneStop)
	err := d.server.Shutdown(ctx)
	if d.reporter != nil {
		d.reporter.Close()
	}
	if d.etcd != nil {
		_ = d.etcd.Close()
	}
	if dbErr := d.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

// holderID identifies this process in the distributed lock record.
func holderID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "conductor"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
