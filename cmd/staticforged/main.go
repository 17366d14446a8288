// Command staticforged is the single binary that serves every process
// role: the HTTP API, the queue worker pool, or both at once (the
// default). Split deployments run two copies with --mode api and
// --mode worker against the same database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/staticforge/staticforge/internal/adapters"
	"github.com/staticforge/staticforge/internal/agentloop"
	"github.com/staticforge/staticforge/internal/api"
	"github.com/staticforge/staticforge/internal/cleanup"
	"github.com/staticforge/staticforge/internal/config"
	"github.com/staticforge/staticforge/internal/events"
	"github.com/staticforge/staticforge/internal/liveedit"
	"github.com/staticforge/staticforge/internal/pipeline"
	"github.com/staticforge/staticforge/internal/queue"
	"github.com/staticforge/staticforge/internal/settings"
	"github.com/staticforge/staticforge/internal/store"
	"github.com/staticforge/staticforge/internal/verify"
)

func main() {
	mode := flag.String("mode", "all", "process role: api, worker, or all")
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	flag.Parse()

	if err := run(*mode, *envFile); err != nil {
		slog.Error("staticforged exited with error", "error", err)
		os.Exit(1)
	}
}

func run(mode, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig, err := parseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer st.Close()

	bus := events.New()
	publisher := events.NewPublisher(bus, st)
	resolver := settings.New(st)

	browser, err := adapters.NewRodBrowser()
	if err != nil {
		return err
	}
	images := adapters.NewImagingCodec()
	cssProc := adapters.NewMinifyCSS()
	jsMin := adapters.NewMinifyJS()
	deployer, err := adapters.NewS3Deployer(ctx, cfg.EdgeBucket, cfg.EdgePublicURL)
	if err != nil {
		return err
	}
	measurer := adapters.NewHTTPMeasurer(cfg.MeasurementEndpoint, cfg.MeasurementAPIKey)

	oracleModel, err := openai.New(openai.WithToken(cfg.OracleAPIKey), openai.WithModel(cfg.OracleModel))
	if err != nil {
		return err
	}
	oracle := adapters.NewLangchainOracle(oracleModel, cfg.OracleModel)

	engine := &pipeline.Engine{
		Store: st, Resolver: resolver, Publisher: publisher,
		Browser: browser, Images: images, CSS: cssProc, JS: jsMin,
		Deployer: deployer, Measurer: measurer,
		DataRoot: cfg.DataRoot,
	}
	verifySuite := verify.NewSuite(browser, measurer)
	viewports := []adapters.Viewport{adapters.ViewportMobile, adapters.ViewportTablet, adapters.ViewportDesktop}

	agentRunner := &agentloop.Runner{
		Store: st, Resolver: resolver, Publisher: publisher,
		Pipeline: engine, Verify: verifySuite, Oracle: oracle,
		DataRoot: cfg.DataRoot, Viewports: viewports, Strategy: "mobile",
	}

	liveEditMgr := liveedit.New(st, publisher, deployer, oracle, cfg.DataRoot)

	queueConfig := queue.DefaultConfig()
	queueConfig.WorkerCount = cfg.QueueWorkerCount
	queueConfig.LeaseDuration = cfg.QueueLeaseTime

	pool := queue.NewPool(uuid.NewString(), st, queueConfig, map[store.JobKind]queue.Executor{
		store.JobBuild: engine,
		store.JobAgent: agentRunner,
	})

	sweeper := cleanup.New(st, cfg.DataRoot, int(cfg.CleanupRetention.Hours()/24))

	runWorker := mode == "worker" || mode == "all"
	runAPI := mode == "api" || mode == "all"

	if runWorker {
		pool.Start(ctx)
		defer pool.Stop()
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	if runAPI {
		server := api.NewServer(cfg, st, resolver, bus, publisher, pool, liveEditMgr)
		slog.Info("staticforged listening", "addr", cfg.ListenAddr, "mode", mode)
		return server.Start(ctx, cfg.ListenAddr)
	}

	<-ctx.Done()
	return nil
}

// parseDatabaseURL splits STATICFORGE_DATABASE_URL into the discrete
// fields store.Config expects, so a secret never needs hand-escaping
// past this one process boundary.
func parseDatabaseURL(raw string) (store.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return store.Config{}, err
	}
	password, _ := u.User.Password()
	port, _ := strconv.Atoi(u.Port())
	if port == 0 {
		port = 5432
	}
	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}
	return store.Config{
		Host:            u.Hostname(),
		Port:            port,
		User:            u.User.Username(),
		Password:        password,
		Database:        strings.TrimPrefix(u.Path, "/"),
		SSLMode:         sslMode,
		MaxOpenConns:    20,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}, nil
}
