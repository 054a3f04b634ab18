package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	auditpg "3tcapital/ms_einvoice_batch/internal/adapters/audit/postgres"
	burstadapter "3tcapital/ms_einvoice_batch/internal/adapters/burst"
	bursthttp "3tcapital/ms_einvoice_batch/internal/adapters/http/burst"
	healthhttp "3tcapital/ms_einvoice_batch/internal/adapters/http/health"
	"3tcapital/ms_einvoice_batch/internal/adapters/render/gofpdf"
	storepg "3tcapital/ms_einvoice_batch/internal/adapters/store/postgres"
	"3tcapital/ms_einvoice_batch/internal/adapters/submission/pa"
	"3tcapital/ms_einvoice_batch/internal/adapters/submission/simulated"
	"3tcapital/ms_einvoice_batch/internal/adapters/transform/httpxsl"
	"3tcapital/ms_einvoice_batch/internal/application/batch"
	apphealth "3tcapital/ms_einvoice_batch/internal/application/health"
	"3tcapital/ms_einvoice_batch/internal/application/processing"
	"3tcapital/ms_einvoice_batch/internal/core/lifecycle"
	coresub "3tcapital/ms_einvoice_batch/internal/core/submission"
	coreval "3tcapital/ms_einvoice_batch/internal/core/validation"
	"3tcapital/ms_einvoice_batch/internal/infrastructure/config"
	"3tcapital/ms_einvoice_batch/internal/infrastructure/database"
	infrahttp "3tcapital/ms_einvoice_batch/internal/infrastructure/http"
	"3tcapital/ms_einvoice_batch/internal/infrastructure/http/server"
	"3tcapital/ms_einvoice_batch/internal/infrastructure/logger"
	"3tcapital/ms_einvoice_batch/internal/validation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)
	slog.SetDefault(log)
	log.Info("Starting service",
		"version", cfg.App.Version, "environment", cfg.App.Environment, "mode", cfg.Processing.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	codes, err := lifecycle.LoadCodeMap(cfg.Validation.CodeMapPath, cfg.Validation.DefaultInternalCode)
	if err != nil {
		return fmt.Errorf("load status code map: %w", err)
	}

	engine, err := buildEngine(cfg.Validation, log)
	if err != nil {
		return err
	}

	mode, err := processing.ParseMode(cfg.Processing.Mode)
	if err != nil {
		return err
	}
	policy, err := processing.ParseSubmitPolicy(cfg.Submission.Policy)
	if err != nil {
		return err
	}

	submitter, err := buildSubmitter(cfg, log)
	if err != nil {
		return err
	}

	reportOut, closeReport, err := openReport(cfg.Processing.ReportPath)
	if err != nil {
		return fmt.Errorf("open report output: %w", err)
	}
	defer closeReport()
	report := coreval.NewReportWriter(reportOut)

	splitter := burstadapter.NewSplitter(cfg.Burst.Key)
	extractor := burstadapter.NewExtractor(burstadapter.DefaultFieldPaths())
	transformer := httpxsl.NewClient(cfg.Processing.TransformServiceURL, infrahttp.NewClient(nil), log)
	renderer := gofpdf.NewRenderer(log)
	auditRepo := auditpg.NewRepository(pool, log)

	source := storepg.NewSource(pool, codes, cfg.Processing.AmountScaleFactor, log)
	scheduler := batch.NewScheduler(cfg.Burst.WorkerPoolSize, source, log)

	factory := func(burstID, correlationID string, ov bursthttp.Overrides) batch.Processor {
		opts := processing.Options{
			Mode:                   mode,
			Policy:                 policy,
			PersistenceEnabled:     cfg.Processing.PersistenceEnabled,
			AttachmentsEnabled:     cfg.Processing.AttachmentsEnabled,
			StylesheetIntermediate: cfg.Processing.StylesheetIntermediate,
			StylesheetExchange:     cfg.Processing.StylesheetExchange,
			PDFTemplate:            cfg.Processing.PDFTemplate,
			BurstID:                burstID,
			CorrelationID:          correlationID,
		}
		if ov.Mode != nil {
			opts.Mode = *ov.Mode
		}
		if ov.Policy != nil {
			opts.Policy = *ov.Policy
		}
		return processing.NewProcessor(opts, extractor, engine, transformer, renderer, submitter, auditRepo, report, log)
	}
	burstHandler := bursthttp.NewHandler(splitter, scheduler, factory, auditRepo, log)

	healthSvc := apphealth.NewService(apphealth.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	})
	healthSvc.AddDependency("database", pool.Ping)

	srv, err := server.New(server.Options{
		Config:        cfg,
		Logger:        log,
		HealthHandler: http.HandlerFunc(healthhttp.NewHandler(healthSvc).Status),
		BurstHandler:  http.HandlerFunc(burstHandler.Ingest),
		AuditHandler:  http.HandlerFunc(burstHandler.Audit),
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer srv.Close()

	return srv.Run(ctx)
}

func buildEngine(cfg config.ValidationSettings, log *slog.Logger) (*validation.Engine, error) {
	schema, err := validation.LoadSchemaFile(cfg.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("load validation schema: %w", err)
	}

	profiles := make([]*validation.Profile, 0, len(cfg.ProfilePaths))
	for _, path := range cfg.ProfilePaths {
		profile, err := validation.LoadProfileFile(path)
		if err != nil {
			return nil, fmt.Errorf("load validation profile %s: %w", path, err)
		}
		profiles = append(profiles, profile)
	}

	return validation.NewEngine(log, schema, profiles...), nil
}

// buildSubmitter picks the submission client for the configured mode. A
// nil submitter means submission is off entirely.
func buildSubmitter(cfg config.AppConfig, log *slog.Logger) (coresub.Submitter, error) {
	switch cfg.Submission.Mode {
	case "off":
		return nil, nil
	case "simulated":
		behavior, err := simulated.ParseBehavior(cfg.Submission.SimulatedBehavior)
		if err != nil {
			return nil, err
		}
		return simulated.NewClient(behavior, log), nil
	case "api":
		traced := infrahttp.NewTracedClient(&infrahttp.TracedClientConfig{
			Timeout: cfg.Submission.APITimeout,
		}, log, "platform")

		auth := pa.NewAuthManager(
			cfg.Submission.BaseURL,
			cfg.Submission.LoginEndpoint,
			cfg.Submission.Username,
			cfg.Submission.Password,
			cfg.Submission.TokenTTL,
			traced,
			log,
		)

		client := pa.NewClient(
			true,
			cfg.Submission.BaseURL,
			cfg.Submission.ImportEndpoint,
			cfg.Submission.APITimeout,
			auth,
			traced,
			log,
		)
		client.Protect(pa.NewBreaker(0, 0), pa.NewLimiter(cfg.Burst.WorkerPoolSize))
		return client, nil
	default:
		return nil, fmt.Errorf("unknown submission mode %q", cfg.Submission.Mode)
	}
}

// openReport resolves the report destination: the configured file in
// append mode, or stdout when no path is set.
func openReport(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
