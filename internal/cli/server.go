package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"form-builder-service/internal/app"
	"form-builder-service/internal/config"
	"form-builder-service/internal/metrics"
	transport "form-builder-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	log := newLogger(cfg)
	defer log.Sync()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	res := newResources()
	defer res.close(log)

	st, err := openStores(ctx, cfg, res, log)
	if err != nil {
		return err
	}
	cache, feeds := openCache(cfg, st.loader, res, log)
	publisher, err := openPublisher(cfg, res, log)
	if err != nil {
		return err
	}
	images, uploadDir, err := openImages(ctx, cfg)
	if err != nil {
		return err
	}
	m := metrics.New()

	opts := []app.Option{
		app.WithFormCache(cache),
		app.WithEventPublisher(publisher),
		app.WithFeeds(feeds),
		app.WithRecorder(m),
		app.WithLogger(log),
	}
	forms := app.NewFormService(st.forms, opts...)
	responses := app.NewResponseService(st.forms, st.responses, opts...)

	done := make(chan struct{})
	defer close(done)
	router := transport.NewRouter(transport.Dependencies{
		Forms:        forms,
		Responses:    responses,
		Images:       images,
		Metrics:      m,
		HealthChecks: res.checks,
		Logger:       log,
	}, transport.RouterConfig{
		Production:     cfg.Production(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimit:      cfg.RateLimit.Requests,
		RateWindow:     config.TTLDuration(cfg.RateLimit.Window, 15*time.Minute),
		MaxUploadBytes: cfg.Storage.MaxUploadMB << 20,
		UploadDir:      uploadDir,
		Done:           done,
	})

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting form builder service",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-serveErr:
		log.Error("server failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
