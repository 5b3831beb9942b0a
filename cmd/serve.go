package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"recruit-pipeline/infrastructure"
	"recruit-pipeline/interfaces"
	"recruit-pipeline/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	intake, err := a.intake(ctx)
	if err != nil {
		return err
	}

	var (
		dispatcher service.NotificationDispatcher
		inline     *service.InlineDispatcher
	)
	if a.cfg.RabbitMQURL != "" {
		rmq, err := infrastructure.NewRabbitMQ(a.cfg.RabbitMQURL, a.cfg.NotificationQueue, a.log)
		if err != nil {
			return err
		}
		defer rmq.Close()
		dispatcher = rmq
	} else {
		a.log.Warn("RABBITMQ_URL not set, delivering notifications in-process")
		inline = service.NewInlineDispatcher(a.notifier(), a.log)
		dispatcher = inline
	}

	var limiter interfaces.RateLimiter = infrastructure.NewMemoryLimiter()
	if a.redis != nil {
		limiter = infrastructure.NewRedisLimiter(a.redis)
	}

	if a.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	interfaces.NewHTTPHandler(router, &interfaces.HTTPHandler{
		Intake: intake,
		Pipeline: service.NewPipeline(a.db, a.audit, dispatcher, a.log, service.PipelineConfig{
			MaxRound:     a.cfg.MaxInterviewRound,
			StoreTimeout: a.cfg.StoreTimeout,
		}),
		Audit:          a.audit,
		Reference:      service.NewReference(a.db, a.cache(), a.cfg.ReferenceCacheTTL, a.audit, a.log, a.cfg.StoreTimeout),
		Log:            a.log,
		MaxUploadBytes: a.cfg.MaxAttachmentTotalBytes + 1<<20,
	}, interfaces.RouterOptions{
		OperatorTokens:   a.cfg.OperatorTokens,
		Limiter:          limiter,
		IntakeRatePerMin: a.cfg.IntakeRatePerMin,
	})

	if a.cfg.DraftSweepInterval > 0 {
		go sweepEvery(ctx, a, intake, a.cfg.DraftSweepInterval)
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("server shutdown")
	}
	if inline != nil {
		inline.Wait()
	}
	return nil
}

func sweepEvery(ctx context.Context, a *app, intake *service.Intake, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := intake.SweepExpiredDrafts(ctx)
			if err != nil {
				a.log.WithError(err).Warn("draft sweep failed")
				continue
			}
			if n > 0 {
				a.log.WithField("deleted", n).Info("expired drafts swept")
			}
		}
	}
}
