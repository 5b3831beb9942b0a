package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"recruit-pipeline/domain"
	"recruit-pipeline/infrastructure"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Deliver interview notifications from the queue",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	if a.cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is not set in environment")
	}

	rmq, err := infrastructure.NewRabbitMQ(a.cfg.RabbitMQURL, a.cfg.NotificationQueue, a.log)
	if err != nil {
		return err
	}
	defer rmq.Close()

	notifier := a.notifier()
	a.log.Info("notification worker started")
	return rmq.Consume(ctx, func(ctx context.Context, job domain.NotificationJob) {
		log := a.log.WithFields(logrus.Fields{"candidate_id": job.CandidateID, "retry": job.IsRetry})
		if err := notifier.Deliver(ctx, job); err != nil {
			log.WithError(err).Warn("notification delivery failed")
			return
		}
		log.Debug("notification job processed")
	})
}
