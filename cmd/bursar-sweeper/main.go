package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/campuskit/bursar/pkg/config"
	"github.com/campuskit/bursar/pkg/fees"
	"github.com/campuskit/bursar/pkg/invoices"
	"github.com/campuskit/bursar/pkg/notify"
	"github.com/campuskit/bursar/pkg/observability"
	"github.com/campuskit/bursar/pkg/storage/postgres"
	"github.com/campuskit/bursar/pkg/subscriptions"
	"github.com/campuskit/bursar/pkg/sweeps"
)

var (
	runOnce   = flag.Bool("run-once", false, "Run both sweeps once and exit")
	renewOnly = flag.Bool("renewals-only", false, "With --run-once, run only the renewal sweep")
	feesOnly  = flag.Bool("fees-only", false, "With --run-once, run only the fee overdue sweep")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := postgres.Connect(postgres.ConnectionConfig{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()

	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
	notifier := notify.NewLogNotifier(logger)

	subscriptionService := subscriptions.NewPostgresService(db, nil, nil)
	invoiceService := invoices.NewPostgresService(db, cfg.Billing.InvoiceDueDays)
	feeService := fees.NewPostgresService(db)

	renewalSweeper := sweeps.NewRenewalSweeper(
		subscriptionService, invoiceService, notifier, nil, logger,
		cfg.Sweeps.RenewalLookahead, cfg.Sweeps.PreInvoiceWindow,
	)
	feeSweeper := sweeps.NewFeeOverdueSweeper(
		feeService, notifier, nil, logger,
		cfg.Sweeps.FeeReminderCooldown,
	)

	if *runOnce {
		ctx := context.Background()
		failed := false

		if !*feesOnly {
			if result, err := renewalSweeper.Run(ctx); err != nil {
				log.WithError(err).Error("renewal sweep failed")
				failed = true
			} else {
				log.WithFields(logrus.Fields{
					"reminded":           result.Reminded,
					"invoices_generated": result.InvoicesGenerated,
					"overdue_reminded":   result.OverdueReminded,
					"expired":            result.Expired,
				}).Info("renewal sweep completed")
			}
		}

		if !*renewOnly {
			if result, err := feeSweeper.Run(ctx); err != nil {
				log.WithError(err).Error("fee overdue sweep failed")
				failed = true
			} else {
				log.WithFields(logrus.Fields{
					"marked_overdue": result.MarkedOverdue,
					"reminded":       result.Reminded,
				}).Info("fee overdue sweep completed")
			}
		}

		if failed {
			os.Exit(1)
		}
		return
	}

	c := cron.New()

	if _, err := c.AddFunc(cfg.Sweeps.RenewalSchedule, func() {
		if _, err := renewalSweeper.Run(context.Background()); err != nil {
			log.WithError(err).Error("renewal sweep failed")
		}
	}); err != nil {
		log.WithError(err).Fatal("failed to schedule renewal sweep")
	}

	if _, err := c.AddFunc(cfg.Sweeps.FeeOverdueSchedule, func() {
		if _, err := feeSweeper.Run(context.Background()); err != nil {
			log.WithError(err).Error("fee overdue sweep failed")
		}
	}); err != nil {
		log.WithError(err).Fatal("failed to schedule fee overdue sweep")
	}

	c.Start()
	log.WithFields(logrus.Fields{
		"renewal_schedule":     cfg.Sweeps.RenewalSchedule,
		"fee_overdue_schedule": cfg.Sweeps.FeeOverdueSchedule,
	}).Info("bursar sweeper started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	<-c.Stop().Done()
	log.Info("sweeper stopped")
}
