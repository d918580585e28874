package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/orderfood/preorder.git/internal/config"
	kafkax "github.com/orderfood/preorder.git/internal/kafka"
	"github.com/orderfood/preorder.git/internal/orders"
	"github.com/orderfood/preorder.git/internal/postgres"
	"github.com/orderfood/preorder.git/internal/reaper"
)

func main() {
	_ = godotenv.Load()
	log := logrus.StandardLogger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	producer := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 256)
	producer.Start(ctx)

	r := &reaper.Reaper{
		Engine:   &orders.Engine{Store: &orders.PGStore{DB: db}},
		Timeout:  cfg.OrderTimeout,
		Producer: producer,
		Service:  cfg.ServiceName + "-reaper",
		Log:      log,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down...")
		cancel()
	}()

	log.WithFields(logrus.Fields{
		"timeout":  cfg.OrderTimeout,
		"interval": cfg.ReapInterval,
	}).Info("reaper running")
	r.Run(ctx, cfg.ReapInterval)

	producer.Close()
	producer.WaitClosed()
}
