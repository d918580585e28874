package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/orderfood/preorder.git/internal/config"
	kafkax "github.com/orderfood/preorder.git/internal/kafka"
	"github.com/orderfood/preorder.git/internal/notifier"
	"github.com/orderfood/preorder.git/internal/orders"
	"github.com/orderfood/preorder.git/internal/redisx"
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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	hub := notifier.NewHub(log)
	svc := &notifier.Service{
		Redis:       rdb,
		Hub:         hub,
		ServiceName: cfg.ServiceName + "-notifier",
		Log:         log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	srv := &http.Server{Addr: cfg.WSAddr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range []string{
		orders.TopicOrderCreated,
		orders.TopicOrderPaid,
		orders.TopicOrderCancelled,
	} {
		c := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topic, cfg.NotifierWorkers)
		g.Go(func() error { return c.Start(gctx, svc.HandleEvent) })
	}
	g.Go(func() error {
		log.WithField("addr", cfg.WSAddr).Info("websocket listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		return srv.Shutdown(sctx)
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down...")
		cancel()
	}()

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("notifier stopped")
	}
}
