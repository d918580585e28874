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

	"github.com/orderfood/preorder.git/internal/config"
	"github.com/orderfood/preorder.git/internal/httpx"
	kafkax "github.com/orderfood/preorder.git/internal/kafka"
	"github.com/orderfood/preorder.git/internal/orders"
	"github.com/orderfood/preorder.git/internal/postgres"
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

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.WithError(err).Fatal("migrate")
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024)
	pPaid.Start(ctx)

	store := &orders.PGStore{DB: db}
	engine := &orders.Engine{Store: store}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Engine:   engine,
		Store:    store,
		Producer: pCreated,
		Redis:    rdb,
		Service:  cfg.ServiceName,
	}
	oh.Register(router)
	ph := &httpx.PaymentsHandler{
		Engine:   engine,
		Store:    store,
		Producer: pPaid,
		Redis:    rdb,
		Service:  cfg.ServiceName,
	}
	ph.Register(router)
	(&httpx.MenuHandler{Store: store}).Register(router)
	(&httpx.AdminHandler{Store: store}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close() // stop accepting -> flush & close writer
	pPaid.Close()
	cancel() // stop producer loops
	pCreated.WaitClosed()
	pPaid.WaitClosed()
}
