package main

import (
	"log"
	"net/http"
	"time"

	"github.com/okitshop/paycore/internal/api"
	"github.com/okitshop/paycore/internal/cinetpay"
	"github.com/okitshop/paycore/internal/config"
	"github.com/okitshop/paycore/internal/notify"
	"github.com/okitshop/paycore/internal/service"
	"github.com/okitshop/paycore/internal/signature"
	"github.com/okitshop/paycore/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var logger *zap.Logger
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	db, err := store.NewStore(cfg.DBSource)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	var notifier notify.Notifier = notify.Noop{}
	if cfg.KafkaBroker != "" {
		kn := notify.NewKafkaNotifier(cfg.KafkaBroker, logger)
		defer kn.Close()
		notifier = kn
	} else {
		logger.Warn("KAFKA_BROKER not set, notifications disabled")
	}

	gateway := cinetpay.NewClient(cfg.CinetPayAPIKey, cfg.CinetPaySiteID, cfg.CinetPayBaseURL,
		cfg.NotifyURL, cfg.ReturnURL, cfg.CancelURL)
	verifier := signature.NewVerifier(cfg.CinetPaySecretKey)

	reconciler := service.NewReconciler(db.Db, notifier, logger)
	statusSvc := service.NewStatusService(db, gateway, reconciler, logger)
	paymentSvc := service.NewPaymentService(db, gateway, logger)

	handler := api.NewHandler(reconciler, statusSvc, paymentSvc, db, verifier, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
