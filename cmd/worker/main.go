package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/iwanfadzly/call/internal/adapters"
	callprovider "github.com/iwanfadzly/call/internal/calls/provider"
	callrepo "github.com/iwanfadzly/call/internal/calls/repository"
	callsvc "github.com/iwanfadzly/call/internal/calls/service"
	"github.com/iwanfadzly/call/internal/config"
	"github.com/iwanfadzly/call/internal/exports"
	leadrepo "github.com/iwanfadzly/call/internal/leads/repository"
	leadsvc "github.com/iwanfadzly/call/internal/leads/service"
	"github.com/iwanfadzly/call/internal/orders/payment"
	orderrepo "github.com/iwanfadzly/call/internal/orders/repository"
	ordersvc "github.com/iwanfadzly/call/internal/orders/service"
	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/internal/whatsapp"
	"github.com/iwanfadzly/call/platform/db"
	"github.com/iwanfadzly/call/platform/logger"
)

// The worker binary consumes the three queue lanes. It shares the wiring of
// the api binary minus the HTTP surface: handlers are registered here, so the
// queue package itself never depends on the service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("production").Error("load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	queue, err := scheduler.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("connect queue", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	worker, err := scheduler.NewWorker(scheduler.WorkerConfig{
		RedisURL:            cfg.RedisURL,
		CallsConcurrency:    cfg.CallsConcurrency,
		WhatsAppConcurrency: cfg.WhatsAppConcurrency,
		ExportsConcurrency:  cfg.ExportsConcurrency,
		RetryBaseDelay:      cfg.RetryBaseDelay,
	}, log)
	if err != nil {
		log.Error("build queue worker", "error", err)
		os.Exit(1)
	}

	leadRepository := leadrepo.New(pool)
	leadService := leadsvc.New(leadRepository, log)
	leadDir := adapters.NewLeadAdapter(leadService, leadRepository)
	timeline := adapters.NewTimelineAdapter(leadRepository)

	caller := buildCallProvider(cfg)
	if caller == nil {
		log.Error("active call provider has no credentials", "provider", string(cfg.CallProvider))
		os.Exit(1)
	}
	callService := callsvc.New(callrepo.New(pool), caller, leadDir.Calls(), timeline, log)

	gateway := buildPaymentGateway(cfg)
	if gateway == nil {
		log.Error("active payment provider has no credentials", "provider", string(cfg.PaymentProvider))
		os.Exit(1)
	}
	orderService := ordersvc.New(orderrepo.New(pool), gateway, leadDir.Orders(), nil,
		timeline, queue, cfg.AppBaseURL, log)

	waService := whatsapp.NewService(
		whatsapp.NewRepository(pool),
		whatsapp.NewClient(cfg.WhatsAppEndpoint, cfg.WhatsAppAPIKey),
		leadDir.WhatsApp(),
		adapters.NewOrderActionsAdapter(orderService),
		log)

	var uploader exports.Uploader
	if cfg.MinioEndpoint != "" {
		uploader, err = exports.NewMinioStorage(ctx, exports.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.MinioBucketExport,
		})
		if err != nil {
			log.Error("connect object store", "error", err)
			os.Exit(1)
		}
	}
	exportService := exports.NewService(exports.NewRepository(pool), uploader, queue, log)

	worker.Handle(scheduler.TaskCallLead, callService.HandleCallLeadTask)
	worker.Handle(scheduler.TaskWhatsAppSend, waService.HandleSendTask)
	worker.Handle(scheduler.TaskExportData, exportService.HandleExportTask)

	log.Info("worker starting",
		"calls_concurrency", cfg.CallsConcurrency,
		"whatsapp_concurrency", cfg.WhatsAppConcurrency,
		"exports_concurrency", cfg.ExportsConcurrency)

	if err := worker.Run(ctx); err != nil {
		os.Exit(1)
	}
}

func buildCallProvider(cfg *config.Config) callprovider.CallProvider {
	switch cfg.CallProvider {
	case config.CallProviderRetell:
		if cfg.RetellAPIKey == "" {
			return nil
		}
		return callprovider.NewRetell(callprovider.RetellConfig{
			APIKey:     cfg.RetellAPIKey,
			AgentID:    cfg.RetellAgentID,
			WebhookKey: cfg.RetellWebhookKey,
			Timeout:    cfg.CallTimeout,
		})
	case config.CallProviderTwilio:
		if cfg.TwilioAccountSID == "" {
			return nil
		}
		return callprovider.NewTwilio(callprovider.TwilioConfig{
			AccountSID:  cfg.TwilioAccountSID,
			AuthToken:   cfg.TwilioAuthToken,
			FromNumber:  cfg.TwilioPhoneNumber,
			CallbackURL: cfg.AppBaseURL + "/api/v1/webhooks/calls/twilio",
			TwimlURL:    cfg.TwilioTwimlURL,
			Timeout:     cfg.CallTimeout,
		})
	}
	return nil
}

func buildPaymentGateway(cfg *config.Config) payment.PaymentProvider {
	switch cfg.PaymentProvider {
	case config.PaymentProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil
		}
		return payment.NewStripe(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		})
	case config.PaymentProviderBillplz:
		if cfg.BillplzSecretKey == "" {
			return nil
		}
		return payment.NewBillplz(payment.BillplzConfig{
			SecretKey:     cfg.BillplzSecretKey,
			CollectionID:  cfg.BillplzCollectionID,
			XSignatureKey: cfg.BillplzXSignatureKey,
		})
	case config.PaymentProviderToyyibpay:
		if cfg.ToyyibpaySecretKey == "" {
			return nil
		}
		return payment.NewToyyibpay(payment.ToyyibpayConfig{
			SecretKey:    cfg.ToyyibpaySecretKey,
			CategoryCode: cfg.ToyyibpayCategory,
		})
	}
	return nil
}
