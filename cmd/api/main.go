package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwanfadzly/call/internal/adapters"
	"github.com/iwanfadzly/call/internal/calls"
	callprovider "github.com/iwanfadzly/call/internal/calls/provider"
	"github.com/iwanfadzly/call/internal/catalog"
	"github.com/iwanfadzly/call/internal/config"
	"github.com/iwanfadzly/call/internal/exports"
	apphttp "github.com/iwanfadzly/call/internal/http"
	"github.com/iwanfadzly/call/internal/http/router"
	"github.com/iwanfadzly/call/internal/leads"
	"github.com/iwanfadzly/call/internal/orders"
	"github.com/iwanfadzly/call/internal/orders/payment"
	"github.com/iwanfadzly/call/internal/reports"
	"github.com/iwanfadzly/call/internal/scheduler"
	"github.com/iwanfadzly/call/internal/whatsapp"
	"github.com/iwanfadzly/call/platform/db"
	"github.com/iwanfadzly/call/platform/logger"
	"github.com/iwanfadzly/call/platform/validator"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("production").Error("load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(ctx, cfg.DatabaseURL, "migrations"); err != nil {
		log.Error("run migrations", "error", err)
		os.Exit(1)
	}

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

	inspector, err := scheduler.NewInspector(cfg.RedisURL)
	if err != nil {
		log.Error("connect queue inspector", "error", err)
		os.Exit(1)
	}
	defer inspector.Close()

	val := validator.New()

	// Leads own the timeline every other module writes to.
	leadsModule := leads.NewModule(pool, queue, val, log)
	leadDir := adapters.NewLeadAdapter(leadsModule.Service(), leadsModule.Repository())
	timeline := adapters.NewTimelineAdapter(leadsModule.Repository())

	catalogModule := catalog.NewModule(pool, val)

	callProviders := buildCallProviders(cfg)
	if callProviders[string(cfg.CallProvider)] == nil {
		log.Error("active call provider has no credentials", "provider", string(cfg.CallProvider))
		os.Exit(1)
	}
	callsModule := calls.NewModule(pool, callProviders[string(cfg.CallProvider)], callProviders,
		leadDir.Calls(), timeline, log)

	gateways := buildPaymentGateways(cfg)
	if gateways[string(cfg.PaymentProvider)] == nil {
		log.Error("active payment provider has no credentials", "provider", string(cfg.PaymentProvider))
		os.Exit(1)
	}
	ordersModule := orders.NewModule(pool, gateways[string(cfg.PaymentProvider)], gateways,
		leadDir.Orders(), adapters.NewCatalogAdapter(catalogModule.Repository()), timeline,
		queue, cfg.AppBaseURL, val, log)

	waModule := whatsapp.NewModule(pool,
		whatsapp.NewClient(cfg.WhatsAppEndpoint, cfg.WhatsAppAPIKey),
		leadDir.WhatsApp(), adapters.NewOrderActionsAdapter(ordersModule.Service()),
		queue, cfg.WhatsAppAPIKey, val, log)

	// The API only enqueues exports and serves their status; the artifact
	// store is wired here too so presigned URLs work when configured.
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
	exportsSvc := exports.NewService(exports.NewRepository(pool), uploader, queue, log)

	engine := router.New(cfg.Env, log, pool, []apphttp.Module{
		leadsModule,
		callsModule,
		ordersModule,
		waModule,
		catalogModule,
		exports.NewModule(exportsSvc, val),
		reports.NewModule(pool),
		scheduler.NewModule(inspector),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

// buildCallProviders constructs every configured calling adapter so webhooks
// verify against the right credentials even after the active provider is
// switched.
func buildCallProviders(cfg *config.Config) map[string]callprovider.CallProvider {
	providers := map[string]callprovider.CallProvider{}

	if cfg.RetellAPIKey != "" {
		providers["retell"] = callprovider.NewRetell(callprovider.RetellConfig{
			APIKey:     cfg.RetellAPIKey,
			AgentID:    cfg.RetellAgentID,
			WebhookKey: cfg.RetellWebhookKey,
			Timeout:    cfg.CallTimeout,
		})
	}
	if cfg.TwilioAccountSID != "" {
		providers["twilio"] = callprovider.NewTwilio(callprovider.TwilioConfig{
			AccountSID:  cfg.TwilioAccountSID,
			AuthToken:   cfg.TwilioAuthToken,
			FromNumber:  cfg.TwilioPhoneNumber,
			CallbackURL: cfg.AppBaseURL + "/api/v1/webhooks/calls/twilio",
			TwimlURL:    cfg.TwilioTwimlURL,
			Timeout:     cfg.CallTimeout,
		})
	}
	return providers
}

// buildPaymentGateways constructs every configured payment adapter.
func buildPaymentGateways(cfg *config.Config) map[string]payment.PaymentProvider {
	gateways := map[string]payment.PaymentProvider{}

	if cfg.StripeSecretKey != "" {
		gateways["stripe"] = payment.NewStripe(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		})
	}
	if cfg.BillplzSecretKey != "" {
		gateways["billplz"] = payment.NewBillplz(payment.BillplzConfig{
			SecretKey:     cfg.BillplzSecretKey,
			CollectionID:  cfg.BillplzCollectionID,
			XSignatureKey: cfg.BillplzXSignatureKey,
		})
	}
	if cfg.ToyyibpaySecretKey != "" {
		gateways["toyyibpay"] = payment.NewToyyibpay(payment.ToyyibpayConfig{
			SecretKey:    cfg.ToyyibpaySecretKey,
			CategoryCode: cfg.ToyyibpayCategory,
		})
	}
	return gateways
}
