package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CallProviderName selects the calling backend for the whole process.
type CallProviderName string

// PaymentProviderName selects the payment backend for the whole process.
type PaymentProviderName string

const (
	CallProviderRetell CallProviderName = "retell"
	CallProviderTwilio CallProviderName = "twilio"

	PaymentProviderStripe    PaymentProviderName = "stripe"
	PaymentProviderBillplz   PaymentProviderName = "billplz"
	PaymentProviderToyyibpay PaymentProviderName = "toyyibpay"
)

type Config struct {
	Env         string
	HTTPAddr    string
	DatabaseURL string
	RedisURL    string
	AppBaseURL  string

	// Queue lanes
	CallsConcurrency    int
	WhatsAppConcurrency int
	ExportsConcurrency  int
	RetryBaseDelay      time.Duration

	// Calling providers
	CallProvider      CallProviderName
	CallTimeout       time.Duration
	RetellAPIKey      string
	RetellAgentID     string
	RetellWebhookKey  string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	TwilioTwimlURL    string

	// Payment providers
	PaymentProvider      PaymentProviderName
	StripeSecretKey      string
	StripeWebhookSecret  string
	BillplzSecretKey     string
	BillplzCollectionID  string
	BillplzXSignatureKey string
	ToyyibpaySecretKey   string
	ToyyibpayCategory    string

	// WhatsApp gateway
	WhatsAppEndpoint string
	WhatsAppAPIKey   string

	// Export artifact storage (MinIO/S3)
	MinioEndpoint     string
	MinioAccessKey    string
	MinioSecretKey    string
	MinioUseSSL       bool
	MinioBucketExport string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AppBaseURL:  getEnv("APP_BASE_URL", "http://localhost:8080"),

		CallsConcurrency:    getIntEnv("QUEUE_CALLS_CONCURRENCY", 4),
		WhatsAppConcurrency: getIntEnv("QUEUE_WHATSAPP_CONCURRENCY", 4),
		ExportsConcurrency:  getIntEnv("QUEUE_EXPORTS_CONCURRENCY", 2),
		RetryBaseDelay:      mustDuration(getEnv("QUEUE_RETRY_BASE_DELAY", "2s")),

		CallProvider:      CallProviderName(strings.ToLower(getEnv("CALL_PROVIDER", "retell"))),
		CallTimeout:       mustDuration(getEnv("CALL_PROVIDER_TIMEOUT", "15s")),
		RetellAPIKey:      getEnv("RETELL_API_KEY", ""),
		RetellAgentID:     getEnv("RETELL_AGENT_ID", ""),
		RetellWebhookKey:  getEnv("RETELL_WEBHOOK_KEY", ""),
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioTwimlURL:    getEnv("TWILIO_TWIML_URL", ""),

		PaymentProvider:      PaymentProviderName(strings.ToLower(getEnv("PAYMENT_PROVIDER", "stripe"))),
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
		BillplzSecretKey:     getEnv("BILLPLZ_SECRET_KEY", ""),
		BillplzCollectionID:  getEnv("BILLPLZ_COLLECTION_ID", ""),
		BillplzXSignatureKey: getEnv("BILLPLZ_XSIGNATURE_KEY", ""),
		ToyyibpaySecretKey:   getEnv("TOYYIBPAY_SECRET_KEY", ""),
		ToyyibpayCategory:    getEnv("TOYYIBPAY_CATEGORY_CODE", ""),

		WhatsAppEndpoint: getEnv("WASAPBOT_ENDPOINT", ""),
		WhatsAppAPIKey:   getEnv("WASAPBOT_API_KEY", ""),

		MinioEndpoint:     getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:    getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:    getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:       strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketExport: getEnv("MINIO_BUCKET_EXPORTS", "exports"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.CallProvider {
	case CallProviderRetell, CallProviderTwilio:
	default:
		return nil, fmt.Errorf("CALL_PROVIDER must be one of retell, twilio (got %q)", cfg.CallProvider)
	}

	switch cfg.PaymentProvider {
	case PaymentProviderStripe, PaymentProviderBillplz, PaymentProviderToyyibpay:
	default:
		return nil, fmt.Errorf("PAYMENT_PROVIDER must be one of stripe, billplz, toyyibpay (got %q)", cfg.PaymentProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}

	var parsed int
	if _, err := fmt.Sscanf(raw, "%d", &parsed); err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
