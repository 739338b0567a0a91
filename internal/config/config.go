package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config is the full environment surface the service consumes. Aggregator
// credentials and callback URLs are opaque values handed to the CinetPay
// client; nothing else reads them.
type Config struct {
	DBSource string
	Port     string
	Env      string

	CinetPayAPIKey    string
	CinetPaySiteID    string
	CinetPaySecretKey string
	CinetPayBaseURL   string
	NotifyURL         string
	ReturnURL         string
	CancelURL         string

	KafkaBroker string
}

func Load() (*Config, error) {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	secret := os.Getenv("CINETPAY_SECRET_KEY")
	if secret == "" {
		return nil, fmt.Errorf("CINETPAY_SECRET_KEY environment variable is required")
	}

	cfg := &Config{
		DBSource:          dbSource,
		Port:              getEnv("SERVER_PORT", "8080"),
		Env:               getEnv("ENVIRONMENT", "development"),
		CinetPayAPIKey:    os.Getenv("CINETPAY_API_KEY"),
		CinetPaySiteID:    os.Getenv("CINETPAY_SITE_ID"),
		CinetPaySecretKey: secret,
		CinetPayBaseURL:   getEnv("CINETPAY_BASE_URL", "https://api-checkout.cinetpay.com"),
		NotifyURL:         os.Getenv("NOTIFY_URL"),
		ReturnURL:         os.Getenv("RETURN_URL"),
		CancelURL:         os.Getenv("CANCEL_URL"),
		KafkaBroker:       os.Getenv("KAFKA_BROKER"),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
