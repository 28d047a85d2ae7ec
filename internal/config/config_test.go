package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
store:
  driver: sqlite
sqlite:
  path: /tmp/genpost-test.db
auth:
  superusers:
    - owner@example.com
stripe:
  currency: usd
  webhook_secret: whsec_yaml
checkout:
  rate_per_minute: 4
  intent_ttl: 2h
reconcile:
  report_bucket: reconcile-reports
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Store.Driver != "sqlite" {
		t.Fatalf("unexpected store driver: %s", cfg.Store.Driver)
	}
	if cfg.SQLite.Path != "/tmp/genpost-test.db" {
		t.Fatalf("unexpected sqlite path: %s", cfg.SQLite.Path)
	}
	if len(cfg.Auth.SuperuserEmails) != 1 || cfg.Auth.SuperuserEmails[0] != "owner@example.com" {
		t.Fatalf("unexpected superusers: %v", cfg.Auth.SuperuserEmails)
	}
	if cfg.Stripe.Currency != "usd" {
		t.Fatalf("unexpected currency: %s", cfg.Stripe.Currency)
	}
	if cfg.Stripe.WebhookSecret != "whsec_yaml" {
		t.Fatalf("unexpected webhook secret: %s", cfg.Stripe.WebhookSecret)
	}
	if cfg.Checkout.RatePerMinute != 4 {
		t.Fatalf("unexpected checkout rate: %d", cfg.Checkout.RatePerMinute)
	}
	if cfg.Checkout.IntentTTL != 2*time.Hour {
		t.Fatalf("unexpected intent ttl: %s", cfg.Checkout.IntentTTL)
	}
	if cfg.Reconcile.ReportBucket != "reconcile-reports" {
		t.Fatalf("unexpected report bucket: %s", cfg.Reconcile.ReportBucket)
	}

	if cfg.Checkout.RatePer10Sec != 3 {
		t.Fatalf("rate_per_10sec default should stay 3")
	}
	if cfg.Checkout.DedupTTL != 72*time.Hour {
		t.Fatalf("dedup_ttl default should stay 72h")
	}
	if cfg.Auth.IdentityMaxAge != 10*time.Minute {
		t.Fatalf("identity_max_age default should stay 10m")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.Store.Driver != "postgres" {
		t.Fatalf("unexpected default driver: %s", cfg.Store.Driver)
	}
	if cfg.Stripe.Currency != "jpy" {
		t.Fatalf("unexpected default currency: %s", cfg.Stripe.Currency)
	}
	if cfg.Stripe.TestPurchasesEnabled() {
		t.Fatalf("test purchases must be disabled without a test key")
	}
	if cfg.IsProduction() {
		t.Fatalf("default env should not be production")
	}
}

func TestLoadStripeEnvOverridesYAML(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("stripe:\n  secret_key: sk_live_yaml\n"), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_env")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Stripe.SecretKey != "sk_test_env" {
		t.Fatalf("expected env secret key, got %s", cfg.Stripe.SecretKey)
	}
	if cfg.Stripe.WebhookSecret != "whsec_env" {
		t.Fatalf("expected env webhook secret, got %s", cfg.Stripe.WebhookSecret)
	}
	if !cfg.Stripe.TestPurchasesEnabled() {
		t.Fatalf("sk_test_ key should enable test purchases")
	}
}

func TestLoadRejectsUnknownStoreDriver(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STORE_DRIVER", "mysql")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for unsupported store driver")
	}
}

func TestLoadRejectsMissingWebhookSecretInProduction(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("IDENTITY_SECRET", "identity")
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_x")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error when stripe.webhook_secret is empty in production")
	}
}

func TestLoadRejectsDefaultJWTSecretInProduction(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("IDENTITY_SECRET", "identity")
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_x")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for default jwt secret in production")
	}

	t.Setenv("JWT_SECRET", "rotated")
	if _, err := Load(""); err != nil {
		t.Fatalf("expected production config to load: %v", err)
	}
}

func TestLoadAppliesTypedEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HTTP_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("CHECKOUT_RATE_PER_10SEC", "7")
	t.Setenv("CHECKOUT_DEDUP_TTL", "1h30m")
	t.Setenv("S3_USE_SSL", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.Checkout.RatePer10Sec != 7 {
		t.Fatalf("unexpected burst limit: %d", cfg.Checkout.RatePer10Sec)
	}
	if cfg.Checkout.DedupTTL != 90*time.Minute {
		t.Fatalf("unexpected dedup ttl: %s", cfg.Checkout.DedupTTL)
	}
	if !cfg.S3.UseSSL {
		t.Fatalf("expected ssl to be enabled")
	}
}

func TestLoadRejectsMalformedEnvValues(t *testing.T) {
	for key, value := range map[string]string{
		"REDIS_DB":            "one",
		"JWT_ACCESS_TTL":      "soon",
		"CHECKOUT_INTENT_TTL": "-1h",
		"S3_USE_SSL":          "maybe",
	} {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)
			if _, err := Load(""); err == nil {
				t.Fatalf("expected %s=%q to be rejected", key, value)
			}
		})
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"HTTP_ALLOWED_ORIGINS",
		"LOG_LEVEL",
		"STORE_DRIVER",
		"POSTGRES_DSN",
		"POSTGRES_MAX_CONNS",
		"SQLITE_PATH",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_USE_SSL",
		"S3_REGION",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"REFRESH_TTL",
		"IDENTITY_SECRET",
		"IDENTITY_MAX_AGE",
		"SUPERUSER_EMAILS",
		"CHECKOUT_RATE_PER_MINUTE",
		"CHECKOUT_RATE_PER_10SEC",
		"CHECKOUT_INTENT_TTL",
		"CHECKOUT_DEDUP_TTL",
		"RECONCILE_REPORT_BUCKET",
	} {
		t.Setenv(key, "")
	}

	// envconfig treats a set-but-empty variable as a value, so these are unset.
	for _, key := range []string{
		"STRIPE_SECRET_KEY",
		"STRIPE_WEBHOOK_SECRET",
		"STRIPE_SUCCESS_URL",
		"STRIPE_CANCEL_URL",
		"STRIPE_CURRENCY",
		"STRIPE_ENABLE_TEST_PURCHASE",
	} {
		unsetEnv(t, key)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	prev, had := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, prev)
		}
	})
}
