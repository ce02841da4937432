package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "MWK", cfg.Payment.Currency)
	assert.Equal(t, 3, cfg.Payment.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Payment.RetryDelay)
	assert.Equal(t, 15*time.Second, cfg.Payment.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.Payment.VerifyTimeout)
	assert.Equal(t, "9", cfg.Payment.OperatorPrefixes["airtel"])

	price, err := cfg.Distribution.UnitPrice()
	require.NoError(t, err)
	assert.Equal(t, "1666.67", price.StringFixed(2))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAYMENT_RETRY_DELAY", "150ms")
	t.Setenv("PAYMENT_OPERATOR_PREFIXES", "Airtel:9, TNM:8,broken")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://nyasabox.com, https://admin.nyasabox.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 150*time.Millisecond, cfg.Payment.RetryDelay)
	assert.Equal(t, map[string]string{"airtel": "9", "tnm": "8"}, cfg.Payment.OperatorPrefixes)
	assert.Equal(t, []string{"https://nyasabox.com", "https://admin.nyasabox.com"}, cfg.Server.AllowedOrigins)
}

func TestValidateRejectsBadPrice(t *testing.T) {
	t.Setenv("DISTRIBUTION_PRICE_PER_TRACK", "ten thousand")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateProductionSecrets(t *testing.T) {
	cfg := &Config{
		Environment:  "production",
		JWT:          JWTConfig{SecretKey: "your-secret-key-change-in-production"},
		Distribution: DistributionConfig{PricePerTrack: "1666.67"},
		Payment:      PaymentConfig{RetryAttempts: 3},
	}
	assert.Error(t, cfg.Validate())

	cfg.JWT.SecretKey = "s3cret"
	cfg.Database.Password = "pw"
	cfg.Payment.GatewaySecretKey = "sk"
	cfg.Admin.Password = "An0ther!"
	assert.NoError(t, cfg.Validate())
}
