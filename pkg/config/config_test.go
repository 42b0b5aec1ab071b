package config

import (
	"os"
	"testing"
	"time"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "90s")
	defer os.Unsetenv("TEST_DURATION")

	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
	if got := getEnvDuration("TEST_DURATION_UNSET", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() default = %v, want 1m", got)
	}

	os.Setenv("TEST_DURATION_BAD", "not-a-duration")
	defer os.Unsetenv("TEST_DURATION_BAD")
	if got := getEnvDuration("TEST_DURATION_BAD", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() on parse failure = %v, want default", got)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Sweeps.RenewalLookahead != 7*24*time.Hour {
		t.Errorf("default renewal lookahead = %v, want 168h", cfg.Sweeps.RenewalLookahead)
	}
	if cfg.Sweeps.PreInvoiceWindow != 3*24*time.Hour {
		t.Errorf("default pre-invoice window = %v, want 72h", cfg.Sweeps.PreInvoiceWindow)
	}
	if cfg.Sweeps.FeeReminderCooldown != 24*time.Hour {
		t.Errorf("default fee reminder cooldown = %v, want 24h", cfg.Sweeps.FeeReminderCooldown)
	}
	if cfg.Billing.InvoiceDueDays != 7 {
		t.Errorf("default invoice due days = %d, want 7", cfg.Billing.InvoiceDueDays)
	}
}

func TestLoadConfig_WebhookSecrets(t *testing.T) {
	os.Setenv("BURSAR_WEBHOOK_SECRETS", "simulation=s3cret,razorpay=topsecret")
	defer os.Unsetenv("BURSAR_WEBHOOK_SECRETS")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Billing.WebhookSecrets["simulation"] != "s3cret" {
		t.Errorf("simulation secret = %q", cfg.Billing.WebhookSecrets["simulation"])
	}
	if cfg.Billing.WebhookSecrets["razorpay"] != "topsecret" {
		t.Errorf("razorpay secret = %q", cfg.Billing.WebhookSecrets["razorpay"])
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig() failed: %v", err)
		}
		return cfg
	}

	t.Run("same ports rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = cfg.Server.Port
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for identical ports")
		}
	})

	t.Run("pre-invoice window exceeding lookahead rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Sweeps.PreInvoiceWindow = 10 * 24 * time.Hour
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for pre-invoice window > lookahead")
		}
	})

	t.Run("missing postgres URL rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Database.URL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing postgres URL")
		}
	})

	t.Run("redis enabled without URL rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Redis.Enabled = true
		cfg.Redis.URL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for redis enabled without URL")
		}
	})
}
