package config

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "complete",
			cfg: Config{
				AuthConfig:    AuthConfig{CronSecret: "secret"},
				BinanceConfig: BinanceConfig{APIKey: "k", SecretKey: "s"},
			},
		},
		{
			name: "missing cron secret",
			cfg: Config{
				BinanceConfig: BinanceConfig{APIKey: "k", SecretKey: "s"},
			},
			wantErr: true,
		},
		{
			name: "missing exchange keys without vault",
			cfg: Config{
				AuthConfig: AuthConfig{CronSecret: "secret"},
			},
			wantErr: true,
		},
		{
			name: "vault enabled allows missing exchange keys",
			cfg: Config{
				AuthConfig:  AuthConfig{CronSecret: "secret"},
				VaultConfig: VaultConfig{Enabled: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	cfg := &Config{}
	applyEnvOverrides(cfg)

	if cfg.TradingConfig.Symbol != "DOGEUSDT" {
		t.Errorf("Symbol = %q", cfg.TradingConfig.Symbol)
	}
	if len(cfg.TradingConfig.PricingSymbols) != 5 {
		t.Errorf("PricingSymbols = %v", cfg.TradingConfig.PricingSymbols)
	}
	if cfg.TradingConfig.Leverage != 5 || cfg.TradingConfig.MinNotional != 5.0 || cfg.TradingConfig.DefaultSizePct != 0.03 {
		t.Errorf("trading defaults wrong: %+v", cfg.TradingConfig)
	}
	if cfg.TradingConfig.InitialCapital != 29 {
		t.Errorf("InitialCapital = %v", cfg.TradingConfig.InitialCapital)
	}
	if cfg.ServerConfig.Port != 8000 {
		t.Errorf("Port = %d", cfg.ServerConfig.Port)
	}
	if cfg.AIConfig.Provider != "deepseek" || cfg.AIConfig.Model != "deepseek-chat" || cfg.AIConfig.MaxTokens != 1024 {
		t.Errorf("ai defaults wrong: %+v", cfg.AIConfig)
	}
	if cfg.SchedulerConfig.DecisionInterval != 3*time.Minute || cfg.SchedulerConfig.MetricsInterval != 20*time.Second {
		t.Errorf("scheduler defaults wrong: %+v", cfg.SchedulerConfig)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("TRADING_SYMBOL", "BTCUSDT")
	t.Setenv("PRICING_SYMBOLS", "BTCUSDT, ETHUSDT")
	t.Setenv("TRADING_LEVERAGE", "10")
	t.Setenv("SCHEDULER_DECISION_INTERVAL", "5m")
	t.Setenv("CRON_SECRET_KEY", "from-env")

	cfg := &Config{}
	applyEnvOverrides(cfg)

	if cfg.TradingConfig.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q", cfg.TradingConfig.Symbol)
	}
	if len(cfg.TradingConfig.PricingSymbols) != 2 || cfg.TradingConfig.PricingSymbols[1] != "ETHUSDT" {
		t.Errorf("PricingSymbols = %v", cfg.TradingConfig.PricingSymbols)
	}
	if cfg.TradingConfig.Leverage != 10 {
		t.Errorf("Leverage = %d", cfg.TradingConfig.Leverage)
	}
	if cfg.SchedulerConfig.DecisionInterval != 5*time.Minute {
		t.Errorf("DecisionInterval = %v", cfg.SchedulerConfig.DecisionInterval)
	}
	if cfg.AuthConfig.CronSecret != "from-env" {
		t.Errorf("CronSecret = %q", cfg.AuthConfig.CronSecret)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" a, b ,, c ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitAndTrim() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitAndTrim()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
