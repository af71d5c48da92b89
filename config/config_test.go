package config

import (
	"os"
	"path/filepath"
	"testing"

	"live-clientv1/internal/model"
)

func TestLoadSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	body := `
symbol: BTC/USDT
timeframe: 1m
strategy: momentum
initial_deposit: 1000
fee_rate: 0.001
mode: paper
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadSessionFile(path)
	if err != nil {
		t.Fatalf("LoadSessionFile: %v", err)
	}
	if cfg.Symbol != "BTC/USDT" || cfg.Strategy != "momentum" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.InitialDeposit != 1000 {
		t.Errorf("deposit=%v, want 1000", cfg.InitialDeposit)
	}
	if cfg.Mode != model.ModePaper {
		t.Errorf("mode=%s, want paper", cfg.Mode)
	}
}

func TestLoadSessionFile_Missing(t *testing.T) {
	if _, err := LoadSessionFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_CAP", "250")
	if got := getEnvInt("TEST_CAP", 500); got != 250 {
		t.Errorf("got %d, want 250", got)
	}
	t.Setenv("TEST_CAP", "garbage")
	if got := getEnvInt("TEST_CAP", 500); got != 500 {
		t.Errorf("invalid value: got %d, want fallback 500", got)
	}
	t.Setenv("TEST_CAP", "-3")
	if got := getEnvInt("TEST_CAP", 500); got != 500 {
		t.Errorf("negative value: got %d, want fallback 500", got)
	}
}
