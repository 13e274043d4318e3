package config

import "testing"

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("ENGINESIS_SITE_ID", "106")
	t.Setenv("ENGINESIS_DEVELOPER_KEY", "deadbeef")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.SiteID != 106 {
		t.Fatalf("SiteID = %d, want 106", cfg.SiteID)
	}
	if cfg.LanguageCode != "en" {
		t.Fatalf("LanguageCode = %q, want en", cfg.LanguageCode)
	}
	if cfg.StoragePath != "enginesis.db" {
		t.Fatalf("StoragePath = %q, want enginesis.db", cfg.StoragePath)
	}
}

func TestLoadClientRequiresDeveloperKey(t *testing.T) {
	t.Setenv("ENGINESIS_SITE_ID", "106")
	t.Setenv("ENGINESIS_DEVELOPER_KEY", "")

	_, err := LoadClient()
	if err == nil {
		t.Fatal("LoadClient() expected error, got nil")
	}
}

func TestLoadClientOverrides(t *testing.T) {
	t.Setenv("ENGINESIS_SITE_ID", "100")
	t.Setenv("ENGINESIS_DEVELOPER_KEY", "k")
	t.Setenv("ENGINESIS_GAME_ID", "7")
	t.Setenv("ENGINESIS_STAGE", "-q")
	t.Setenv("ENGINESIS_LANGUAGE_CODE", "es")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.GameID != 7 || cfg.ServerStage != "-q" || cfg.LanguageCode != "es" {
		t.Fatalf("unexpected client config: %+v", cfg)
	}
}

func TestLoadStubDefaults(t *testing.T) {
	cfg, err := LoadStub()
	if err != nil {
		t.Fatalf("LoadStub() error = %v", err)
	}
	if cfg.HTTPAddr != ":8181" {
		t.Fatalf("HTTPAddr = %q, want :8181", cfg.HTTPAddr)
	}
	if cfg.SiteID != 106 {
		t.Fatalf("SiteID = %d, want 106", cfg.SiteID)
	}
}
