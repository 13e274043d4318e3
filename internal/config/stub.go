package config

import "github.com/caarlos0/env/v11"

type StubConfig struct {
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":8181"`
	SiteID       int    `env:"STUB_SITE_ID" envDefault:"106"`
	DeveloperKey string `env:"STUB_DEVELOPER_KEY" envDefault:"deadbeef"`
	SiteKey      string `env:"STUB_SITE_KEY" envDefault:"stub-site-key"`

	// FailEvery > 0 makes every Nth request fail at the transport level,
	// which exercises the client's offline queue during development.
	FailEvery int `env:"STUB_FAIL_EVERY" envDefault:"0"`
}

func LoadStub() (StubConfig, error) {
	var cfg StubConfig
	err := env.Parse(&cfg)
	return cfg, err
}
