package config

import "github.com/caarlos0/env/v11"

type ClientConfig struct {
	SiteID       int    `env:"ENGINESIS_SITE_ID,required"`
	DeveloperKey string `env:"ENGINESIS_DEVELOPER_KEY,required,notEmpty"`
	GameID       int    `env:"ENGINESIS_GAME_ID" envDefault:"0"`
	GameGroupID  int    `env:"ENGINESIS_GAME_GROUP_ID" envDefault:"0"`
	LanguageCode string `env:"ENGINESIS_LANGUAGE_CODE" envDefault:"en"`
	ServerStage  string `env:"ENGINESIS_STAGE" envDefault:""`
	ServiceHost  string `env:"ENGINESIS_SERVICE_HOST"`
	ServiceURL   string `env:"ENGINESIS_SERVICE_URL"`
	AuthToken    string `env:"ENGINESIS_AUTH_TOKEN"`
	SiteKey      string `env:"ENGINESIS_SITE_KEY"`
	StoragePath  string `env:"ENGINESIS_STORAGE_PATH" envDefault:"enginesis.db"`
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	err := env.Parse(&cfg)
	return cfg, err
}
