package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string        `yaml:"env" env-default:"local"`
	StoragePath string        `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	HTTP        HTTPConfig    `yaml:"http"`
	Geocode     GeocodeConfig `yaml:"geocode"`
}

type HTTPConfig struct {
	Port int `yaml:"port" env-default:"8080"`
}

// GeocodeConfig bounds the external reverse-geocoding collaborator: every
// lookup is cut off at Timeout, and resolved locations are cached for
// CacheTTL at the precision implied by Zoom.
type GeocodeConfig struct {
	BaseURL  string        `yaml:"base_url" env-default:"https://nominatim.openstreetmap.org"`
	Zoom     int           `yaml:"zoom" env-default:"10"`
	Timeout  time.Duration `yaml:"timeout" env-default:"3s"`
	CacheTTL time.Duration `yaml:"cache_ttl" env-default:"15m"`
}

func Load(path string) *Config {
	var config Config
	err := cleanenv.ReadConfig(path, &config)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &config
}
