package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vbonduro/mapnote/internal/heatmap"
	"github.com/vbonduro/mapnote/internal/weather"
)

// ConfigFileEnv names the optional YAML file loaded beneath the environment.
const ConfigFileEnv = "MAPNOTE_CONFIG"

const (
	ElevationOpenElevation = "openelevation"
	ElevationGoogle        = "google"
	ElevationNone          = "none"
)

type Config struct {
	ListenAddr   string `yaml:"listen_addr"`
	DBPath       string `yaml:"db_path"`
	SnapshotPath string `yaml:"snapshot_path"`
	LogLevel     string `yaml:"log_level"`
	LogFile      string `yaml:"log_file"`

	ElevationBackend  string `yaml:"elevation_backend"`
	OpenElevationHost string `yaml:"open_elevation_host"`
	GoogleMapsAPIKey  string `yaml:"google_maps_api_key"`

	LocationIQKey string `yaml:"locationiq_key"`
	LocationIQURL string `yaml:"locationiq_url"`

	NominatimServer string `yaml:"nominatim_server"`

	WeatherAPIKey  string           `yaml:"weather_api_key"`
	WeatherTileURL string           `yaml:"weather_tile_url"`
	Weather        weather.Settings `yaml:"weather"`

	Heatmap heatmap.Settings `yaml:"heatmap"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:        ":8080",
		DBPath:            "/data/mapnote.db",
		SnapshotPath:      "/data/snapshots",
		LogLevel:          "info",
		ElevationBackend:  ElevationOpenElevation,
		OpenElevationHost: "https://api.open-elevation.com",
		LocationIQURL:     "https://us1.locationiq.com",
		NominatimServer:   "https://nominatim.openstreetmap.org",
		WeatherTileURL:    weather.DefaultTileURL,
		Weather:           weather.DefaultSettings(),
		Heatmap:           heatmap.DefaultSettings(),
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// MAPNOTE_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.SnapshotPath = getEnv("SNAPSHOT_PATH", c.SnapshotPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)

	c.ElevationBackend = getEnv("ELEVATION_BACKEND", c.ElevationBackend)
	c.OpenElevationHost = getEnv("OPEN_ELEVATION_HOST", c.OpenElevationHost)
	c.GoogleMapsAPIKey = getEnv("GOOGLE_MAPS_API_KEY", c.GoogleMapsAPIKey)

	c.LocationIQKey = getEnv("LOCATIONIQ_KEY", c.LocationIQKey)
	c.LocationIQURL = getEnv("LOCATIONIQ_URL", c.LocationIQURL)

	c.NominatimServer = getEnv("NOMINATIM_SERVER", c.NominatimServer)

	c.WeatherAPIKey = getEnv("OPENWEATHER_API_KEY", c.WeatherAPIKey)
	c.WeatherTileURL = getEnv("WEATHER_TILE_URL", c.WeatherTileURL)
	c.Weather.Kind = weather.Kind(getEnv("WEATHER_KIND", string(c.Weather.Kind)))

	var err error
	if c.Weather.Opacity, err = getEnvFloat("WEATHER_OPACITY", c.Weather.Opacity); err != nil {
		return err
	}
	if c.Weather.UpdateInterval, err = getEnvDuration("WEATHER_UPDATE_INTERVAL", c.Weather.UpdateInterval); err != nil {
		return err
	}
	if c.Heatmap.Intensity, err = getEnvFloat("HEATMAP_INTENSITY", c.Heatmap.Intensity); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.ElevationBackend {
	case ElevationOpenElevation, ElevationNone:
	case ElevationGoogle:
		if c.GoogleMapsAPIKey == "" {
			return fmt.Errorf("GOOGLE_MAPS_API_KEY is required when ELEVATION_BACKEND=%s", ElevationGoogle)
		}
	default:
		return fmt.Errorf("unknown elevation backend %q", c.ElevationBackend)
	}

	if err := c.Weather.Validate(); err != nil {
		return fmt.Errorf("weather settings: %w", err)
	}
	if err := c.Heatmap.Validate(); err != nil {
		return fmt.Errorf("heatmap settings: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
