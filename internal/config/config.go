package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "evd.cfg.json"

// TrackConfig holds track assembly settings.
type TrackConfig struct {
	MaxTracks int     `json:"maxTracks" mapstructure:"maxTracks"`
	MinPoints int     `json:"minPoints" mapstructure:"minPoints"`
	UnitScale float64 `json:"unitScale" mapstructure:"unitScale"`
}

// WebsocketConfig holds the remote viewer connection.
type WebsocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// UploadConfig holds the scene server that exported scenes are sent to.
type UploadConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	APIKey string `json:"apiKey" mapstructure:"apiKey"`
}

// RenderConfig selects and configures the renderers.
type RenderConfig struct {
	OutputDir string          `json:"outputDir" mapstructure:"outputDir"`
	Compress  bool            `json:"compress" mapstructure:"compress"`
	Plot      bool            `json:"plot" mapstructure:"plot"`
	Influx    bool            `json:"influx" mapstructure:"influx"`
	Websocket WebsocketConfig `json:"websocket" mapstructure:"websocket"`
	Upload    UploadConfig    `json:"upload" mapstructure:"upload"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
	Traces       bool          `json:"traces" mapstructure:"traces"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./evdlogs")

	viper.SetDefault("track.maxTracks", 0)
	viper.SetDefault("track.minPoints", 2)
	viper.SetDefault("track.unitScale", 1.0)

	viper.SetDefault("render.outputDir", "./scenes")
	viper.SetDefault("render.compress", false)
	viper.SetDefault("render.plot", true)
	viper.SetDefault("render.influx", false)
	viper.SetDefault("render.websocket.url", "")
	viper.SetDefault("render.websocket.secret", "")
	viper.SetDefault("render.upload.url", "")
	viper.SetDefault("render.upload.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "evd")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "evd")
	viper.SetDefault("influx.retentionDays", 30)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "evd")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.traces", false)
}

// Load sets defaults and reads FileName from configDir. A missing file
// is not an error; a file that cannot be parsed is.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetTrackConfig returns the track assembly settings.
func GetTrackConfig() TrackConfig {
	return TrackConfig{
		MaxTracks: viper.GetInt("track.maxTracks"),
		MinPoints: viper.GetInt("track.minPoints"),
		UnitScale: viper.GetFloat64("track.unitScale"),
	}
}

// GetRenderConfig returns the renderer settings.
func GetRenderConfig() RenderConfig {
	return RenderConfig{
		OutputDir: viper.GetString("render.outputDir"),
		Compress:  viper.GetBool("render.compress"),
		Plot:      viper.GetBool("render.plot"),
		Influx:    viper.GetBool("render.influx"),
		Websocket: WebsocketConfig{
			URL:    viper.GetString("render.websocket.url"),
			Secret: viper.GetString("render.websocket.secret"),
		},
		Upload: UploadConfig{
			URL:    viper.GetString("render.upload.url"),
			APIKey: viper.GetString("render.upload.apiKey"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
		Traces:       viper.GetBool("otel.traces"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
