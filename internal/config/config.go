package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"nestnarrator/internal/story/cache"
	"nestnarrator/internal/story/tts"
)

const (
	appName   = "nestnarrator"
	envPrefix = "NARRATOR"
)

type Config struct {
	TTS     TTSConfig     `mapstructure:"tts"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Display DisplayConfig `mapstructure:"display"`
	Library LibraryConfig `mapstructure:"library"`
	Log     LogConfig     `mapstructure:"log"`
}

type TTSConfig struct {
	Type       string        `mapstructure:"type"`
	Voice      string        `mapstructure:"voice"`
	Speed      float64       `mapstructure:"speed"`
	Volume     float64       `mapstructure:"volume"`
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	SampleRate int           `mapstructure:"sample_rate"`
}

type CacheConfig struct {
	Type             string      `mapstructure:"type"`
	Path             string      `mapstructure:"path"`
	CompressionLevel int         `mapstructure:"compression_level"`
	Redis            RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AudioConfig struct {
	// Output is "speaker" or "none".
	Output  string        `mapstructure:"output"`
	Buffer  time.Duration `mapstructure:"buffer"`
	Quality int           `mapstructure:"quality"`
}

type DisplayConfig struct {
	Refresh time.Duration `mapstructure:"refresh"`
}

type LibraryConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func SetDefaults() {
	viper.SetDefault("tts.type", "auto") // Auto-select best generator
	viper.SetDefault("tts.voice", tts.DefaultVoice)
	viper.SetDefault("tts.speed", 1.0)
	viper.SetDefault("tts.volume", 0.8)
	viper.SetDefault("tts.endpoint", "")
	viper.SetDefault("tts.api_key", "")
	viper.SetDefault("tts.timeout", 60*time.Second)
	viper.SetDefault("tts.retries", 3)
	viper.SetDefault("tts.retry_delay", time.Second)
	viper.SetDefault("tts.sample_rate", 24000)

	viper.SetDefault("cache.type", "disk")
	viper.SetDefault("cache.path", filepath.Join(dataDirectory(), "audio"))
	viper.SetDefault("cache.compression_level", 3)
	viper.SetDefault("cache.redis.addr", "localhost:6379")
	viper.SetDefault("cache.redis.password", "")
	viper.SetDefault("cache.redis.db", 0)
	viper.SetDefault("cache.redis.prefix", "narration:audio:")
	viper.SetDefault("cache.redis.ttl", 0)

	viper.SetDefault("audio.output", "speaker")
	viper.SetDefault("audio.buffer", 100*time.Millisecond)
	viper.SetDefault("audio.quality", 4)

	viper.SetDefault("display.refresh", 50*time.Millisecond)
	viper.SetDefault("library.path", filepath.Join(dataDirectory(), "library"))

	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "text")
}

// Init registers defaults and reads the config file. A missing file is not an error.
func Init(cfgFile string) error {
	SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(appName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME/." + appName)
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.TTS.Speed <= 0 {
		return fmt.Errorf("tts.speed must be positive, got %v", c.TTS.Speed)
	}
	if c.TTS.Volume < 0 {
		return fmt.Errorf("tts.volume must not be negative, got %v", c.TTS.Volume)
	}
	switch c.Audio.Output {
	case "speaker", "none":
	default:
		return fmt.Errorf("unsupported audio.output: %s", c.Audio.Output)
	}
	return nil
}

func (c TTSConfig) Generator() tts.Config {
	return tts.Config{
		Type:       c.Type,
		Voice:      c.Voice,
		Endpoint:   c.Endpoint,
		APIKey:     c.APIKey,
		Timeout:    c.Timeout,
		SampleRate: c.SampleRate,
		Retries:    c.Retries,
		RetryDelay: c.RetryDelay,
	}
}

func (c CacheConfig) Store() cache.StoreConfig {
	return cache.StoreConfig{
		Type:             c.Type,
		Path:             c.Path,
		CompressionLevel: c.CompressionLevel,
		Redis: cache.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
			TTL:      c.Redis.TTL,
		},
	}
}

// SetupLogging applies level and format to the standard logrus logger.
func SetupLogging(c LogConfig) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	switch c.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unsupported log format: %s", c.Format)
	}
	return nil
}

// dataDirectory returns the appropriate data directory
func dataDirectory() string {
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, appName)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "."+appName, "cache")
	}

	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, "cache")
	}

	return "cache"
}
