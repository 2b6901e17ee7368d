package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/lecturegen/internal/platform/envutil"
	"github.com/yungbote/lecturegen/internal/platform/gcp"
)

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ContentConfig struct {
	// Provider is gemini, openai, offline, or empty to pick by available key.
	Provider string        `yaml:"provider"`
	Models   []string      `yaml:"models"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type SpeechConfig struct {
	// Provider is gcp or openai.
	Provider     string  `yaml:"provider"`
	LanguageCode string  `yaml:"language_code"`
	VoiceName    string  `yaml:"voice_name"`
	SpeakingRate float64 `yaml:"speaking_rate"`
}

type MediaConfig struct {
	FFmpegPath  string        `yaml:"ffmpeg_path"`
	FFprobePath string        `yaml:"ffprobe_path"`
	OutputDir   string        `yaml:"output_dir"`
	Timeout     time.Duration `yaml:"timeout"`
}

type SlidesConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	TitleFont string `yaml:"title_font"`
	BodyFont  string `yaml:"body_font"`
}

type StorageConfig struct {
	Bucket        string `yaml:"bucket"`
	CDNDomain     string `yaml:"cdn_domain"`
	PublicBaseURL string `yaml:"public_base_url"`
	KeyPrefix     string `yaml:"key_prefix"`
	Mode          string `yaml:"mode"`
	EmulatorHost  string `yaml:"emulator_host"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Name       string `yaml:"name"`
	SQLitePath string `yaml:"sqlite_path"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	Channel   string `yaml:"channel"`
	KeyPrefix string `yaml:"key_prefix"`
}

type RunsConfig struct {
	Dir               string        `yaml:"dir"`
	Concurrency       int           `yaml:"concurrency"`
	Timeout           time.Duration `yaml:"timeout"`
	KeepIntermediates bool          `yaml:"keep_intermediates"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Secrets come from the environment only.
type Secrets struct {
	GeminiAPIKey  string
	OpenAIAPIKey  string
	DatabaseURL   string
	DBPassword    string
	RedisPassword string
	OtelHeaders   string
	Google        gcp.Credentials
}

type Config struct {
	Env         string         `yaml:"env"`
	ServiceName string         `yaml:"service_name"`
	Version     string         `yaml:"version"`
	HTTP        HTTPConfig     `yaml:"http"`
	Content     ContentConfig  `yaml:"content"`
	Speech      SpeechConfig   `yaml:"speech"`
	Media       MediaConfig    `yaml:"media"`
	Slides      SlidesConfig   `yaml:"slides"`
	Storage     StorageConfig  `yaml:"storage"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	Runs        RunsConfig     `yaml:"runs"`
	Otel        OtelConfig     `yaml:"otel"`

	Secrets Secrets `yaml:"-"`
}

func defaultConfig() Config {
	return Config{
		Env:         "development",
		ServiceName: "lecturegen",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Content: ContentConfig{CacheTTL: 24 * time.Hour},
		Speech: SpeechConfig{
			Provider:     "gcp",
			LanguageCode: "en-US",
			SpeakingRate: 1.0,
		},
		Media: MediaConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			OutputDir:   "output",
			Timeout:     10 * time.Minute,
		},
		Slides: SlidesConfig{Width: 1280, Height: 720},
		Storage: StorageConfig{
			KeyPrefix: "lectures",
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			Name:       "lecturegen",
			SQLitePath: "lecturegen.db",
		},
		Redis: RedisConfig{Channel: "lecturegen:runs", KeyPrefix: "lecturegen:plan:"},
		Runs: RunsConfig{
			Dir:         filepath.Join("output", "runs"),
			Concurrency: 1,
			Timeout:     30 * time.Minute,
		},
		Otel: OtelConfig{SampleRatio: 1},
	}
}

// LoadConfig reads LECTUREGEN_CONFIG_PATH, or ./config/config.yaml when it
// exists, then applies environment overrides.
func LoadConfig() (Config, error) {
	path := strings.TrimSpace(os.Getenv("LECTUREGEN_CONFIG_PATH"))
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	return Load(path)
}

func Load(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.Version = envutil.String("SERVICE_VERSION", cfg.Version)

	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	cfg.HTTP.CORSOrigins = envutil.List("CORS_ORIGINS", cfg.HTTP.CORSOrigins)
	cfg.HTTP.ShutdownTimeout = envutil.Duration("SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)

	cfg.Content.Provider = strings.ToLower(envutil.String("CONTENT_PROVIDER", cfg.Content.Provider))
	cfg.Content.Models = envutil.List("CONTENT_MODELS", cfg.Content.Models)
	cfg.Content.CacheTTL = envutil.Duration("PLAN_CACHE_TTL", cfg.Content.CacheTTL)

	cfg.Speech.Provider = strings.ToLower(envutil.String("SPEECH_PROVIDER", cfg.Speech.Provider))
	cfg.Speech.LanguageCode = envutil.String("TTS_LANGUAGE_CODE", cfg.Speech.LanguageCode)
	cfg.Speech.VoiceName = envutil.String("TTS_VOICE_NAME", cfg.Speech.VoiceName)
	cfg.Speech.SpeakingRate = envutil.Float("TTS_SPEAKING_RATE", cfg.Speech.SpeakingRate)

	cfg.Media.FFmpegPath = envutil.String("FFMPEG_PATH", cfg.Media.FFmpegPath)
	cfg.Media.FFprobePath = envutil.String("FFPROBE_PATH", cfg.Media.FFprobePath)
	cfg.Media.OutputDir = envutil.String("OUTPUT_DIR", cfg.Media.OutputDir)
	cfg.Media.Timeout = envutil.Duration("MEDIA_TIMEOUT", cfg.Media.Timeout)

	cfg.Slides.TitleFont = envutil.String("SLIDE_TITLE_FONT", cfg.Slides.TitleFont)
	cfg.Slides.BodyFont = envutil.String("SLIDE_BODY_FONT", cfg.Slides.BodyFont)

	cfg.Storage.Bucket = envutil.String("VIDEO_GCS_BUCKET_NAME", cfg.Storage.Bucket)
	cfg.Storage.CDNDomain = envutil.String("VIDEO_CDN_DOMAIN", cfg.Storage.CDNDomain)
	cfg.Storage.PublicBaseURL = envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", cfg.Storage.PublicBaseURL)
	cfg.Storage.Mode = envutil.String("OBJECT_STORAGE_MODE", cfg.Storage.Mode)
	cfg.Storage.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.Storage.EmulatorHost)

	cfg.Database.Driver = strings.ToLower(envutil.String("DB_DRIVER", cfg.Database.Driver))
	cfg.Database.Host = envutil.String("POSTGRES_HOST", cfg.Database.Host)
	cfg.Database.Port = envutil.String("POSTGRES_PORT", cfg.Database.Port)
	cfg.Database.User = envutil.String("POSTGRES_USER", cfg.Database.User)
	cfg.Database.Name = envutil.String("POSTGRES_NAME", cfg.Database.Name)
	cfg.Database.SQLitePath = envutil.String("SQLITE_PATH", cfg.Database.SQLitePath)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.Runs.Dir = envutil.String("RUNS_DIR", cfg.Runs.Dir)
	cfg.Runs.Concurrency = envutil.Int("RUN_CONCURRENCY", cfg.Runs.Concurrency)
	cfg.Runs.Timeout = envutil.Duration("RUN_TIMEOUT", cfg.Runs.Timeout)
	cfg.Runs.KeepIntermediates = envutil.Bool("KEEP_INTERMEDIATES", cfg.Runs.KeepIntermediates)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", cfg.Otel.SampleRatio)

	cfg.Secrets = Secrets{
		GeminiAPIKey:  envutil.String("GEMINI_API_KEY", ""),
		OpenAIAPIKey:  envutil.String("OPENAI_API_KEY", ""),
		DatabaseURL:   envutil.String("DATABASE_URL", ""),
		DBPassword:    envutil.String("POSTGRES_PASSWORD", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		OtelHeaders:   envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
		Google:        gcp.CredentialsFromEnv(),
	}
}

func (c Config) validate() error {
	switch c.Content.Provider {
	case "", "gemini", "openai", "offline":
	default:
		return fmt.Errorf("unknown content provider %q", c.Content.Provider)
	}
	switch c.Speech.Provider {
	case "gcp", "openai":
	default:
		return fmt.Errorf("unknown speech provider %q", c.Speech.Provider)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Runs.Concurrency <= 0 {
		return fmt.Errorf("runs.concurrency must be positive")
	}
	return nil
}

// ContentProvider resolves an empty provider from the keys present.
func (c Config) ContentProvider() string {
	if c.Content.Provider != "" {
		return c.Content.Provider
	}
	switch {
	case c.Secrets.GeminiAPIKey != "":
		return "gemini"
	case c.Secrets.OpenAIAPIKey != "":
		return "openai"
	default:
		return "offline"
	}
}
