// Package config builds the immutable run configuration from defaults, an
// optional YAML file, the environment and the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bdougie/framevocab/internal/models"
)

// EnvPrefix prefixes every environment variable, e.g. FRAMEVOCAB_FRAME_GAP.
const EnvPrefix = "FRAMEVOCAB_"

const (
	EngineTesseract = "tesseract"
	EngineOllama    = "ollama"
)

// Config is built once per run and passed by value.
type Config struct {
	Videos        []string      `yaml:"videos" env:"VIDEOS"`
	OutputDir     string        `yaml:"output_dir" env:"OUTPUT_DIR"`
	FrameGap      float64       `yaml:"frame_gap" env:"FRAME_GAP"` // seconds
	Languages     []string      `yaml:"languages" env:"LANGUAGES"`
	SaveFrames    bool          `yaml:"save_frames" env:"SAVE_FRAMES"`
	SaveFrameText bool          `yaml:"save_frame_text" env:"SAVE_FRAME_TEXT"`
	Debug         bool          `yaml:"debug" env:"DEBUG"`
	Workers       int           `yaml:"workers" env:"WORKERS"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"` // whole run, 0 = none
	LogFile       string        `yaml:"log_file" env:"LOG_FILE"`
	MetricsFile   string        `yaml:"metrics_file" env:"METRICS_FILE"`
	OTLPEndpoint  string        `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	Engine        string        `yaml:"engine" env:"ENGINE"`

	Tesseract TesseractConfig `yaml:"tesseract" envPrefix:"TESSERACT_"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg" envPrefix:"FFMPEG_"`
	Ollama    OllamaConfig    `yaml:"ollama" envPrefix:"OLLAMA_"`
	Postgres  PostgresConfig  `yaml:"postgres" envPrefix:"POSTGRES_"`
	S3        S3Config        `yaml:"s3" envPrefix:"S3_"`
	AMQP      AMQPConfig      `yaml:"amqp" envPrefix:"AMQP_"`
}

type TesseractConfig struct {
	Path string `yaml:"path" env:"PATH"`
	Args string `yaml:"args" env:"ARGS"` // extra engine arguments, e.g. "--psm 6"
}

type FFmpegConfig struct {
	Path      string `yaml:"path" env:"PATH"`
	ProbePath string `yaml:"probe_path" env:"PROBE_PATH"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	Port    int    `yaml:"port" env:"PORT"`
	Model   string `yaml:"model" env:"MODEL"`
}

// PostgresConfig enables the Postgres sink when URL is set.
type PostgresConfig struct {
	URL string `yaml:"url" env:"URL"`
}

// S3Config enables the object storage sink when Endpoint is set.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	Prefix    string `yaml:"prefix" env:"PREFIX"`
}

// AMQPConfig enables outcome events when URL is set.
type AMQPConfig struct {
	URL   string `yaml:"url" env:"URL"`
	Queue string `yaml:"queue" env:"QUEUE"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		OutputDir: ".",
		FrameGap:  5.0,
		Languages: []string{"eng"},
		Workers:   1,
		LogFile:   "video_processing.log",
		Engine:    EngineTesseract,
		Ollama: OllamaConfig{
			BaseURL: "http://localhost",
			Port:    11434,
			Model:   "llama3.2-vision:11b",
		},
		S3: S3Config{
			Bucket: "framevocab",
		},
		AMQP: AMQPConfig{
			Queue: "framevocab.outcomes",
		},
	}
}

// Load builds the configuration from args (without the program name),
// reading ./.env if present.
func Load(args []string) (Config, error) {
	return LoadWith(args, ".env")
}

// LoadWith is Load with an explicit list of dotenv files. Missing files are
// ignored; variables already set in the environment win.
func LoadWith(args []string, envFiles ...string) (Config, error) {
	cli, err := parseArgs(args)
	if err != nil {
		return Config{}, err
	}

	cfg := Defaults()
	if cli.configFile != "" {
		if err := loadFile(cli.configFile, &cfg); err != nil {
			return Config{}, err
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: load %s: %v", models.ErrInvalidConfiguration, f, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("%w: environment: %v", models.ErrInvalidConfiguration, err)
	}

	cli.apply(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read config file: %v", models.ErrInvalidConfiguration, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: failed to parse config: %v", models.ErrInvalidConfiguration, err)
	}
	return nil
}

// Validate checks everything that can be checked before a video is touched.
func Validate(cfg Config) error {
	if len(cfg.Videos) == 0 {
		return fmt.Errorf("%w: no input videos", models.ErrInvalidConfiguration)
	}
	if cfg.FrameGap <= 0 || cfg.Gap() <= 0 {
		return fmt.Errorf("%w: frame gap must be > 0, got %g", models.ErrInvalidConfiguration, cfg.FrameGap)
	}
	if _, err := models.ParseLanguages(cfg.Languages); err != nil {
		return err
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", models.ErrInvalidConfiguration, cfg.Workers)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", models.ErrInvalidConfiguration)
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("%w: output directory is empty", models.ErrInvalidConfiguration)
	}
	switch cfg.Engine {
	case EngineTesseract, EngineOllama:
	default:
		return fmt.Errorf("%w: unknown engine %q (want %s or %s)", models.ErrInvalidConfiguration, cfg.Engine, EngineTesseract, EngineOllama)
	}
	return nil
}

// Gap returns the frame gap as a duration.
func (c Config) Gap() time.Duration {
	return time.Duration(c.FrameGap * float64(time.Second))
}

// LanguageSet returns the combined language set. The configuration must have
// been validated.
func (c Config) LanguageSet() models.LanguageSet {
	langs, _ := models.ParseLanguages(c.Languages)
	return langs
}

// Outputs returns the artifact options of every video.
func (c Config) Outputs() models.OutputOptions {
	return models.OutputOptions{
		Dir:           c.OutputDir,
		SaveFrames:    c.SaveFrames,
		SaveFrameText: c.SaveFrameText,
		Debug:         c.Debug,
	}
}

// LogPath returns the run log location; relative names live in the output
// directory.
func (c Config) LogPath() string {
	if filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.OutputDir, c.LogFile)
}
