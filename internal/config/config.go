package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shouni/go-utils/envutil"
	"gopkg.in/yaml.v3"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
)

// デフォルト値の定義です。
const (
	DefaultServerName     = "nanobanana-mcp"
	DefaultServerVersion  = "1.0.0"
	DefaultModel          = domain.DefaultModel
	DefaultOutputDir      = "output"
	DefaultOutputFormat   = string(domain.FormatPNG)
	DefaultQuality        = string(domain.QualityHigh)
	DefaultCacheExpiry    = 24 * time.Hour
	DefaultCacheMaxSizeMB = 1024
	DefaultMaxConcurrent  = 3
	DefaultRequestTimeout = 120 * time.Second
	DefaultMaxRetries     = 3
	DefaultBackoffFactor  = 2.0
	DefaultSafetyLevel    = string(generator.SafetyModerate)
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultTempMaxAge     = 24 * time.Hour
	DefaultRemoteCacheTTL = 30 * time.Minute
	DefaultLogLevel       = "info"

	// ConfigPathEnv は設定ファイルのパスを指定する環境変数です。
	ConfigPathEnv = "NANOBANANA_CONFIG"
)

// Config はアプリケーション全体の設定です。
type Config struct {
	APIKey string `yaml:"-"`

	ServerName    string `yaml:"serverName"`
	ServerVersion string `yaml:"serverVersion"`
	Model         string `yaml:"model"`

	OutputDir string `yaml:"outputDir"`
	CacheDir  string `yaml:"cacheDir"`
	TempDir   string `yaml:"tempDir"`

	DefaultOutputFormat string `yaml:"defaultOutputFormat"`
	DefaultQuality      string `yaml:"defaultQuality"`
	AutoTranslate       bool   `yaml:"autoTranslate"`

	CacheEnabled   bool          `yaml:"cacheEnabled"`
	CacheExpiry    time.Duration `yaml:"cacheExpiry"`
	CacheMaxSizeMB int           `yaml:"cacheMaxSizeMB"`
	TempMaxAge     time.Duration `yaml:"tempMaxAge"`

	MaxConcurrent      int           `yaml:"maxConcurrent"`
	RequestTimeout     time.Duration `yaml:"requestTimeout"`
	MaxRetries         int           `yaml:"maxRetries"`
	RetryBackoffFactor float64       `yaml:"retryBackoffFactor"`
	SafetyLevel        string        `yaml:"safetyLevel"`
	RateInterval       time.Duration `yaml:"rateInterval"`

	HTTPTimeout    time.Duration `yaml:"httpTimeout"`
	RemoteCacheTTL time.Duration `yaml:"remoteCacheTTL"`

	LogLevel string `yaml:"logLevel"`
}

// Default は既定値だけで埋めた設定を返します。
func Default() *Config {
	return &Config{
		ServerName:          DefaultServerName,
		ServerVersion:       DefaultServerVersion,
		Model:               DefaultModel,
		OutputDir:           DefaultOutputDir,
		DefaultOutputFormat: DefaultOutputFormat,
		DefaultQuality:      DefaultQuality,
		AutoTranslate:       true,
		CacheEnabled:        true,
		CacheExpiry:         DefaultCacheExpiry,
		CacheMaxSizeMB:      DefaultCacheMaxSizeMB,
		TempMaxAge:          DefaultTempMaxAge,
		MaxConcurrent:       DefaultMaxConcurrent,
		RequestTimeout:      DefaultRequestTimeout,
		MaxRetries:          DefaultMaxRetries,
		RetryBackoffFactor:  DefaultBackoffFactor,
		SafetyLevel:         DefaultSafetyLevel,
		HTTPTimeout:         DefaultHTTPTimeout,
		RemoteCacheTTL:      DefaultRemoteCacheTTL,
		LogLevel:            DefaultLogLevel,
	}
}

// LoadConfig は既定値に YAML ファイル（path が空なら読まない）を重ね、最後に環境変数を適用します。
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = envutil.GetEnv(ConfigPathEnv, "")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗しました (%s): %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.APIKey = envutil.GetEnv("GEMINI_API_KEY", envutil.GetEnv("GOOGLE_API_KEY", ""))

	c.ServerName = envutil.GetEnv("NANOBANANA_SERVER_NAME", c.ServerName)
	c.ServerVersion = envutil.GetEnv("NANOBANANA_SERVER_VERSION", c.ServerVersion)
	c.Model = envutil.GetEnv("NANOBANANA_MODEL", c.Model)
	c.OutputDir = envutil.GetEnv("NANOBANANA_OUTPUT_DIR", c.OutputDir)
	c.CacheDir = envutil.GetEnv("NANOBANANA_CACHE_DIR", c.CacheDir)
	c.TempDir = envutil.GetEnv("NANOBANANA_TEMP_DIR", c.TempDir)
	c.DefaultOutputFormat = envutil.GetEnv("NANOBANANA_DEFAULT_OUTPUT_FORMAT", c.DefaultOutputFormat)
	c.DefaultQuality = envutil.GetEnv("NANOBANANA_DEFAULT_QUALITY", c.DefaultQuality)
	c.SafetyLevel = envutil.GetEnv("NANOBANANA_SAFETY_LEVEL", c.SafetyLevel)
	c.LogLevel = envutil.GetEnv("NANOBANANA_LOG_LEVEL", c.LogLevel)

	var err error
	if c.AutoTranslate, err = envBool("NANOBANANA_AUTO_TRANSLATE", c.AutoTranslate); err != nil {
		return err
	}
	if c.CacheEnabled, err = envBool("NANOBANANA_CACHE_ENABLED", c.CacheEnabled); err != nil {
		return err
	}
	if c.CacheExpiry, err = envHours("NANOBANANA_CACHE_EXPIRY_HOURS", c.CacheExpiry); err != nil {
		return err
	}
	if c.CacheMaxSizeMB, err = envInt("NANOBANANA_CACHE_MAX_SIZE_MB", c.CacheMaxSizeMB); err != nil {
		return err
	}
	if c.MaxConcurrent, err = envInt("NANOBANANA_MAX_CONCURRENT_REQUESTS", c.MaxConcurrent); err != nil {
		return err
	}
	if c.RequestTimeout, err = envSeconds("NANOBANANA_REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.MaxRetries, err = envInt("NANOBANANA_RETRY_ATTEMPTS", c.MaxRetries); err != nil {
		return err
	}
	if c.RetryBackoffFactor, err = envFloat("NANOBANANA_RETRY_BACKOFF_FACTOR", c.RetryBackoffFactor); err != nil {
		return err
	}
	if c.RateInterval, err = envSeconds("NANOBANANA_RATE_INTERVAL", c.RateInterval); err != nil {
		return err
	}
	if c.HTTPTimeout, err = envSeconds("NANOBANANA_HTTP_TIMEOUT", c.HTTPTimeout); err != nil {
		return err
	}
	return nil
}

// fillDerived は未指定のディレクトリを出力ディレクトリから導きます。
func (c *Config) fillDerived() {
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.OutputDir, ".cache")
	}
	if c.TempDir == "" {
		c.TempDir = filepath.Join(c.OutputDir, ".tmp")
	}
}

// Validate は矛盾した設定を拒否します。
func (c *Config) Validate() error {
	var problems []string
	if c.OutputDir == "" {
		problems = append(problems, "outputDir must not be empty")
	}
	if c.Model == "" {
		problems = append(problems, "model must not be empty")
	}
	switch domain.OutputFormat(c.DefaultOutputFormat) {
	case domain.FormatPNG, domain.FormatJPEG, domain.FormatWEBP:
	default:
		problems = append(problems, fmt.Sprintf("unknown default output format %q", c.DefaultOutputFormat))
	}
	switch domain.Quality(c.DefaultQuality) {
	case domain.QualityAuto, domain.QualityLow, domain.QualityMedium, domain.QualityHigh:
	default:
		problems = append(problems, fmt.Sprintf("unknown default quality %q", c.DefaultQuality))
	}
	if _, err := generator.ParseSafetyLevel(c.SafetyLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if c.MaxConcurrent < 1 {
		problems = append(problems, "maxConcurrent must be at least 1")
	}
	if c.MaxRetries < 0 {
		problems = append(problems, "maxRetries must not be negative")
	}
	if c.RetryBackoffFactor < 1 {
		problems = append(problems, "retryBackoffFactor must be at least 1")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "requestTimeout must be positive")
	}
	if c.CacheExpiry <= 0 {
		problems = append(problems, "cacheExpiry must be positive")
	}
	if c.CacheMaxSizeMB < 0 {
		problems = append(problems, "cacheMaxSizeMB must not be negative")
	}
	if c.RateInterval < 0 || c.HTTPTimeout < 0 || c.TempMaxAge < 0 || c.RemoteCacheTTL < 0 {
		problems = append(problems, "durations must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("設定が不正です: %s", strings.Join(problems, "; "))
	}
	return nil
}

// CacheMaxBytes はキャッシュ上限をバイトで返します。
func (c *Config) CacheMaxBytes() int64 {
	return int64(c.CacheMaxSizeMB) * 1024 * 1024
}

func envInt(key string, def int) (int, error) {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("環境変数 %s が整数ではありません: %q", key, raw)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("環境変数 %s が数値ではありません: %q", key, raw)
	}
	return f, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("環境変数 %s が真偽値ではありません: %q", key, raw)
	}
	return b, nil
}

// envSeconds は秒数を Duration として読みます。
func envSeconds(key string, def time.Duration) (time.Duration, error) {
	f, err := envFloat(key, def.Seconds())
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

// envHours は時間数を Duration として読みます。
func envHours(key string, def time.Duration) (time.Duration, error) {
	f, err := envFloat(key, def.Hours())
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Hour)), nil
}
