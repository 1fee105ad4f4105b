package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ReaderConfig struct {
	Base      string `yaml:"base"`
	UserAgent string `yaml:"user_agent"`
}

// OpenAIConfig holds the credentials shared by the OpenAI-compatible chat and
// speech backends.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	APIBase string `yaml:"api_base"`
}

type ScriptConfig struct {
	Provider string `yaml:"provider"` // openai, claude, nova, gemini
	Model    string `yaml:"model"`    // empty picks the provider default
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

type TTSConfig struct {
	Provider          string  `yaml:"provider"` // openai, elevenlabs, google, polly, vertex
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	FemaleVoice       string  `yaml:"female_voice"`
	MaleVoice         string  `yaml:"male_voice"`
	Speed             float64 `yaml:"speed"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	Concurrency       int     `yaml:"concurrency"`
}

type HostsConfig struct {
	Female string `yaml:"female"`
	Male   string `yaml:"male"`
}

type OutputConfig struct {
	Dir         string `yaml:"dir"`
	ScratchDir  string `yaml:"scratch_dir"`
	AssetsDir   string `yaml:"assets_dir"`
	FFmpegPath  string `yaml:"ffmpeg"`
	FFprobePath string `yaml:"ffprobe"`
}

type URLConfig struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

type AWSConfig struct {
	Region       string `yaml:"region"`
	SecretPrefix string `yaml:"secret_prefix"`
}

// GCPConfig locates the Vertex AI endpoint. Credentials come from
// Application Default Credentials.
type GCPConfig struct {
	Project string `yaml:"project"`
	Region  string `yaml:"region"`
}

type PublishConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Bucket     string `yaml:"bucket"`
	CDNBaseURL string `yaml:"cdn_base_url"`
	Table      string `yaml:"table"`
}

type Config struct {
	Reader          ReaderConfig    `yaml:"reader"`
	OpenAI          OpenAIConfig    `yaml:"openai"`
	AnthropicAPIKey string          `yaml:"anthropic_api_key"`
	ElevenLabsKey   string          `yaml:"elevenlabs_api_key"`
	GeminiAPIKey    string          `yaml:"gemini_api_key"`
	Script          ScriptConfig    `yaml:"script"`
	TTS             TTSConfig       `yaml:"tts"`
	Hosts           HostsConfig     `yaml:"hosts"`
	Output          OutputConfig    `yaml:"output"`
	URLs            URLConfig       `yaml:"urls"`
	MaxChars        int             `yaml:"max_chars"`
	Retries         int             `yaml:"retries"`
	TimeoutSeconds  int             `yaml:"timeout_seconds"`
	Telemetry       TelemetryConfig `yaml:"telemetry"`
	AWS             AWSConfig       `yaml:"aws"`
	GCP             GCPConfig       `yaml:"gcp"`
	Publish         PublishConfig   `yaml:"publish"`
}

var (
	scriptProviders = []string{"openai", "claude", "nova", "gemini"}
	ttsProviders    = []string{"openai", "elevenlabs", "google", "polly", "vertex"}
	logLevels       = []string{"debug", "info", "warn", "error"}
)

func Default() Config {
	return Config{
		Reader: ReaderConfig{
			Base: "https://r.jina.ai",
		},
		OpenAI: OpenAIConfig{
			APIBase: "https://api.openai.com/v1",
		},
		Script: ScriptConfig{
			Provider: "openai",
		},
		TTS: TTSConfig{
			Provider:    "openai",
			Concurrency: 1,
		},
		Hosts: HostsConfig{
			Female: "Alice",
			Male:   "Bob",
		},
		Output: OutputConfig{
			Dir: os.TempDir(),
		},
		URLs: URLConfig{
			Deny: []string{
				"https://support.weixin.qq.com",
				"https://channels-aladin.wxqcloud.qq.com",
			},
		},
		MaxChars:       50000,
		Retries:        3,
		TimeoutSeconds: 60,
		Telemetry: TelemetryConfig{
			LogLevel: "info",
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		GCP: GCPConfig{
			Region: "us-central1",
		},
		Publish: PublishConfig{
			CDNBaseURL: "https://podcasts.apresai.dev",
			Table:      "readcast-episodes",
		},
	}
}

// Load reads path (YAML, or JSON which YAML accepts) over the defaults,
// applies environment overrides and validates the result. An empty path
// skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.OpenAI.APIBase, "OPENAI_API_BASE")
	overrideString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	overrideString(&cfg.ElevenLabsKey, "ELEVENLABS_API_KEY")
	overrideString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	overrideString(&cfg.GCP.Project, "GCP_PROJECT")
	overrideString(&cfg.GCP.Region, "GCP_REGION")
	overrideString(&cfg.Reader.Base, "READCAST_READER_BASE")
	overrideString(&cfg.Reader.UserAgent, "READCAST_READER_USER_AGENT")
	overrideString(&cfg.Script.Provider, "READCAST_SCRIPT_PROVIDER")
	overrideString(&cfg.Script.Model, "READCAST_SCRIPT_MODEL")
	overrideString(&cfg.Script.APIKey, "READCAST_SCRIPT_API_KEY")
	overrideString(&cfg.Script.BaseURL, "READCAST_SCRIPT_BASE_URL")
	overrideString(&cfg.TTS.Provider, "READCAST_TTS_PROVIDER")
	overrideString(&cfg.TTS.Model, "READCAST_TTS_MODEL")
	overrideString(&cfg.TTS.APIKey, "READCAST_TTS_API_KEY")
	overrideString(&cfg.TTS.BaseURL, "READCAST_TTS_BASE_URL")
	overrideString(&cfg.TTS.FemaleVoice, "READCAST_TTS_FEMALE_VOICE")
	overrideString(&cfg.TTS.MaleVoice, "READCAST_TTS_MALE_VOICE")
	overrideFloat(&cfg.TTS.Speed, "READCAST_TTS_SPEED")
	overrideInt(&cfg.TTS.RequestsPerMinute, "READCAST_TTS_REQUESTS_PER_MINUTE")
	overrideInt(&cfg.TTS.Concurrency, "READCAST_TTS_CONCURRENCY")
	overrideString(&cfg.Hosts.Female, "READCAST_HOST_FEMALE")
	overrideString(&cfg.Hosts.Male, "READCAST_HOST_MALE")
	overrideString(&cfg.Output.Dir, "READCAST_OUTPUT_DIR")
	overrideString(&cfg.Output.ScratchDir, "READCAST_SCRATCH_DIR")
	overrideString(&cfg.Output.AssetsDir, "READCAST_ASSETS_DIR")
	overrideString(&cfg.Output.FFmpegPath, "READCAST_FFMPEG")
	overrideString(&cfg.Output.FFprobePath, "READCAST_FFPROBE")
	overrideStringSlice(&cfg.URLs.Allow, "READCAST_URL_ALLOW")
	overrideStringSlice(&cfg.URLs.Deny, "READCAST_URL_DENY")
	overrideInt(&cfg.MaxChars, "READCAST_MAX_CHARS")
	overrideInt(&cfg.Retries, "READCAST_RETRIES")
	overrideInt(&cfg.TimeoutSeconds, "READCAST_TIMEOUT_SECONDS")
	overrideString(&cfg.Telemetry.LogLevel, "READCAST_LOG_LEVEL")
	overrideBool(&cfg.Telemetry.TracingEnabled, "READCAST_TRACING_ENABLED")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	overrideString(&cfg.AWS.Region, "AWS_REGION")
	overrideString(&cfg.AWS.SecretPrefix, "READCAST_SECRET_PREFIX")
	overrideBool(&cfg.Publish.Enabled, "READCAST_PUBLISH_ENABLED")
	overrideString(&cfg.Publish.Bucket, "READCAST_PUBLISH_BUCKET")
	overrideString(&cfg.Publish.CDNBaseURL, "READCAST_PUBLISH_CDN_BASE_URL")
	overrideString(&cfg.Publish.Table, "READCAST_PUBLISH_TABLE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func (c Config) Validate() error {
	if !slices.Contains(scriptProviders, c.Script.Provider) {
		return fmt.Errorf("script.provider must be one of %v, got %q", scriptProviders, c.Script.Provider)
	}
	if !slices.Contains(ttsProviders, c.TTS.Provider) {
		return fmt.Errorf("tts.provider must be one of %v, got %q", ttsProviders, c.TTS.Provider)
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Telemetry.LogLevel)) {
		return fmt.Errorf("telemetry.log_level must be one of %v", logLevels)
	}
	if c.MaxChars <= 0 {
		return errors.New("max_chars must be positive")
	}
	if c.Retries < 0 {
		return errors.New("retries must not be negative")
	}
	if c.TimeoutSeconds <= 0 {
		return errors.New("timeout_seconds must be positive")
	}
	if c.TTS.Concurrency < 1 {
		return errors.New("tts.concurrency must be at least 1")
	}
	if c.TTS.RequestsPerMinute < 0 {
		return errors.New("tts.requests_per_minute must not be negative")
	}
	if strings.TrimSpace(c.Hosts.Female) == "" || strings.TrimSpace(c.Hosts.Male) == "" {
		return errors.New("hosts.female and hosts.male must not be empty")
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir must not be empty")
	}
	if c.Publish.Enabled && c.Publish.Bucket == "" {
		return errors.New("publish.bucket is required when publishing is enabled")
	}
	return nil
}

// ScriptAPIKey resolves the key for the configured script provider.
func (c Config) ScriptAPIKey() string {
	if c.Script.APIKey != "" {
		return c.Script.APIKey
	}
	switch c.Script.Provider {
	case "openai":
		return c.OpenAI.APIKey
	case "claude":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}

func (c Config) ScriptBaseURL() string {
	if c.Script.BaseURL != "" || c.Script.Provider != "openai" {
		return c.Script.BaseURL
	}
	return c.OpenAI.APIBase
}

// TTSAPIKey resolves the key for the configured speech provider. The OpenAI
// speech backend shares the chat credentials unless given its own.
func (c Config) TTSAPIKey() string {
	if c.TTS.APIKey != "" {
		return c.TTS.APIKey
	}
	switch c.TTS.Provider {
	case "openai":
		return c.OpenAI.APIKey
	case "elevenlabs":
		return c.ElevenLabsKey
	}
	return ""
}

func (c Config) TTSBaseURL() string {
	if c.TTS.BaseURL != "" || c.TTS.Provider != "openai" {
		return c.TTS.BaseURL
	}
	return c.OpenAI.APIBase
}

// RequireCredentials reports the first missing API key for the providers
// that cannot run without one.
func (c Config) RequireCredentials() error {
	if err := c.RequireScriptCredentials(); err != nil {
		return err
	}
	return c.RequireTTSCredentials()
}

func (c Config) RequireScriptCredentials() error {
	if c.ScriptAPIKey() != "" {
		return nil
	}
	switch c.Script.Provider {
	case "openai":
		return errors.New("no API key for the chat endpoint: set OPENAI_API_KEY or openai.api_key")
	case "gemini":
		return errors.New("no Gemini API key: set GEMINI_API_KEY or gemini_api_key")
	}
	return nil
}

func (c Config) RequireTTSCredentials() error {
	switch c.TTS.Provider {
	case "openai":
		if c.TTSAPIKey() == "" {
			return errors.New("no API key for the speech endpoint: set OPENAI_API_KEY or tts.api_key")
		}
	case "elevenlabs":
		if c.TTSAPIKey() == "" {
			return errors.New("no ElevenLabs API key: set ELEVENLABS_API_KEY or tts.api_key")
		}
	case "vertex":
		if c.GCP.Project == "" {
			return errors.New("no GCP project for Vertex AI: set GCP_PROJECT or gcp.project")
		}
	}
	return nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c Config) NeedsAWS() bool {
	return c.Script.Provider == "nova" || c.TTS.Provider == "polly" || c.Publish.Enabled || c.AWS.SecretPrefix != ""
}
