package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider selects which model backend variant serves chat turns.
const (
	ProviderHosted = "hosted"
	ProviderLocal  = "local"
)

// Config contains all runtime settings for the avatar chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AIProvider        string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	LocalLLMHost      string
	ModelName         string
	SystemInstruction string
	BackendTimeout    time.Duration

	AvatarName      string
	AvatarFullName  string
	AvatarImageIdle string
	AvatarImageTalk string

	PersonaDir string

	VsayPath         string
	SynthesisTimeout time.Duration
	AssetDir         string
	AssetMaxAge      time.Duration
	AssetSweepEvery  time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SessionRetention time.Duration

	DatabaseURL string

	// UI timing constants, surfaced verbatim to the browser client.
	TypewriterDelay        time.Duration
	MouthAnimationInterval time.Duration
	BeepFrequencyHz        int
	BeepDuration           time.Duration
	BeepVolume             float64
	BeepVolumeEnd          float64
}

// Load reads environment variables and applies safe defaults.
// Provider selection is validated here: a hosted provider without an API key
// and a local provider without a host URL are both startup failures.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", "127.0.0.1:5000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "spectra"),

		AIProvider:        strings.ToLower(envOrDefault("AI_PROVIDER", ProviderHosted)),
		OpenAIAPIKey:      envTrimmed("OPENAI_API_KEY"),
		OpenAIBaseURL:     envTrimmed("OPENAI_BASE_URL"),
		LocalLLMHost:      envTrimmed("LOCAL_LLM_HOST"),
		ModelName:         envTrimmed("MODEL_NAME"),
		SystemInstruction: envTrimmed("SYSTEM_INSTRUCTION"),

		AvatarName:      envOrDefault("AVATAR_NAME", "Spectra"),
		AvatarFullName:  envOrDefault("AVATAR_FULL_NAME", "Spectra Communicator"),
		AvatarImageIdle: envOrDefault("AVATAR_IMAGE_IDLE", "idle.png"),
		AvatarImageTalk: envOrDefault("AVATAR_IMAGE_TALK", "talk.png"),

		PersonaDir: envOrDefault("PERSONA_DIR", "personas"),

		VsayPath: envOrDefault("VSAY_PATH", "vsay"),
		AssetDir: envOrDefault("AUDIO_ASSET_DIR", "static/audio"),

		RedisAddr:     envTrimmed("REDIS_ADDR"),
		RedisPassword: envTrimmed("REDIS_PASSWORD"),

		DatabaseURL: envTrimmed("DATABASE_URL"),

		ShutdownTimeout:  15 * time.Second,
		BackendTimeout:   60 * time.Second,
		SynthesisTimeout: 30 * time.Second,
		AssetMaxAge:      time.Hour,
		AssetSweepEvery:  10 * time.Minute,
		SessionRetention: 12 * time.Hour,

		TypewriterDelay:        50 * time.Millisecond,
		MouthAnimationInterval: 150 * time.Millisecond,
		BeepFrequencyHz:        800,
		BeepDuration:           50 * time.Millisecond,
		BeepVolume:             0.05,
		BeepVolumeEnd:          0.01,
	}

	switch cfg.AIProvider {
	case ProviderHosted:
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("AI_PROVIDER=hosted requires OPENAI_API_KEY")
		}
		if cfg.ModelName == "" {
			cfg.ModelName = "gpt-4o-mini"
		}
	case ProviderLocal:
		if cfg.LocalLLMHost == "" {
			return Config{}, fmt.Errorf("AI_PROVIDER=local requires LOCAL_LLM_HOST")
		}
		if cfg.ModelName == "" {
			cfg.ModelName = "llama3:latest"
		}
	default:
		return Config{}, fmt.Errorf("invalid AI_PROVIDER: %q (expected hosted|local)", cfg.AIProvider)
	}

	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = fmt.Sprintf(
			"You are an AI assistant named %s. Respond concisely in a technical, direct style. Keep answers short and to the point.",
			cfg.AvatarName,
		)
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BackendTimeout, err = durationFromEnv("BACKEND_TIMEOUT", cfg.BackendTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SynthesisTimeout, err = durationFromEnv("SYNTHESIS_TIMEOUT", cfg.SynthesisTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AssetMaxAge, err = durationFromEnv("AUDIO_ASSET_MAX_AGE", cfg.AssetMaxAge)
	if err != nil {
		return Config{}, err
	}
	cfg.AssetSweepEvery, err = durationFromEnv("AUDIO_ASSET_SWEEP_INTERVAL", cfg.AssetSweepEvery)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionRetention, err = durationFromEnv("SESSION_RETENTION", cfg.SessionRetention)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB, err = intFromEnv("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return Config{}, err
	}
	cfg.TypewriterDelay, err = durationFromEnv("TYPEWRITER_DELAY", cfg.TypewriterDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.MouthAnimationInterval, err = durationFromEnv("MOUTH_ANIMATION_INTERVAL", cfg.MouthAnimationInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.BeepFrequencyHz, err = intFromEnv("BEEP_FREQUENCY_HZ", cfg.BeepFrequencyHz)
	if err != nil {
		return Config{}, err
	}
	cfg.BeepDuration, err = durationFromEnv("BEEP_DURATION", cfg.BeepDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.BeepVolume, err = floatFromEnv("BEEP_VOLUME", cfg.BeepVolume)
	if err != nil {
		return Config{}, err
	}
	cfg.BeepVolumeEnd, err = floatFromEnv("BEEP_VOLUME_END", cfg.BeepVolumeEnd)
	if err != nil {
		return Config{}, err
	}

	if cfg.BackendTimeout <= 0 {
		return Config{}, fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}
	if cfg.SynthesisTimeout <= 0 {
		return Config{}, fmt.Errorf("SYNTHESIS_TIMEOUT must be positive")
	}
	if cfg.AssetMaxAge <= 0 {
		return Config{}, fmt.Errorf("AUDIO_ASSET_MAX_AGE must be positive")
	}
	if cfg.BeepFrequencyHz <= 0 {
		return Config{}, fmt.Errorf("BEEP_FREQUENCY_HZ must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
