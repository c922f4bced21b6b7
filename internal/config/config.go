package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lexiqai/interview-coach/internal/posture"
	"github.com/lexiqai/interview-coach/internal/resilience"
	"github.com/lexiqai/interview-coach/internal/stress"
)

// Config holds all configuration for the interview coach service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// AI service gRPC endpoint (question generation and scoring)
	AIServiceURL        string `envconfig:"AI_SERVICE_URL" default:"localhost:50051"`
	AIServiceTLSEnabled bool   `envconfig:"AI_SERVICE_TLS_ENABLED" default:"false"`
	AIServiceTimeout    int    `envconfig:"AI_SERVICE_TIMEOUT" default:"30"` // seconds

	// Interview configuration
	QuestionCount    int    `envconfig:"QUESTION_COUNT" default:"5"`
	QuestionBankPath string `envconfig:"QUESTION_BANK_PATH" default:""` // empty uses the embedded bank

	// Deepgram STT configuration. Without a key the browser's own recognizer
	// pushes transcripts over the session socket.
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Cartesia TTS configuration. Without a key questions are read aloud by the browser.
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"sonic-english"`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`

	// Audio configuration
	AudioInputSampleRate int `envconfig:"AUDIO_INPUT_SAMPLE_RATE" default:"16000"` // PCM rate pushed by clients
	AudioBufferSize      int `envconfig:"AUDIO_BUFFER_SIZE" default:"16384"`      // Ring buffer size in bytes

	// Posture calibration
	PostureMinPoseScore     float64 `envconfig:"POSTURE_MIN_POSE_SCORE" default:"0.2"`
	PostureMinLandmarkScore float64 `envconfig:"POSTURE_MIN_LANDMARK_SCORE" default:"0.3"`
	PostureMinShoulderSpan  float64 `envconfig:"POSTURE_MIN_SHOULDER_SPAN" default:"10"`
	PostureSlouchRatio      float64 `envconfig:"POSTURE_SLOUCH_RATIO" default:"0.35"`
	PostureTiltRatio        float64 `envconfig:"POSTURE_TILT_RATIO" default:"0.15"`
	PostureCooldownMs       int     `envconfig:"POSTURE_COOLDOWN_MS" default:"2000"`

	// Stress calibration
	StressSmoothing        float64 `envconfig:"STRESS_SMOOTHING" default:"0.9"`
	StressFullScale        float64 `envconfig:"STRESS_FULL_SCALE" default:"128"`
	StressFloor            float64 `envconfig:"STRESS_FLOOR" default:"5"`
	StressNeutral          float64 `envconfig:"STRESS_NEUTRAL" default:"50"`
	StressSampleIntervalMs int     `envconfig:"STRESS_SAMPLE_INTERVAL_MS" default:"500"`

	// Speech recognizer restart budget
	RecognizerMaxRestarts    int `envconfig:"RECOGNIZER_MAX_RESTARTS" default:"5"`
	RecognizerRestartDelayMs int `envconfig:"RECOGNIZER_RESTART_DELAY_MS" default:"300"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum attempts per call
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks value ranges that envconfig cannot express
func (c *Config) Validate() error {
	switch {
	case c.QuestionCount <= 0:
		return fmt.Errorf("QUESTION_COUNT must be positive")
	case c.PostureMinPoseScore < 0 || c.PostureMinPoseScore > 1:
		return fmt.Errorf("POSTURE_MIN_POSE_SCORE must be within [0,1]")
	case c.PostureMinLandmarkScore < 0 || c.PostureMinLandmarkScore > 1:
		return fmt.Errorf("POSTURE_MIN_LANDMARK_SCORE must be within [0,1]")
	case c.PostureSlouchRatio <= 0 || c.PostureTiltRatio <= 0:
		return fmt.Errorf("posture ratios must be positive")
	case c.PostureCooldownMs < 0:
		return fmt.Errorf("POSTURE_COOLDOWN_MS must not be negative")
	case c.StressSmoothing < 0 || c.StressSmoothing >= 1:
		return fmt.Errorf("STRESS_SMOOTHING must be within [0,1)")
	case c.StressFullScale <= 0:
		return fmt.Errorf("STRESS_FULL_SCALE must be positive")
	case c.StressFloor < 0 || c.StressFloor > 100:
		return fmt.Errorf("STRESS_FLOOR must be within [0,100]")
	case c.StressNeutral < c.StressFloor || c.StressNeutral > 100:
		return fmt.Errorf("STRESS_NEUTRAL must be within [STRESS_FLOOR,100]")
	case c.StressSampleIntervalMs <= 0:
		return fmt.Errorf("STRESS_SAMPLE_INTERVAL_MS must be positive")
	case c.RecognizerMaxRestarts < 0:
		return fmt.Errorf("RECOGNIZER_MAX_RESTARTS must not be negative")
	case c.AudioInputSampleRate <= 0:
		return fmt.Errorf("AUDIO_INPUT_SAMPLE_RATE must be positive")
	case c.AudioBufferSize <= 1:
		return fmt.Errorf("AUDIO_BUFFER_SIZE must be greater than 1")
	}
	return nil
}

// Posture returns the posture classifier calibration
func (c *Config) Posture() posture.Config {
	return posture.Config{
		MinPoseScore:     c.PostureMinPoseScore,
		MinLandmarkScore: c.PostureMinLandmarkScore,
		MinShoulderSpan:  c.PostureMinShoulderSpan,
		SlouchRatio:      c.PostureSlouchRatio,
		TiltRatio:        c.PostureTiltRatio,
		Cooldown:         time.Duration(c.PostureCooldownMs) * time.Millisecond,
	}
}

// Stress returns the stress estimator calibration
func (c *Config) Stress() stress.Config {
	return stress.Config{
		Smoothing: c.StressSmoothing,
		FullScale: c.StressFullScale,
		Floor:     c.StressFloor,
		Neutral:   c.StressNeutral,
	}
}

// StressSampleInterval is the cadence of the stress reading
func (c *Config) StressSampleInterval() time.Duration {
	return time.Duration(c.StressSampleIntervalMs) * time.Millisecond
}

// RestartBudget returns a fresh recognizer restart budget
func (c *Config) RestartBudget() *resilience.RestartBudget {
	return resilience.NewRestartBudget(c.RecognizerMaxRestarts, time.Duration(c.RecognizerRestartDelayMs)*time.Millisecond)
}

// Retry returns the retry policy for AI service calls
func (c *Config) Retry() *resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = c.RetryMaxAttempts
	rc.InitialBackoff = time.Duration(c.RetryInitialBackoff) * time.Millisecond
	return rc
}

// AITimeout is the deadline for a single AI service call
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AIServiceTimeout) * time.Second
}

// BreakerResetTimeout is how long an open circuit waits before probing
func (c *Config) BreakerResetTimeout() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
