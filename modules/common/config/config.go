package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ErrMissingModelKey - 모델 API 키가 없으면 서버를 띄우지 않는다
var ErrMissingModelKey = errors.New("GEMINI_API_KEY (or GOOGLE_AI_API_KEY) is required")

// Config holds every environment-provided setting. It is built once at
// startup and only read afterwards.
type Config struct {
	// Gemini (Nano Banana)
	GeminiAPIKey    string
	GeminiModel     string
	GeminiBackend   string
	VertexProject   string
	VertexLocation  string
	VertexCredsJSON string
	VertexCredsPath string
	CostPerImage    float64

	// Cloudinary
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadPreset string
	DefaultClientFolder    string
	UploadFormat           string

	// Redis (session store)
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool
	SessionTTL    time.Duration

	// Server
	Port           string
	AppEnv         string
	OutputDir      string
	TemplatesDir   string
	PublicURL      string
	UseNginx       bool
	StudioPort     int
	OnboardingPort int

	envFileMissing bool
}

// LoadConfig - .env 파일과 환경변수에서 설정 로드
func LoadConfig() (*Config, error) {
	envFileMissing := godotenv.Load() != nil

	cfg := &Config{
		GeminiAPIKey:    firstEnv("GEMINI_API_KEY", "GOOGLE_AI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash-image-preview"),
		GeminiBackend:   strings.ToLower(getEnv("GEMINI_BACKEND", "gemini")),
		VertexProject:   getEnv("GOOGLE_CLOUD_PROJECT", ""),
		VertexLocation:  getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),
		VertexCredsJSON: getEnv("VERTEXAI_CREDENTIALS_JSON", ""),
		VertexCredsPath: getEnv("VERTEXAI_CREDENTIALS_PATH", ""),
		CostPerImage:    getFloat("COST_PER_IMAGE", 0.039),

		CloudinaryCloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:       getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryUploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", "ml_default"),
		DefaultClientFolder:    getEnv("CLIENT_FOLDER_NAME", ""),
		UploadFormat:           strings.ToLower(getEnv("UPLOAD_FORMAT", "png")),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getBool("REDIS_USE_TLS", false),
		SessionTTL:    getDuration("SESSION_TTL", 2*time.Hour),

		Port:           getEnv("PORT", "5000"),
		AppEnv:         getEnv("APP_ENV", "production"),
		OutputDir:      getEnv("OUTPUT_DIR", "images/output"),
		TemplatesDir:   getEnv("TEMPLATES_DIR", "templates"),
		PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", ""), "/"),
		UseNginx:       getBool("USE_NGINX", false),
		StudioPort:     getInt("STUDIO_PORT", 8502),
		OnboardingPort: getInt("ONBOARDING_PORT", 8501),
		envFileMissing: envFileMissing,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LogSummary - 로드된 설정 요약 (시크릿 제외)
func (c *Config) LogSummary(log zerolog.Logger) {
	if c.envFileMissing {
		log.Warn().Msg("⚠️  .env file not found, using environment variables")
	}
	log.Info().
		Str("model", c.GeminiModel).
		Str("backend", c.GeminiBackend).
		Bool("cloudinary", c.CloudinaryEnabled()).
		Str("upload_format", c.UploadFormat).
		Str("sessions", c.sessionBackend()).
		Msg("✅ Configuration loaded successfully")
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	switch c.GeminiBackend {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return ErrMissingModelKey
		}
	case "vertex":
		if c.VertexProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when GEMINI_BACKEND=vertex")
		}
	default:
		return fmt.Errorf("GEMINI_BACKEND must be gemini or vertex, got %q", c.GeminiBackend)
	}
	if c.UploadFormat != "png" && c.UploadFormat != "webp" {
		return fmt.Errorf("UPLOAD_FORMAT must be png or webp, got %q", c.UploadFormat)
	}
	return nil
}

// CloudinaryEnabled reports whether all three storage credentials are set.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// RedisEnabled - REDIS_HOST가 없으면 in-memory 세션 스토어 사용
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// BaseURL is the externally reachable address of this server.
func (c *Config) BaseURL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return "http://localhost:" + c.Port
}

// ServiceURLs returns the studio and onboarding front-end addresses.
func (c *Config) ServiceURLs() (studio, onboarding string) {
	switch {
	case c.PublicURL != "" && c.UseNginx:
		return c.PublicURL + "/studio", c.PublicURL + "/onboarding"
	case c.PublicURL != "":
		return fmt.Sprintf("%s:%d", c.PublicURL, c.StudioPort), fmt.Sprintf("%s:%d", c.PublicURL, c.OnboardingPort)
	default:
		return fmt.Sprintf("http://localhost:%d", c.StudioPort), fmt.Sprintf("http://localhost:%d", c.OnboardingPort)
	}
}

func (c *Config) sessionBackend() string {
	if c.RedisEnabled() {
		return "redis " + c.GetRedisAddr()
	}
	return "in-memory"
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := getEnv(key, ""); value != "" {
			return value
		}
	}
	return ""
}

func getBool(key string, defaultValue bool) bool {
	if parsed, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return parsed
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if parsed, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return parsed
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if parsed, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return parsed
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(getEnv(key, "")); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
