package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Image    ImageConfig
	Vision   VisionConfig
	Worker   WorkerConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// DSN renders the connection string understood by pgxpool.ParseConfig.
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

// StorageConfig holds the directories for uploaded statements and rendered pages.
type StorageConfig struct {
	UploadDir string
	ImagesDir string
}

// ImageConfig controls page rendering.
type ImageConfig struct {
	DPI          int
	MaxDimension int
	JPEGQuality  int
}

type VisionConfig struct {
	Backend  string
	Timeout  time.Duration
	Ollama   EndpointConfig
	LMStudio EndpointConfig
	Gemini   GeminiConfig
	GigaChat GigaChatConfig
}

// EndpointConfig is a model name plus the base URL serving it.
type EndpointConfig struct {
	BaseURL string
	Model   string
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	OAuthURL           string
	BaseURL            string
	Model              string
	InsecureSkipVerify bool
}

type WorkerConfig struct {
	PollInterval time.Duration
}

func Load() (*Config, error) {
	// .env is optional, plain environment variables work for containers
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getSeconds("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getSeconds("SERVER_WRITE_TIMEOUT", 30),
			BodyLimit:    getInt("SERVER_BODY_LIMIT_MB", 50) * 1024 * 1024,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "hisabkitab"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getInt("DB_MAX_CONNS", 10)),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "change-me-in-production"),
			Expiration: time.Duration(getInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
			RefreshExp: time.Duration(getInt("JWT_REFRESH_EXPIRATION_HOURS", 168)) * time.Hour,
		},
		Storage: StorageConfig{
			UploadDir: getEnv("UPLOAD_FOLDER", "uploads"),
			ImagesDir: getEnv("CONVERTED_IMAGES_FOLDER", "converted_images"),
		},
		Image: ImageConfig{
			DPI:          getInt("IMG_DPI", 150),
			MaxDimension: getInt("IMG_MAX_DIMENSION", 1600),
			JPEGQuality:  getInt("IMG_JPEG_QUALITY", 85),
		},
		Vision: VisionConfig{
			Backend: strings.ToLower(getEnv("LLM_BACKEND", "ollama")),
			Timeout: getSeconds("LLM_TIMEOUT", 300),
			Ollama: EndpointConfig{
				BaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   getEnv("OLLAMA_MODEL", "llava"),
			},
			LMStudio: EndpointConfig{
				BaseURL: getEnv("LMSTUDIO_BASE_URL", "http://localhost:1234"),
				Model:   getEnv("LMSTUDIO_MODEL", "local-model"),
			},
			Gemini: GeminiConfig{
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				BaseURL: getEnv("GEMINI_BASE_URL", ""),
				Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			},
			GigaChat: GigaChatConfig{
				APIKey:             getEnv("GIGACHAT_API_KEY", ""),
				Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
				OAuthURL:           getEnv("GIGACHAT_OAUTH_URL", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"),
				BaseURL:            getEnv("GIGACHAT_BASE_URL", "https://gigachat.devices.sberbank.ru/api/v1"),
				Model:              getEnv("GIGACHAT_MODEL", "GigaChat-Pro"),
				InsecureSkipVerify: getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true",
			},
		},
		Worker: WorkerConfig{
			PollInterval: getSeconds("WORKER_POLL_INTERVAL", 2),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Second
}
