package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	HTTPPort    string
	LogLevel    string

	LLMProvider     string
	GeminiAPIKey    string
	GeminiChatModel string
	AnthropicAPIKey string
	AnthropicModel  string
	ArkAPIKey       string
	ArkModel        string
	ArkBaseURL      string

	Temperature         float64
	TopP                float64
	MaxCompletionTokens int

	Embedder              string
	EmbeddingDimensions   int
	GeminiEmbeddingModel  string
	EmbeddingsPerSecond   float64
	EmbeddingCacheEntries int

	ONNXModelPath     string
	ONNXTokenizerPath string
	ONNXLibraryPath   string

	TokenizerEncoding string
	ChunkMaxTokens    int
	ChunkOverlap      int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = FromEnv()
	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
}

// FromEnv reads the configuration from the process environment.
func FromEnv() Config {
	return Config{
		DatabaseURL: getEnv("DATABASE_URL", "chat_memory.db"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),

		LLMProvider:     getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiChatModel: getEnv("GEMINI_CHAT_MODEL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", ""),
		ArkAPIKey:       getEnv("ARK_API_KEY", ""),
		ArkModel:        getEnv("ARK_MODEL", ""),
		ArkBaseURL:      getEnv("ARK_BASE_URL", ""),

		Temperature:         getEnvAsFloat("LLM_TEMPERATURE", 1),
		TopP:                getEnvAsFloat("LLM_TOP_P", 1),
		MaxCompletionTokens: getEnvAsInt("LLM_MAX_COMPLETION_TOKENS", 4096),

		Embedder:              getEnv("EMBEDDER", "hashing"),
		EmbeddingDimensions:   getEnvAsInt("EMBEDDING_DIMENSIONS", 384),
		GeminiEmbeddingModel:  getEnv("GEMINI_EMBEDDING_MODEL", ""),
		EmbeddingsPerSecond:   getEnvAsFloat("EMBEDDINGS_PER_SECOND", 2),
		EmbeddingCacheEntries: getEnvAsInt("EMBEDDING_CACHE_ENTRIES", 1024),

		ONNXModelPath:     getEnv("ONNX_MODEL_PATH", ""),
		ONNXTokenizerPath: getEnv("ONNX_TOKENIZER_PATH", ""),
		ONNXLibraryPath:   getEnv("ONNX_LIBRARY_PATH", ""),

		TokenizerEncoding: getEnv("TOKENIZER_ENCODING", "cl100k_base"),
		ChunkMaxTokens:    getEnvAsInt("CHUNK_MAX_TOKENS", 500),
		ChunkOverlap:      getEnvAsInt("CHUNK_OVERLAP", 50),
	}
}

// Validate rejects settings the pipeline cannot run with. Missing API keys
// are not an error; the session answers with a credential message instead.
func (c Config) Validate() error {
	if c.ChunkMaxTokens <= 0 {
		return fmt.Errorf("CHUNK_MAX_TOKENS must be positive, got %d", c.ChunkMaxTokens)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkMaxTokens {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, %d), got %d", c.ChunkMaxTokens, c.ChunkOverlap)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	switch c.LLMProvider {
	case "gemini", "anthropic", "ark":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.Embedder {
	case "hashing", "gemini", "onnx":
	default:
		return fmt.Errorf("unknown EMBEDDER %q", c.Embedder)
	}
	return nil
}

func (c Config) Debug() bool {
	return c.LogLevel == "DEBUG"
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
