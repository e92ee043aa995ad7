package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfigurationMissing 必需的凭据缺失，启动时直接失败
var ErrConfigurationMissing = errors.New("configuration missing")

// 默认使用的图片生成模型
const DefaultModelName = "gemini-2.5-flash-image-preview"

// 运行模式
const (
	ServerModeHTTP  = "http"
	ServerModeStdio = "stdio"
)

// Config 应用配置结构
type Config struct {
	// GenAI 配置
	GenAIBaseURL   string
	GenAIAPIKey    string
	GenAIModelName string

	// 运行模式: http（网页上传）或 stdio（MCP 工具）
	ServerMode    string
	ServerAddress string
	ServerPort    string
	// 会话空闲多久后被清理
	SessionTTL time.Duration

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// LoadConfig 从 .env 文件和环境变量加载配置
func LoadConfig() (*Config, error) {
	// .env 文件不存在时直接使用环境变量
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := &Config{
		GenAIBaseURL:   getEnv("GENAI_BASE_URL", ""),
		GenAIAPIKey:    getEnv("GENAI_API_KEY", getEnv("API_KEY", "")),
		GenAIModelName: getEnv("GENAI_MODEL_NAME", DefaultModelName),
		ServerMode:     strings.ToLower(getEnv("SERVER_MODE", ServerModeHTTP)),
		ServerAddress:  getEnv("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		SessionTTL:     time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		// 日志配置
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if config.GenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: GENAI_API_KEY (or API_KEY) environment variable is not set", ErrConfigurationMissing)
	}

	switch config.ServerMode {
	case ServerModeHTTP:
	case ServerModeStdio:
		// stdout 是 MCP 通道，日志不能写到 stdout
		if strings.EqualFold(config.LogOutput, "stdout") {
			config.LogOutput = "stderr"
		}
	default:
		return nil, fmt.Errorf("unsupported SERVER_MODE: %s", config.ServerMode)
	}

	if config.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}

	// 初始化日志系统
	logConfig := &LogConfig{
		Level:    config.LogLevel,
		Format:   config.LogFormat,
		Output:   config.LogOutput,
		FilePath: config.LogFile,
	}
	if err := InitLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// GetServerAddr 返回完整的服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerAddress, c.ServerPort)
}
