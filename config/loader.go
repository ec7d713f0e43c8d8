// =============================================================================
// 📦 DocFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("DOCFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 DocFlow 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// LLM 生成模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Embedding 向量化模型配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Qdrant 向量存储配置
	Qdrant QdrantConfig `yaml:"qdrant" env:"QDRANT"`

	// Redis 路由缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Retrieval 混合检索配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Router 路由器配置
	Router RouterConfig `yaml:"router" env:"ROUTER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口（websocket 入口 + /healthz + /metrics）
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 同时执行的流式请求上限
	MaxConcurrentStreams int `yaml:"max_concurrent_streams" env:"MAX_CONCURRENT_STREAMS"`
	// 单连接限流（请求/秒）
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 单连接限流突发量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// LLMConfig 生成模型配置
type LLMConfig struct {
	// Provider: openai, azure_openai, anthropic, deepseek, qwen
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选，覆盖默认 endpoint）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// Azure 专用：部署名
	Deployment string `yaml:"deployment" env:"DEPLOYMENT"`
	// Azure 专用：API 版本
	APIVersion string `yaml:"api_version" env:"API_VERSION"`
}

// EmbeddingConfig 向量化模型配置
type EmbeddingConfig struct {
	// Provider: openai, azure_openai
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key（为空时复用 LLM 的 key）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 向量维度（0 表示使用模型默认）
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`
	// Azure 专用：部署名
	Deployment string `yaml:"deployment" env:"DEPLOYMENT"`
	// Azure 专用：API 版本
	APIVersion string `yaml:"api_version" env:"API_VERSION"`
}

// QdrantConfig Qdrant 向量存储配置
type QdrantConfig struct {
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// REST 端口
	Port int `yaml:"port" env:"PORT"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 默认集合名
	Collection string `yaml:"collection" env:"COLLECTION"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RedisConfig Redis 路由缓存配置
type RedisConfig struct {
	// 是否启用路由缓存（关闭时每次都走分类器）
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 路由决定缓存 TTL
	RouteTTL time.Duration `yaml:"route_ttl" env:"ROUTE_TTL"`
}

// RetrievalConfig 混合检索配置
type RetrievalConfig struct {
	// 返回的证据条数
	TopK int `yaml:"top_k" env:"TOP_K"`
	// 稠密候选倍数（候选数 = top_k × multiplier）
	CandidateMultiplier int `yaml:"candidate_multiplier" env:"CANDIDATE_MULTIPLIER"`
	// 稠密相似度过滤阈值
	ScoreThreshold float64 `yaml:"score_threshold" env:"SCORE_THRESHOLD"`
	// 稠密分量权重
	DenseWeight float64 `yaml:"dense_weight" env:"DENSE_WEIGHT"`
	// 词法分量权重
	LexicalWeight float64 `yaml:"lexical_weight" env:"LEXICAL_WEIGHT"`
	// 单条证据压缩后的 token 预算（0 关闭压缩）
	CompressionBudget int `yaml:"compression_budget" env:"COMPRESSION_BUDGET"`
	// 压缩时至少保留的句子数
	MinSentences int `yaml:"min_sentences" env:"MIN_SENTENCES"`
}

// RouterConfig 路由器配置
type RouterConfig struct {
	// 分类置信度下限，低于则兜底到 qa
	MinConfidence float64 `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "DOCFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MaxConcurrentStreams <= 0 {
		errs = append(errs, "max_concurrent_streams must be positive")
	}

	if c.LLM.Provider == "" {
		errs = append(errs, "llm provider is required")
	}
	if c.Embedding.Provider == "" {
		errs = append(errs, "embedding provider is required")
	}

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, "retrieval top_k must be positive")
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		errs = append(errs, "score_threshold must be between 0 and 1")
	}
	if c.Retrieval.DenseWeight+c.Retrieval.LexicalWeight <= 0 {
		errs = append(errs, "fusion weights must sum to a positive value")
	}

	if c.Router.MinConfidence < 0 || c.Router.MinConfidence > 1 {
		errs = append(errs, "min_confidence must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
