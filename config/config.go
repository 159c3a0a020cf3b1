package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config.yaml"

// Cfg 全局配置，进程启动时由 Load 覆盖
var Cfg = Default()

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	MySQL      MySQLConfig      `yaml:"mysql"`
	JWT        JWTConfig        `yaml:"jwt"`
	Model      ModelConfig      `yaml:"model"`
	Tutor      TutorConfig      `yaml:"tutor"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	MQ         MQConfig         `yaml:"mq"`
	Redis      RedisConfig      `yaml:"redis"`
	OSS        OSSConfig        `yaml:"oss"`
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

type JWTConfig struct {
	SecretKey string        `yaml:"secret_key"`
	TTL       time.Duration `yaml:"ttl"`
}

type ModelConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	ChatModel    string `yaml:"chat_model"`
	VisionModel  string `yaml:"vision_model"`
	SummaryModel string `yaml:"summary_model"`

	// 单次 LLM 调用的超时时间
	Timeout time.Duration `yaml:"timeout"`
}

type TutorConfig struct {
	// 导师回复使用的语言
	Language string `yaml:"language"`
}

type SummarizerConfig struct {
	// 摘要任务分发方式：local（进程内 worker）或 mq（RocketMQ）
	Dispatcher string `yaml:"dispatcher"`
	Workers    int    `yaml:"workers"`
	QueueSize  int    `yaml:"queue_size"`

	// 同一会话摘要锁的过期时间
	LockTTL time.Duration `yaml:"lock_ttl"`
}

type MQConfig struct {
	NameServer string `yaml:"name_server"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type OSSConfig struct {
	Region          string        `yaml:"region"`
	BucketName      string        `yaml:"bucket_name"`
	AccessKeyID     string        `yaml:"access_key_id"`
	AccessKeySecret string        `yaml:"access_key_secret"`
	PresignExpires  time.Duration `yaml:"presign_expires"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			AllowOrigins: []string{"http://localhost:5173"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			TTL: 24 * time.Hour,
		},
		Model: ModelConfig{
			BaseURL:      "https://api.openai.com/v1",
			ChatModel:    "gpt-4o",
			VisionModel:  "gpt-4o",
			SummaryModel: "gpt-4o",
			Timeout:      120 * time.Second,
		},
		Tutor: TutorConfig{
			Language: "French",
		},
		Summarizer: SummarizerConfig{
			Dispatcher: "local",
			Workers:    4,
			QueueSize:  100,
			LockTTL:    5 * time.Minute,
		},
		OSS: OSSConfig{
			PresignExpires: time.Hour,
		},
	}
}

// Load 读取 YAML 配置文件，密钥类配置可由环境变量覆盖
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET_KEY"); v != "" {
		cfg.JWT.SecretKey = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQL.DSN = v
	}
}
