package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	commoncfg "energo-data/internal/common/config"

	"gopkg.in/yaml.v3"
)

// Config energo-data / energo-ingest 配置
// 加载顺序：默认值 -> CONFIG_FILE（YAML，可选）-> 环境变量
type Config struct {
	HTTP       HTTPConfig               `yaml:"http"`
	DBEnabled  bool                     `yaml:"db_enabled"`
	Database   commoncfg.DatabaseConfig `yaml:"database"`
	Redis      RedisConfig              `yaml:"redis"`
	Log        LogConfig                `yaml:"log"`
	Classifier ClassifierConfig         `yaml:"classifier"`
	Ingest     IngestConfig             `yaml:"ingest"`
	Analysis   AnalysisConfig           `yaml:"analysis"`
	Norms      NormsConfig              `yaml:"norms"`
	MQTT       MQTTConfig               `yaml:"mqtt"`
}

type HTTPConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// RedisConfig 分类缓存与异步任务队列共用
type RedisConfig struct {
	Enabled               bool `yaml:"enabled"`
	commoncfg.RedisConfig `yaml:",inline"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ClassifierConfig 2GIS 用途查询与节流
type ClassifierConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
	RateMode   string        `yaml:"rate_mode"` // interval | token_bucket | none
	Interval   time.Duration `yaml:"interval"`
	RPS        float64       `yaml:"rps"`
	Burst      int           `yaml:"burst"`
	CacheTTL   time.Duration `yaml:"cache_ttl"` // 0 = 不缓存
}

// IngestConfig 异步导入（Redis Streams）
type IngestConfig struct {
	AsyncEnabled  bool          `yaml:"async_enabled"`
	Stream        string        `yaml:"stream"`
	ConsumerGroup string        `yaml:"consumer_group"`
	ConsumerName  string        `yaml:"consumer_name"`
	BatchSize     int64         `yaml:"batch_size"`
	Block         time.Duration `yaml:"block"`
}

type AnalysisConfig struct {
	PageSize              int     `yaml:"page_size"`
	MinDeviation          int     `yaml:"min_deviation"`
	HighConsumerThreshold float64 `yaml:"high_consumer_threshold"`
}

// NormsConfig 用电标准种子文件；Strict=false 时重复标准保留第一条
type NormsConfig struct {
	SeedFile string `yaml:"seed_file"`
	Strict   bool   `yaml:"strict"`
}

// MQTTConfig 导入完成通知与补分类触发
type MQTTConfig struct {
	Enabled              bool   `yaml:"enabled"`
	commoncfg.MQTTConfig `yaml:",inline"`
	Topic                string `yaml:"topic"`          // 导入完成事件
	BackfillTopic        string `yaml:"backfill_topic"` // energo-ingest 订阅，收到即补分类
}

// Default 默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.MaxUploadBytes = 50 << 20

	cfg.DBEnabled = true
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "energo",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  5,
	}

	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "localhost:6379"

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Log.Output = "stdout"

	cfg.Classifier = ClassifierConfig{
		Enabled:    true,
		BaseURL:    "https://catalog.api.2gis.com",
		Timeout:    10 * time.Second,
		RetryCount: 0,
		RateMode:   "interval",
		Interval:   1100 * time.Millisecond,
		RPS:        1,
		Burst:      1,
		CacheTTL:   7 * 24 * time.Hour,
	}

	cfg.Ingest = IngestConfig{
		AsyncEnabled:  true,
		Stream:        "energo:ingest:jobs",
		ConsumerGroup: "energo-ingest",
		ConsumerName:  hostnameOr("energo-ingest-1"),
		BatchSize:     1,
		Block:         5 * time.Second,
	}

	cfg.Analysis = AnalysisConfig{
		PageSize:              10,
		MinDeviation:          40,
		HighConsumerThreshold: 3000,
	}

	cfg.Norms = NormsConfig{SeedFile: "norms.yaml", Strict: true}

	cfg.MQTT.Enabled = false
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "energo-data"
	cfg.MQTT.QoS = 1
	cfg.MQTT.Topic = "energo/ingest/completed"
	cfg.MQTT.BackfillTopic = "energo/classify/backfill"
	return cfg
}

// Load 默认值 -> CONFIG_FILE -> 环境变量
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.MaxUploadBytes = int64(parseInt(getEnv("HTTP_MAX_UPLOAD_BYTES", ""), int(c.HTTP.MaxUploadBytes)))

	// DB 不可用时回退到内存仓库
	c.DBEnabled = parseBool(getEnv("DB_ENABLED", ""), c.DBEnabled)
	c.Database.LoadFromEnv("DB")

	c.Redis.Enabled = parseBool(getEnv("REDIS_ENABLED", ""), c.Redis.Enabled)
	c.Redis.RedisConfig.LoadFromEnv("REDIS")

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.Output = getEnv("LOG_OUTPUT", c.Log.Output)

	// 分类器
	c.Classifier.Enabled = parseBool(getEnv("CLASSIFIER_ENABLED", ""), c.Classifier.Enabled)
	c.Classifier.BaseURL = getEnv("TWOGIS_BASE_URL", c.Classifier.BaseURL)
	c.Classifier.APIKey = getEnv("TWOGIS_API_KEY", c.Classifier.APIKey)
	c.Classifier.Timeout = parseDuration(getEnv("TWOGIS_TIMEOUT", ""), c.Classifier.Timeout)
	c.Classifier.RetryCount = parseInt(getEnv("TWOGIS_RETRY_COUNT", ""), c.Classifier.RetryCount)
	c.Classifier.RateMode = getEnv("CLASSIFIER_RATE_MODE", c.Classifier.RateMode)
	c.Classifier.Interval = parseDuration(getEnv("CLASSIFIER_INTERVAL", ""), c.Classifier.Interval)
	c.Classifier.RPS = parseFloat(getEnv("CLASSIFIER_RPS", ""), c.Classifier.RPS)
	c.Classifier.Burst = parseInt(getEnv("CLASSIFIER_BURST", ""), c.Classifier.Burst)
	c.Classifier.CacheTTL = parseDuration(getEnv("CLASSIFIER_CACHE_TTL", ""), c.Classifier.CacheTTL)

	// 异步导入
	c.Ingest.AsyncEnabled = parseBool(getEnv("INGEST_ASYNC_ENABLED", ""), c.Ingest.AsyncEnabled)
	c.Ingest.Stream = getEnv("INGEST_STREAM", c.Ingest.Stream)
	c.Ingest.ConsumerGroup = getEnv("INGEST_CONSUMER_GROUP", c.Ingest.ConsumerGroup)
	c.Ingest.ConsumerName = getEnv("INGEST_CONSUMER_NAME", c.Ingest.ConsumerName)
	c.Ingest.BatchSize = int64(parseInt(getEnv("INGEST_BATCH_SIZE", ""), int(c.Ingest.BatchSize)))
	c.Ingest.Block = parseDuration(getEnv("INGEST_BLOCK", ""), c.Ingest.Block)

	c.Analysis.PageSize = parseInt(getEnv("ANALYSIS_PAGE_SIZE", ""), c.Analysis.PageSize)
	c.Analysis.MinDeviation = parseInt(getEnv("ANALYSIS_MIN_DEVIATION", ""), c.Analysis.MinDeviation)
	c.Analysis.HighConsumerThreshold = parseFloat(getEnv("ANALYSIS_HIGH_CONSUMER_THRESHOLD", ""), c.Analysis.HighConsumerThreshold)

	c.Norms.SeedFile = getEnv("NORMS_SEED_FILE", c.Norms.SeedFile)
	c.Norms.Strict = parseBool(getEnv("NORMS_STRICT", ""), c.Norms.Strict)

	// MQTT（默认禁用）
	c.MQTT.Enabled = parseBool(getEnv("MQTT_ENABLED", ""), c.MQTT.Enabled)
	c.MQTT.MQTTConfig.LoadFromEnv("MQTT")
	c.MQTT.Topic = getEnv("MQTT_TOPIC", c.MQTT.Topic)
	c.MQTT.BackfillTopic = getEnv("MQTT_BACKFILL_TOPIC", c.MQTT.BackfillTopic)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func hostnameOr(def string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return def
}
