// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是 member-mall 的全部配置
type Config struct {
	App     AppConfig     `yaml:"app"`
	CMS     CMSConfig     `yaml:"cms"`
	Coupon  CouponConfig  `yaml:"coupon"`
	Email   EmailConfig   `yaml:"email"`
	Session SessionConfig `yaml:"session"`
	Catalog CatalogConfig `yaml:"catalog"`
	Infra   InfraConfig   `yaml:"infra"`
}

type AppConfig struct {
	Name              string        `yaml:"name"`
	Port              int           `yaml:"port"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
	QRImageURL        string        `yaml:"qr_image_url"`
	JournalPath       string        `yaml:"journal_path"` // 未配置 MySQL 时使用的 sqlite 文件
}

// CMSConfig 对应记录库（headless CMS）
type CMSConfig struct {
	Endpoint             string `yaml:"endpoint"`
	APIKey               string `yaml:"api_key"`
	MembershipCollection string `yaml:"membership_collection"`
	ProductCollection    string `yaml:"product_collection"`
}

type CouponConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	ServiceName   string        `yaml:"service_name"` // 配置后通过 nacos 发现
	DefaultIssuer string        `yaml:"default_issuer"`
	Validity      time.Duration `yaml:"validity"`
}

type EmailConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Namespace   string `yaml:"namespace"`
}

type SessionConfig struct {
	Backend    string        `yaml:"backend"` // cookie | redis
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
	Secure     bool          `yaml:"secure"`
}

type CatalogConfig struct {
	// VisibilityRule 是一个可选的 CEL 表达式，变量为 member 与 product
	VisibilityRule string `yaml:"visibility_rule"`
}

type InfraConfig struct {
	Jaeger JaegerConfig `yaml:"jaeger"`
	Redis  RedisConfig  `yaml:"redis"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	MySQL  MySQLConfig  `yaml:"mysql"`
	Nacos  NacosConfig  `yaml:"nacos"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	RedemptionTopic string   `yaml:"redemption_topic"`
	ConsumerGroup   string   `yaml:"consumer_group"`
}

type MySQLConfig struct {
	Addr     string `yaml:"addr"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type NacosConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

// DSN 使用驱动自身的 Config 生成连接串，保证转义正确。
func (m MySQLConfig) DSN() string {
	if m.Addr == "" {
		return ""
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = m.Addr
	cfg.User = m.User
	cfg.Passwd = m.Password
	cfg.DBName = m.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// DefaultConfig 返回与原有前端组件一致的默认值
func DefaultConfig() Config {
	return Config{
		App: AppConfig{
			Name:              "member-mall",
			Port:              8090,
			LogLevel:          "info",
			LogFormat:         "json",
			ProcessingTimeout: 30 * time.Second,
			QRImageURL:        "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data=",
			JournalPath:       "member-mall.db",
		},
		CMS: CMSConfig{
			MembershipCollection: "one-club-memberships",
			ProductCollection:    "one-club-products",
		},
		Coupon: CouponConfig{
			DefaultIssuer: "1club",
			Validity:      365 * 24 * time.Hour,
		},
		Email: EmailConfig{
			Namespace: "1club",
		},
		Session: SessionConfig{
			Backend:    "cookie",
			CookieName: "user",
			TTL:        7 * 24 * time.Hour,
		},
		Infra: InfraConfig{
			Redis: RedisConfig{LockTTL: time.Minute},
			Kafka: KafkaConfig{
				RedemptionTopic: "member-mall-redemptions",
				ConsumerGroup:   "member-mall-support-relay",
			},
			Nacos: NacosConfig{Group: "DEFAULT_GROUP"},
		},
	}
}

// LoadConfig 读取 YAML 配置（path 为空时仅使用默认值），再叠加环境变量。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.CMS.Endpoint = getEnv("CMS_API_ENDPOINT", cfg.CMS.Endpoint)
	cfg.CMS.APIKey = getEnv("CMS_API_KEY", cfg.CMS.APIKey)
	cfg.Coupon.Endpoint = getEnv("COUPON_ENDPOINT", cfg.Coupon.Endpoint)
	cfg.Email.Endpoint = getEnv("EMAIL_ENDPOINT", cfg.Email.Endpoint)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
	cfg.Infra.MySQL.Addr = getEnv("MYSQL_ADDR", cfg.Infra.MySQL.Addr)
	cfg.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.Infra.MySQL.Password)
	cfg.Infra.Nacos.Addrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.Addrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if port, err := strconv.Atoi(getEnv("PORT", "")); err == nil {
		cfg.App.Port = port
	}
}

// Validate 返回缺失或取值不当的关键配置项。缺失时相关操作会在入口处被拒绝，而不是中途失败。
func (c Config) Validate() []string {
	var missing []string
	if c.CMS.Endpoint == "" {
		missing = append(missing, "cms.endpoint")
	}
	if c.CMS.APIKey == "" {
		missing = append(missing, "cms.api_key")
	}
	if c.Coupon.Endpoint == "" && c.Coupon.ServiceName == "" {
		missing = append(missing, "coupon.endpoint")
	}
	if c.Email.Endpoint == "" && c.Email.ServiceName == "" {
		missing = append(missing, "email.endpoint")
	}
	if c.Email.Namespace == "" {
		missing = append(missing, "email.namespace")
	}
	if c.Session.Backend == "redis" && c.Infra.Redis.Addr == "" {
		missing = append(missing, "infra.redis.addr")
	}
	// 锁先于兑换流程过期会放进第二个并发兑换
	if c.Infra.Redis.Addr != "" && c.Infra.Redis.LockTTL > 0 && c.Infra.Redis.LockTTL < c.App.ProcessingTimeout {
		missing = append(missing, "infra.redis.lock_ttl")
	}
	return missing
}

// RedemptionLockTTL 返回兑换锁的有效期，不短于 ProcessingTimeout
func (c Config) RedemptionLockTTL() time.Duration {
	ttl := c.Infra.Redis.LockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return max(ttl, c.App.ProcessingTimeout)
}

var current atomic.Pointer[Config]

// SetCurrentConfig 发布进程级配置快照
func SetCurrentConfig(cfg Config) {
	current.Store(&cfg)
}

// GetCurrentConfig 返回当前配置；未初始化时返回默认值。
func GetCurrentConfig() Config {
	if cfg := current.Load(); cfg != nil {
		return *cfg
	}
	return DefaultConfig()
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
