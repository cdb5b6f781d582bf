package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
app:
  port: 9000
  processing_timeout: 45s
cms:
  endpoint: https://cms.example.com
  api_key: from-file
coupon:
  service_name: coupon-service
session:
  backend: redis
infra:
  kafka:
    brokers: ["kafka-1:9092"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "member-mall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FileOverDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, 45*time.Second, cfg.App.ProcessingTimeout)
	assert.Equal(t, "from-file", cfg.CMS.APIKey)
	assert.Equal(t, "one-club-memberships", cfg.CMS.MembershipCollection, "defaults survive a partial file")
	assert.Equal(t, []string{"kafka-1:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, "member-mall-redemptions", cfg.Infra.Kafka.RedemptionTopic)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("CMS_API_KEY", "from-env")
	t.Setenv("PORT", "7000")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.CMS.APIKey)
	assert.Equal(t, 7000, cfg.App.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Infra.Kafka.Brokers)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "app: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.ElementsMatch(t, []string{"cms.endpoint", "cms.api_key", "coupon.endpoint", "email.endpoint"}, cfg.Validate())

	cfg.CMS.Endpoint = "https://cms"
	cfg.CMS.APIKey = "k"
	cfg.Coupon.ServiceName = "coupon-service"
	cfg.Email.Endpoint = "https://mail"
	assert.Empty(t, cfg.Validate())

	cfg.Session.Backend = "redis"
	assert.Equal(t, []string{"infra.redis.addr"}, cfg.Validate())

	cfg.Infra.Redis.Addr = "127.0.0.1:6379"
	cfg.Email.Namespace = ""
	assert.Equal(t, []string{"email.namespace"}, cfg.Validate())

	cfg.Email.Namespace = "1club"
	cfg.Infra.Redis.LockTTL = 10 * time.Second
	assert.Equal(t, []string{"infra.redis.lock_ttl"}, cfg.Validate())
}

func TestRedemptionLockTTL(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Minute, cfg.RedemptionLockTTL())

	cfg.Infra.Redis.LockTTL = 10 * time.Second
	assert.Equal(t, cfg.App.ProcessingTimeout, cfg.RedemptionLockTTL(), "never shorter than the processing timeout")

	cfg.Infra.Redis.LockTTL = 0
	cfg.App.ProcessingTimeout = 2 * time.Minute
	assert.Equal(t, 2*time.Minute, cfg.RedemptionLockTTL())
}

func TestMySQLDSN(t *testing.T) {
	assert.Empty(t, MySQLConfig{}.DSN())

	dsn := MySQLConfig{Addr: "db:3306", User: "mall", Password: "p@ss/word", Database: "member_mall"}.DSN()
	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "p@ss/word", parsed.Passwd)
	assert.Equal(t, "member_mall", parsed.DBName)
	assert.True(t, parsed.ParseTime)
}

func TestCurrentConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.Name = "relay"
	SetCurrentConfig(cfg)
	assert.Equal(t, "relay", GetCurrentConfig().App.Name)
}
