package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "FOODORDER"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Payment PaymentConfig `mapstructure:"payment"`
	Orders  OrdersConfig  `mapstructure:"orders"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig is the gRPC health endpoint and the name the instance
// registers under. AdvertiseHost is the address other hosts use to reach
// it; Host is only the bind address.
type ServerConfig struct {
	Name          string `mapstructure:"name"`
	Port          int    `mapstructure:"port"`
	Host          string `mapstructure:"host"`
	AdvertiseHost string `mapstructure:"advertise_host"`
}

type GatewayConfig struct {
	Port               int           `mapstructure:"port"`
	Host               string        `mapstructure:"host"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout"`
	StreamWriteTimeout time.Duration `mapstructure:"stream_write_timeout"`
	Swagger            bool          `mapstructure:"swagger"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	UserTTL  time.Duration `mapstructure:"user_ttl"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	AdminID    string `mapstructure:"admin_id"`
	AdminEmail string `mapstructure:"admin_email"`
}

type PaymentConfig struct {
	StripeSecretKey     string  `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string  `mapstructure:"stripe_webhook_secret"`
	FrontendURL         string  `mapstructure:"frontend_url"`
	Currency            string  `mapstructure:"currency"`
	DeliveryFee         float64 `mapstructure:"delivery_fee"`
}

type OrdersConfig struct {
	EnforceAmount bool `mapstructure:"enforce_amount"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "order-service")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50052)
	v.SetDefault("server.advertise_host", "")

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 4000)
	v.SetDefault("gateway.read_header_timeout", 10*time.Second)
	v.SetDefault("gateway.stream_write_timeout", 5*time.Second)
	v.SetDefault("gateway.swagger", false)

	v.SetDefault("etcd.endpoints", []string{})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("etcd.lease_ttl", 30)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.user_ttl", 30*time.Minute)

	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.username", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "food_del")
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("mysql.max_open_conns", 20)

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "food-del")
	v.SetDefault("mongodb.collection", "audit_logs")
	v.SetDefault("mongodb.connect_timeout", 10*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_id", "")
	v.SetDefault("auth.admin_email", "")

	v.SetDefault("payment.stripe_secret_key", "")
	v.SetDefault("payment.stripe_webhook_secret", "")
	v.SetDefault("payment.frontend_url", "http://localhost:5173")
	v.SetDefault("payment.currency", "inr")
	v.SetDefault("payment.delivery_fee", 32)

	v.SetDefault("orders.enforce_amount", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Load reads the YAML file at configPath and overlays FOODORDER_* environment
// variables, e.g. FOODORDER_PAYMENT_STRIPE_SECRET_KEY. An empty path loads
// defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *MySQLConfig) Enabled() bool {
	return c.Host != ""
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func (c *EtcdConfig) Enabled() bool {
	return len(c.Endpoints) > 0
}

func (c *GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AdvertisedHost is the host registered in service discovery. It falls back
// to the bind host, or the machine hostname when bound to a wildcard.
func (c *ServerConfig) AdvertisedHost() string {
	if c.AdvertiseHost != "" {
		return c.AdvertiseHost
	}
	switch c.Host {
	case "", "0.0.0.0", "::", "[::]":
		if h, err := os.Hostname(); err == nil && h != "" {
			return h
		}
		return "localhost"
	}
	return c.Host
}
