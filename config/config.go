package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Address  string `mapstructure:"address"`
		HTTPPort string `mapstructure:"http_port"`
	} `mapstructure:"server"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		File   string `mapstructure:"file"`
	} `mapstructure:"logging"`

	Database struct {
		Driver string `mapstructure:"driver"` // mysql | postgres | "" (без БД)
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	IPAM struct {
		Backend   string        `mapstructure:"backend"` // netbox | pool
		PrefixLen int           `mapstructure:"prefix_len"`
		Timeout   time.Duration `mapstructure:"timeout"`

		Pool struct {
			Root string `mapstructure:"root"` // например 2001:db8::/48
		} `mapstructure:"pool"`

		NetBox struct {
			URL      string `mapstructure:"url"`
			Token    string `mapstructure:"token"`
			ParentID int    `mapstructure:"parent_id"` // префикс, из которого нарезаем
		} `mapstructure:"netbox"`
	} `mapstructure:"ipam"`

	RADIUS struct {
		Secret  string        `mapstructure:"secret"`
		CoAPort int           `mapstructure:"coa_port"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"radius"`
}

// Load — конфиг из файла (path) или strand.yaml в ./ и /etc/strand,
// поверх — переменные окружения STRAND_*.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("ipam.backend", "pool")
	v.SetDefault("ipam.pool.root", "fd00::/48")
	v.SetDefault("ipam.prefix_len", 64)
	v.SetDefault("ipam.timeout", "5s")
	v.SetDefault("radius.coa_port", 3799)
	v.SetDefault("radius.timeout", "3s")

	v.SetEnvPrefix("STRAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("strand")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/strand")
	}
	if err := v.ReadInConfig(); err != nil {
		// файла может не быть — живём на дефолтах и env
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
