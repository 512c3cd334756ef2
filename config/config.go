package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Game     GameConfig     `mapstructure:"game"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminAllowIPs restricts admin routes to these addresses or CIDR ranges.
	AdminAllowIPs []string `mapstructure:"admin_allow_ips"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type GameConfig struct {
	CreaturesPerPlayer int           `mapstructure:"creatures_per_player"`
	RosterRulesPath    string        `mapstructure:"roster_rules_path"` // empty = built-in rules
	TeamSubmitTTL      time.Duration `mapstructure:"team_submit_ttl"`
	MatchIdleTimeout   time.Duration `mapstructure:"match_idle_timeout"`
	ReapInterval       time.Duration `mapstructure:"reap_interval"`
	RNGSeed            int64         `mapstructure:"rng_seed"` // 0 = seeded from time
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// WSMessageRPS limits inbound packets per WebSocket connection.
	WSMessageRPS   float64 `mapstructure:"ws_message_rps"`
	WSMessageBurst int     `mapstructure:"ws_message_burst"`
	// AllowedOrigins lists the WebSocket origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from the given YAML file path. Every key can be
// overridden from the environment, e.g. CRAYON_SECURITY_JWT_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("crayon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 5002)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("game.creatures_per_player", 3)
	v.SetDefault("game.roster_rules_path", "")
	v.SetDefault("game.team_submit_ttl", "10m")
	v.SetDefault("game.match_idle_timeout", "30m")
	v.SetDefault("game.reap_interval", "1m")
	v.SetDefault("game.rng_seed", 0)
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("security.ws_message_rps", 20)
	v.SetDefault("security.ws_message_burst", 40)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
