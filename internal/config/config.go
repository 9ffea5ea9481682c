package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port       string
		LogLevel   string
		LogFormat  string // json | console
		PublicURL  string
		TrustProxy bool
	}
	Store struct {
		Backend         string // fs | redis
		DataDir         string
		SerializeWrites bool
		LockTimeout     time.Duration
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
	Auth struct {
		AllowClaim bool
	}
	GC struct {
		OneIn              int
		RoomRetention      time.Duration
		RateLimitRetention time.Duration
	}
}

// Load reads defaults and environment. Durations accept Go syntax ("168h")
// or whole days ("14d"); anything else is an error rather than zero.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("store.backend", "fs")
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("store.serialize_writes", true)
	v.SetDefault("store.lock_timeout", "50ms")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "timepon")

	v.SetDefault("auth.allow_claim", false)

	v.SetDefault("gc.one_in", 50)
	v.SetDefault("gc.room_retention", "168h")
	v.SetDefault("gc.ratelimit_retention", "168h")

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.log_format", "LOG_FORMAT")
	v.BindEnv("server.public_url", "TIMEPON_PUBLIC_URL")
	v.BindEnv("server.trust_proxy", "TIMEPON_TRUST_PROXY")

	v.BindEnv("store.backend", "TIMEPON_STORE")
	v.BindEnv("store.data_dir", "TIMEPON_DATA_DIR")
	v.BindEnv("store.serialize_writes", "TIMEPON_SERIALIZE_WRITES")
	v.BindEnv("store.lock_timeout", "TIMEPON_LOCK_TIMEOUT")

	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.prefix", "REDIS_PREFIX")

	v.BindEnv("auth.allow_claim", "TIMEPON_ALLOW_CLAIM")

	v.BindEnv("gc.one_in", "TIMEPON_GC_ONE_IN")
	v.BindEnv("gc.room_retention", "TIMEPON_ROOM_RETENTION")
	v.BindEnv("gc.ratelimit_retention", "TIMEPON_RATELIMIT_RETENTION")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.LogFormat = strings.ToLower(v.GetString("server.log_format"))
	c.Server.PublicURL = strings.TrimRight(v.GetString("server.public_url"), "/")
	c.Server.TrustProxy = v.GetBool("server.trust_proxy")

	c.Store.Backend = strings.ToLower(v.GetString("store.backend"))
	c.Store.DataDir = v.GetString("store.data_dir")
	c.Store.SerializeWrites = v.GetBool("store.serialize_writes")

	c.Redis.Addr = v.GetString("redis.addr")
	c.Redis.Password = v.GetString("redis.password")
	c.Redis.DB = v.GetInt("redis.db")
	c.Redis.Prefix = v.GetString("redis.prefix")

	c.Auth.AllowClaim = v.GetBool("auth.allow_claim")

	c.GC.OneIn = v.GetInt("gc.one_in")

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"store.lock_timeout", &c.Store.LockTimeout},
		{"gc.room_retention", &c.GC.RoomRetention},
		{"gc.ratelimit_retention", &c.GC.RateLimitRetention},
	}
	for _, d := range durations {
		parsed, err := parseDuration(v.GetString(d.key))
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	log.Info().
		Str("port", c.Server.Port).
		Str("store", c.Store.Backend).
		Bool("allow_claim", c.Auth.AllowClaim).
		Dur("room_retention", c.GC.RoomRetention).
		Msg("config loaded")
	return c, nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

func toString(v any) string { return fmt.Sprint(v) }
