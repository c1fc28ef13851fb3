package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string   `mapstructure:"mode"`
	Port       int      `mapstructure:"port"`
	LogLevel   string   `mapstructure:"log_level"`
	Secret     string   `mapstructure:"secret"`
	CORSOrigin string   `mapstructure:"cors_origin"`
	ICEServers []string `mapstructure:"ice_servers"`

	Signal     SignalConfig     `mapstructure:"signal"`
	Rooms      RoomsConfig      `mapstructure:"rooms"`
	Room       RoomConfig       `mapstructure:"room"`
	Rejoin     RejoinConfig     `mapstructure:"rejoin"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Translator TranslatorConfig `mapstructure:"translator"`
}

// SignalConfig tunes the WebSocket transport.
type SignalConfig struct {
	ReadLimit       int64         `mapstructure:"read_limit"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	JoinRateLimit   int           `mapstructure:"join_rate_limit"`
	JoinRateWindow  time.Duration `mapstructure:"join_rate_window"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RoomsConfig struct {
	CodeLength     int           `mapstructure:"code_length"`
	CodeAttempts   int           `mapstructure:"code_attempts"`
	MaxRooms       int           `mapstructure:"max_rooms"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	EndedRetention time.Duration `mapstructure:"ended_retention"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type RoomConfig struct {
	MaxHistory       int    `mapstructure:"max_history"`
	MaxMessageLength int    `mapstructure:"max_message_length"`
	MaxNameLength    int    `mapstructure:"max_name_length"`
	HostFailover     string `mapstructure:"host_failover"`
	SystemMessages   bool   `mapstructure:"system_messages"`
}

type RejoinConfig struct {
	GracePeriod        time.Duration `mapstructure:"grace_period"`
	RequireClientToken bool          `mapstructure:"require_client_token"`
}

type AudioConfig struct {
	SameLanguage string `mapstructure:"same_language"`
	MaxInflight  int    `mapstructure:"max_inflight"`
	NotifySender bool   `mapstructure:"notify_sender"`
}

type TranslatorConfig struct {
	Driver  string        `mapstructure:"driver"`
	Timeout time.Duration `mapstructure:"timeout"`
	HTTP    struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"http"`
	NATS struct {
		URL     string `mapstructure:"url"`
		Subject string `mapstructure:"subject"`
	} `mapstructure:"nats"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Queue    string `mapstructure:"queue"`
	} `mapstructure:"redis"`
}

var (
	ErrInvalidPort         = errors.New("port out of range")
	ErrInvalidHostFailover = errors.New("room.host_failover must be keep or promote")
	ErrInvalidSameLanguage = errors.New("audio.same_language must be skip, raw or translate")
	ErrInvalidDriver       = errors.New("translator.driver must be none, echo, http, nats or redis")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "voxbridge-dev-secret")
	v.SetDefault("cors_origin", "*")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("signal.read_limit", 1<<20)
	v.SetDefault("signal.ping_period", "54s")
	v.SetDefault("signal.pong_wait", "60s")
	v.SetDefault("signal.write_wait", "5s")
	v.SetDefault("signal.send_buffer", 64)
	v.SetDefault("signal.join_rate_limit", 10)
	v.SetDefault("signal.join_rate_window", "10s")
	v.SetDefault("signal.shutdown_timeout", "5s")

	v.SetDefault("rooms.code_length", 6)
	v.SetDefault("rooms.code_attempts", 10)
	v.SetDefault("rooms.max_rooms", 10000)
	v.SetDefault("rooms.idle_timeout", "10m")
	v.SetDefault("rooms.ended_retention", "1m")
	v.SetDefault("rooms.sweep_interval", "30s")

	v.SetDefault("room.max_history", 500)
	v.SetDefault("room.max_message_length", 2000)
	v.SetDefault("room.max_name_length", 36)
	v.SetDefault("room.host_failover", "keep")
	v.SetDefault("room.system_messages", true)

	v.SetDefault("rejoin.grace_period", "5m")
	v.SetDefault("rejoin.require_client_token", false)

	v.SetDefault("audio.same_language", "skip")
	v.SetDefault("audio.max_inflight", 32)
	v.SetDefault("audio.notify_sender", true)

	v.SetDefault("translator.driver", "echo")
	v.SetDefault("translator.timeout", "3s")
	v.SetDefault("translator.http.url", "http://localhost:9000/translate")
	v.SetDefault("translator.nats.url", "nats://localhost:4222")
	v.SetDefault("translator.nats.subject", "translation.request")
	v.SetDefault("translator.redis.addr", "localhost:6379")
	v.SetDefault("translator.redis.queue", "voxbridge:translate")
}

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName if it exists, falling back to defaults, then applies
// VOXBRIDGE_* environment overrides.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("voxbridge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("translator", cfg.Translator.Driver).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	switch c.Room.HostFailover {
	case "keep", "promote":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidHostFailover, c.Room.HostFailover)
	}
	switch c.Audio.SameLanguage {
	case "skip", "raw", "translate":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSameLanguage, c.Audio.SameLanguage)
	}
	switch c.Translator.Driver {
	case "none", "echo", "http", "nats", "redis":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDriver, c.Translator.Driver)
	}
	return nil
}
