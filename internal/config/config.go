package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`

	CookieSecret string `mapstructure:"cookie_secret"`
	TokenSecret  string `mapstructure:"token_secret"`

	StoreDSN string `mapstructure:"store_dsn"`

	SignalLimit   int           `mapstructure:"signal_limit"`
	SignalWindow  time.Duration `mapstructure:"signal_window"`
	ConnectLimit  int           `mapstructure:"connect_limit"`
	ConnectWindow time.Duration `mapstructure:"connect_window"`

	STUNURLs []string `mapstructure:"stun_urls"`
	TURNURL  string   `mapstructure:"turn_url"`
	TURNUser string   `mapstructure:"turn_user"`
	TURNPass string   `mapstructure:"turn_pass"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("store_dsn", "./meetlive.db")
	v.SetDefault("signal_limit", 30)
	v.SetDefault("signal_window", "1s")
	v.SetDefault("connect_limit", 10)
	v.SetDefault("connect_window", "1m")
	v.SetDefault("stun_urls", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// ICEServers builds the client-facing ICE list. TURN entries without
// complete credentials are dropped since browsers reject them.
func (c *Config) ICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, 2)
	if len(c.STUNURLs) > 0 {
		out = append(out, webrtc.ICEServer{URLs: c.STUNURLs})
	}
	if c.TURNURL != "" && c.TURNUser != "" && c.TURNPass != "" {
		out = append(out, webrtc.ICEServer{
			URLs:       []string{c.TURNURL},
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return out
}
