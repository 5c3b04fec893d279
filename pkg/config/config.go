package config

import "time"

// Client definition realtime_client YAML structure
type Client struct {
	ServerURL         string        `mapstructure:"server_url"`
	WebsocketURL      string        `mapstructure:"websocket_url"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`

	Dial DialConfig `mapstructure:"dial"`
}

// Relay definition relay_server YAML structure
type Relay struct {
	Port string `mapstructure:"port"`

	// connections whose heartbeat is older than this are reaped
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
}

// DialConfig definition websocket dial retry setting
type DialConfig struct {
	RetryCount    int `mapstructure:"retry_count"`
	RetryInterval int `mapstructure:"retry_interval"`
}
