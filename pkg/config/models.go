package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Room      RoomConfig
	Party     PartyConfig
	Plaza     PlazaConfig
	World     WorldConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address         string
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type ConnectionLimitConfig struct {
	MaxPerIP int `mapstructure:"maxPerIP"` // 0 disables the limiter
}

type TransportConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	PingInterval time.Duration `mapstructure:"pingInterval"`
	PingTimeout  time.Duration `mapstructure:"pingTimeout"`
}

type RoomConfig struct {
	MaxPlayers int `mapstructure:"maxPlayers"`
}

type PartyConfig struct {
	MaxSize int `mapstructure:"maxSize"`
}

type PlazaConfig struct {
	Enabled       bool
	RoomID        string        `mapstructure:"roomID"`
	MaxPlayers    int           `mapstructure:"maxPlayers"`
	StatePath     string        `mapstructure:"statePath"`
	ResetInterval time.Duration `mapstructure:"resetInterval"`
}

type WorldConfig struct {
	// StatePath enables durable global world state when non-empty.
	StatePath string `mapstructure:"statePath"`
}

type LogConfig struct {
	Level string
}
