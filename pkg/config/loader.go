package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.connectionLimit.maxPerIP", 8)
	v.SetDefault("transport.readTimeout", "90s")
	v.SetDefault("transport.pingInterval", "30s")
	v.SetDefault("transport.pingTimeout", "30s")
	v.SetDefault("room.maxPlayers", 4)
	v.SetDefault("party.maxSize", 4)
	v.SetDefault("plaza.enabled", true)
	v.SetDefault("plaza.roomID", "plaza")
	v.SetDefault("plaza.maxPlayers", 100)
	v.SetDefault("plaza.statePath", "plaza_state.json")
	v.SetDefault("plaza.resetInterval", "168h")
	v.SetDefault("world.statePath", "")
	v.SetDefault("log.level", "info")

	// 2. Set config file details
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".") // look for config in the working directory

	// 3. Set up environment variable handling
	v.SetEnvPrefix("HYPERNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	// 5. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
