package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authsession/internal/flagx"
	"github.com/dmitrijs2005/authsession/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	Backend            string         `json:"backend"`
	TokenStore         string         `json:"token_store"`
	DatabaseDSN        string         `json:"database_dsn"`
	RedisAddr          string         `json:"redis_addr"`
	TokenPassphrase    string         `json:"token_passphrase"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
	LogLevel           string         `json:"log_level"`
	LogFormat          string         `json:"log_format"`
}

// parseJson overlays cfg with the file named by -c / -config, if any.
// Fields absent from the file keep their current values.
func parseJson(cfg *Config, args []string) error {
	jsonConfigFile := flagx.ConfigFileFlag(args)
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", jsonConfigFile, err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.Backend, jc.Backend)
	setString(&cfg.TokenStore, jc.TokenStore)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	setString(&cfg.TokenPassphrase, jc.TokenPassphrase)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
