// Package config loads the supervisor's JSON-with-comments
// configuration file, applies defaults, and validates the fields that
// have no sane default.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// NodeSpec is one server listed in the configuration's nodes array.
type NodeSpec struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Config is the fully resolved, validated supervisor configuration.
type Config struct {
	Heartbeat        time.Duration
	MaxSyncDelay     time.Duration
	RecoverSyncDelay time.Duration
	ConnectTimeout   time.Duration
	IsSlaveStatement string
	Nodes            []NodeSpec
	LogLevel         string
	LogFile          string
	PIDFile          string
	StatusFile       string
	User             string
	Password         string
	DBName           string
	Triggers         map[string]string
	TriggerTimeout   time.Duration
	AdminAddr        string
}

// defaults mirrors the original's _defaults table. Values are in
// seconds where the field is a duration.
var defaults = struct {
	Heartbeat        int
	MaxSyncDelay     int
	RecoverSyncDelay int
	ConnectTimeout   int
	IsSlaveStatement string
	LogLevel         string
	LogFile          string
	PIDFile          string
	StatusFile       string
	User             string
	TriggerTimeout   int
	AdminAddr        string
}{
	Heartbeat:        60,
	MaxSyncDelay:     120,
	RecoverSyncDelay: 60,
	ConnectTimeout:   60,
	IsSlaveStatement: "SELECT pg_is_in_recovery()",
	LogLevel:         "error",
	LogFile:          "/var/log/pgsentry/pgsentry.log",
	PIDFile:          "/var/run/pgsentry/pgsentry.pid",
	StatusFile:       "/var/run/pgsentry/status.json",
	User:             "nobody",
	TriggerTimeout:   60,
	AdminAddr:        ":9187",
}

// rawConfig is the on-disk shape. Pointer fields distinguish "absent,
// use the default" from "present with the zero value".
type rawConfig struct {
	Heartbeat        *int              `json:"heartbeat"`
	MaxSyncDelay     *int              `json:"max_sync_delay"`
	RecoverSyncDelay *int              `json:"recover_sync_delay"`
	// MinSyncDelay is a deprecated alias for RecoverSyncDelay, carried
	// over from a configuration key that the original project defined
	// but never actually read. It only takes effect when
	// recover_sync_delay is absent.
	MinSyncDelay     *int              `json:"min_sync_delay"`
	ConnectTimeout   *int              `json:"connect_timeout"`
	IsSlaveStatement *string           `json:"is_slave_statement"`
	Nodes            []NodeSpec        `json:"nodes"`
	LogLevel         *string           `json:"log_level"`
	LogFile          *string           `json:"log_file"`
	PIDFile          *string           `json:"pid_file"`
	StatusFile       *string           `json:"status_file"`
	User             *string           `json:"user"`
	Password         string            `json:"password" validate:"required"`
	DBName           string            `json:"dbname" validate:"required"`
	Triggers         map[string]string `json:"triggers"`
	TriggerTimeout   *int              `json:"trigger_timeout"`
	AdminAddr        *string           `json:"admin_addr"`
}

// Load reads and parses the configuration file at path, applying
// defaults and validating required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = stripComments(data)

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	// user has a default (defaults.User) and so, like the original
	// loader, can never actually trigger a required-key error: the
	// default is filled in before a required check could see it
	// missing. Only dbname and password carry a required tag.
	if err := validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, &RequiredKeyError{Key: rawJSONKey(verrs[0].Field())}
		}
		return nil, err
	}

	cfg := &Config{
		Heartbeat:        seconds(raw.Heartbeat, defaults.Heartbeat),
		MaxSyncDelay:     seconds(raw.MaxSyncDelay, defaults.MaxSyncDelay),
		RecoverSyncDelay: recoverDelay(raw),
		ConnectTimeout:   seconds(raw.ConnectTimeout, defaults.ConnectTimeout),
		IsSlaveStatement: str(raw.IsSlaveStatement, defaults.IsSlaveStatement),
		Nodes:            raw.Nodes,
		LogLevel:         str(raw.LogLevel, defaults.LogLevel),
		LogFile:          str(raw.LogFile, defaults.LogFile),
		PIDFile:          str(raw.PIDFile, defaults.PIDFile),
		StatusFile:       str(raw.StatusFile, defaults.StatusFile),
		User:             str(raw.User, defaults.User),
		Password:         raw.Password,
		DBName:           raw.DBName,
		Triggers:         raw.Triggers,
		TriggerTimeout:   seconds(raw.TriggerTimeout, defaults.TriggerTimeout),
		AdminAddr:        str(raw.AdminAddr, defaults.AdminAddr),
	}
	if cfg.Triggers == nil {
		cfg.Triggers = map[string]string{}
	}

	return cfg, nil
}

// rawJSONKey maps a rawConfig field name reported by a validation
// failure back to its on-disk JSON key.
func rawJSONKey(field string) string {
	switch field {
	case "DBName":
		return "dbname"
	case "Password":
		return "password"
	default:
		return strings.ToLower(field)
	}
}

// recoverDelay resolves recover_sync_delay, falling back to the
// deprecated min_sync_delay key, then to the default.
func recoverDelay(raw rawConfig) time.Duration {
	if raw.RecoverSyncDelay != nil {
		return time.Duration(*raw.RecoverSyncDelay) * time.Second
	}
	if raw.MinSyncDelay != nil {
		return time.Duration(*raw.MinSyncDelay) * time.Second
	}
	return time.Duration(defaults.RecoverSyncDelay) * time.Second
}

func seconds(v *int, fallback int) time.Duration {
	if v != nil {
		return time.Duration(*v) * time.Second
	}
	return time.Duration(fallback) * time.Second
}

func str(v *string, fallback string) string {
	if v != nil {
		return *v
	}
	return fallback
}
