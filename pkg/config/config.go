package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Logging      LoggingConfig                `mapstructure:"logging"`
	IPSC         IPSCConfig                   `mapstructure:"ipsc"`
	SMS          SMSConfig                    `mapstructure:"sms"`
	Repeaters    RepeatersConfig              `mapstructure:"repeaters"`
	VoiceStreams map[string]VoiceStreamConfig `mapstructure:"voicestreams"`
	Web          WebConfig                    `mapstructure:"web"`
	Database     DatabaseConfig               `mapstructure:"database"`
	RadioID      RadioIDConfig                `mapstructure:"radioid"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	DMR       bool   `mapstructure:"dmr"`       // DMR traffic chatter
	Repeaters bool   `mapstructure:"repeaters"` // registry and TX buffer chatter
}

// IPSCConfig holds the listener and identity settings
type IPSCConfig struct {
	ListenHost   string `mapstructure:"listen_host"`
	ListenPort   int    `mapstructure:"listen_port"`
	EchoID       uint32 `mapstructure:"echo_id"`        // group ID triggering echo playback
	DefaultDMRID uint32 `mapstructure:"default_dmr_id"` // our ID for injected traffic
}

// SMSConfig holds the SMS send queue knobs
type SMSConfig struct {
	SendRetryIntervalSec int `mapstructure:"send_retry_interval_sec"`
	SendMaxRetryCount    int `mapstructure:"send_max_retry_count"`
}

// RepeatersConfig holds the registry timing knobs
type RepeatersConfig struct {
	InactiveTimeoutSec     int    `mapstructure:"inactive_timeout_sec"`
	InfoUpdateIntervalSec  int    `mapstructure:"info_update_interval_sec"`
	CallTimeoutSec         int    `mapstructure:"call_timeout_sec"`
	DataTimeoutSec         int    `mapstructure:"data_timeout_sec"`
	RSSIUpdateDuringCallMS int    `mapstructure:"rssi_update_during_call_ms"`
	IgnoredSNMPHosts       string `mapstructure:"ignored_snmp_hosts"` // comma-separated
	PreloadHosts           string `mapstructure:"preload_hosts"`      // comma-separated, registered at startup
}

// VoiceStreamConfig defines one named voice stream sink
type VoiceStreamConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	RepeaterHost string `mapstructure:"repeater_host"`
	Timeslot     int    `mapstructure:"timeslot"` // 1 or 2
	SaveDir      string `mapstructure:"save_dir"`
}

// WebConfig holds the status surface configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// DatabaseConfig holds the call/SMS log database configuration
type DatabaseConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"` // 0 keeps history forever
}

// RadioIDConfig holds the DMR ID directory configuration
type RadioIDConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // CSV file with id,callsign pairs
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/dmrshark")
	}

	viper.SetEnvPrefix("DMRSHARK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.dmr", false)
	viper.SetDefault("logging.repeaters", false)

	viper.SetDefault("ipsc.listen_host", "0.0.0.0")
	viper.SetDefault("ipsc.listen_port", 62006)
	viper.SetDefault("ipsc.echo_id", 9990)
	viper.SetDefault("ipsc.default_dmr_id", 7777)

	viper.SetDefault("sms.send_retry_interval_sec", 30)
	viper.SetDefault("sms.send_max_retry_count", 3)

	viper.SetDefault("repeaters.inactive_timeout_sec", 300)
	viper.SetDefault("repeaters.info_update_interval_sec", 300)
	viper.SetDefault("repeaters.call_timeout_sec", 1)
	viper.SetDefault("repeaters.data_timeout_sec", 6)
	viper.SetDefault("repeaters.rssi_update_during_call_ms", 500)

	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.path", "data/dmrshark.db")
	viper.SetDefault("database.retention_days", 90)

	viper.SetDefault("radioid.enabled", false)
	viper.SetDefault("radioid.path", "data/dmr-ids.csv")
}
