package config

import (
	"fmt"
)

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.IPSC.ListenPort <= 0 || cfg.IPSC.ListenPort > 65535 {
		return fmt.Errorf("ipsc.listen_port must be between 1 and 65535")
	}
	if cfg.IPSC.EchoID > 0xffffff {
		return fmt.Errorf("ipsc.echo_id must be a 24-bit DMR ID")
	}
	if cfg.IPSC.DefaultDMRID > 0xffffff {
		return fmt.Errorf("ipsc.default_dmr_id must be a 24-bit DMR ID")
	}

	if cfg.SMS.SendRetryIntervalSec <= 0 {
		return fmt.Errorf("sms.send_retry_interval_sec must be positive")
	}
	if cfg.SMS.SendMaxRetryCount <= 0 {
		return fmt.Errorf("sms.send_max_retry_count must be positive")
	}

	if cfg.Repeaters.InactiveTimeoutSec <= 0 {
		return fmt.Errorf("repeaters.inactive_timeout_sec must be positive")
	}
	if cfg.Repeaters.CallTimeoutSec <= 0 {
		return fmt.Errorf("repeaters.call_timeout_sec must be positive")
	}
	if cfg.Repeaters.DataTimeoutSec <= 0 {
		return fmt.Errorf("repeaters.data_timeout_sec must be positive")
	}

	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	for name, stream := range cfg.VoiceStreams {
		if !stream.Enabled {
			continue
		}
		if stream.RepeaterHost == "" {
			return fmt.Errorf("voicestream %s: repeater_host is required", name)
		}
		if stream.Timeslot != 1 && stream.Timeslot != 2 {
			return fmt.Errorf("voicestream %s: timeslot must be 1 or 2", name)
		}
	}

	return nil
}
