package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "STATUSLED_"

func env(name string) string { return os.Getenv(EnvPrefix + name) }

// ApplyEnvConfig applies configuration from environment variables (STATUSLED_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("output", env("OUTPUT"), &cfg.Output)
	s.setString("pin-red", env("PIN_RED"), &cfg.PinRed)
	s.setString("pin-green", env("PIN_GREEN"), &cfg.PinGreen)
	s.setString("pin-blue", env("PIN_BLUE"), &cfg.PinBlue)
	s.setString("serial-port", env("SERIAL_PORT"), &cfg.SerialPort)
	s.setString("parity", env("PARITY"), &cfg.Parity)

	if err := s.setDuration("tick", env("TICK"), &cfg.TickInterval); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", env("READ_TIMEOUT"), &cfg.ReadTimeout); err != nil {
		return err
	}

	ints := []struct {
		flag, name string
		dst        *int
	}{
		{"capacity", "CAPACITY", &cfg.Capacity},
		{"pwm-frequency", "PWM_FREQUENCY", &cfg.PWMFrequency},
		{"baud", "BAUD", &cfg.BaudRate},
		{"data-bits", "DATA_BITS", &cfg.DataBits},
		{"stop-bits", "STOP_BITS", &cfg.StopBits},
		{"bus-queue", "BUS_QUEUE", &cfg.BusQueue},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, env(i.name), i.dst); err != nil {
			return err
		}
	}

	s.setBoolFromString("active-low", env("ACTIVE_LOW"), &cfg.ActiveLow)
	s.setBoolFromString("log-forward", env("LOG_FORWARD"), &cfg.LogForward)
	s.setBoolFromString("rts", env("RTS"), &cfg.FlowControlRTS)
	s.setBoolFromString("cts", env("CTS"), &cfg.FlowControlCTS)
	s.setBoolFromString("watch", env("WATCH"), &cfg.Watch)
	s.setBoolFromString("demo", env("DEMO"), &cfg.Demo)

	return nil
}
