package config

import (
	"flag"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type GPIO struct {
	Chip string `mapstructure:"chip"`

	// actuators
	RelayPin  *int `mapstructure:"relay"`
	GreenLED  *int `mapstructure:"green_led"`
	YellowLED *int `mapstructure:"yellow_led"`
	BuzzerPin *int `mapstructure:"buzzer"`

	// inputs
	ButtonA  *int `mapstructure:"button_a"`
	ButtonB  *int `mapstructure:"button_b"`
	ButtonSW *int `mapstructure:"button_sw"`

	// ultrasonic ranging
	UltrasonicTrig *int `mapstructure:"ultrasonic_trig"`
	UltrasonicEcho *int `mapstructure:"ultrasonic_echo"`
}

type Potentiometer struct {
	RawPath  string        `mapstructure:"raw_path"` // IIO sysfs channel, e.g. in_voltage2_raw
	Samples  int           `mapstructure:"samples"`
	EmptyRaw int           `mapstructure:"empty_raw"`
	FullRaw  int           `mapstructure:"full_raw"`
	Period   time.Duration `mapstructure:"period"`
}

type Ultrasonic struct {
	Enabled bool          `mapstructure:"enabled"`
	EmptyCM float64       `mapstructure:"empty_cm"`
	FullCM  float64       `mapstructure:"full_cm"`
	Timeout time.Duration `mapstructure:"timeout"`
	Period  time.Duration `mapstructure:"period"`
}

type Pump struct {
	Cooldown       time.Duration `mapstructure:"cooldown"`
	PulseHold      time.Duration `mapstructure:"pulse_hold"`
	QueueDepth     int           `mapstructure:"queue_depth"`
	RelayActiveLow bool          `mapstructure:"relay_active_low"`
}

type Limits struct {
	MinPercent int `mapstructure:"min"`
	MaxPercent int `mapstructure:"max"`
}

type API struct {
	Addr         string `mapstructure:"addr"`
	StrictLimits bool   `mapstructure:"strict_limits"`
}

type Network struct {
	Interface   string        `mapstructure:"interface"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ShowIPDelay time.Duration `mapstructure:"show_ip_delay"`
}

type MQTT struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Prefix   string `mapstructure:"prefix"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Service struct {
	UnitPath       string `mapstructure:"unit_path"`
	BootScriptPath string `mapstructure:"boot_script_path"`
	BootUnitPath   string `mapstructure:"boot_unit_path"`
	User           string `mapstructure:"user"`
	WorkDir        string `mapstructure:"work_dir"`
	ExecPath       string `mapstructure:"exec_path"`
}

type Log struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

type Config struct {
	ConfigFile string
	LogLevel   zerolog.Level

	GPIO          GPIO          `mapstructure:"gpio"`
	Potentiometer Potentiometer `mapstructure:"potentiometer"`
	Ultrasonic    Ultrasonic    `mapstructure:"ultrasonic"`
	Pump          Pump          `mapstructure:"pump"`
	Limits        Limits        `mapstructure:"limits"`
	API           API           `mapstructure:"api"`
	Network       Network       `mapstructure:"network"`
	MQTT          MQTT          `mapstructure:"mqtt"`
	Log           Log           `mapstructure:"log"`
	Service       Service       `mapstructure:"service"`

	DBPath      string `mapstructure:"db_path"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	NtfyTopic   string `mapstructure:"ntfy_topic"`

	EnableDatadog bool     `mapstructure:"enable_datadog"`
	DDAgentAddr   string   `mapstructure:"dd_agent_addr"`
	DDNamespace   string   `mapstructure:"dd_namespace"`
	DDTags        []string `mapstructure:"dd_tags"`
}

func Load() Config {
	var configFile, logLevel string

	flag.StringVar(&configFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := LoadFile(configFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	cfg.LogLevel = parseLogLevel(logLevel)

	cfg.validate()
	return cfg
}

// LoadFile reads path through viper. TANK_* environment variables override
// file values, e.g. TANK_API_ADDR or TANK_PUMP_COOLDOWN.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("tank")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ConfigFile = path
	cfg.LogLevel = zerolog.InfoLevel
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gpio.chip", "gpiochip0")

	v.SetDefault("potentiometer.samples", 20)
	v.SetDefault("potentiometer.empty_raw", 1990)
	v.SetDefault("potentiometer.full_raw", 2240)
	v.SetDefault("potentiometer.period", 100*time.Millisecond)

	v.SetDefault("ultrasonic.enabled", false)
	v.SetDefault("ultrasonic.empty_cm", 28.0)
	v.SetDefault("ultrasonic.full_cm", 15.0)
	v.SetDefault("ultrasonic.timeout", 30*time.Millisecond)
	v.SetDefault("ultrasonic.period", 250*time.Millisecond)

	v.SetDefault("pump.cooldown", 20*time.Second)
	v.SetDefault("pump.pulse_hold", 200*time.Millisecond)
	v.SetDefault("pump.queue_depth", 5)
	v.SetDefault("pump.relay_active_low", true)

	v.SetDefault("limits.min", 20)
	v.SetDefault("limits.max", 50)

	v.SetDefault("api.addr", ":80")
	v.SetDefault("network.interface", "wlan0")
	v.SetDefault("network.timeout", 30*time.Second)
	v.SetDefault("network.show_ip_delay", 2*time.Second)

	v.SetDefault("mqtt.client_id", "tank-controller")
	v.SetDefault("mqtt.prefix", "tank/controller")

	v.SetDefault("log.file", "/var/log/tank-controller.log")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("service.unit_path", "/etc/systemd/system/tank-controller.service")
	v.SetDefault("service.boot_script_path", "/usr/local/bin/tank-gpio-init.sh")
	v.SetDefault("service.boot_unit_path", "/etc/systemd/system/tank-gpio-init.service")
	v.SetDefault("service.user", "pi")
	v.SetDefault("service.work_dir", "/opt/tank-controller")
	v.SetDefault("service.exec_path", "/opt/tank-controller/tank-controller")

	v.SetDefault("db_path", "data/tank.db")
	v.SetDefault("dd_agent_addr", "127.0.0.1:8125")
	v.SetDefault("dd_namespace", "tank.")
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) validate() {
	var (
		missingFields []string
		usedPins      = map[int]string{}
		conflicts     []string
		problems      []string
	)

	required := map[string]bool{"relay": true, "button_a": true}
	if cfg.Ultrasonic.Enabled {
		required["ultrasonic_trig"] = true
		required["ultrasonic_echo"] = true
	}

	v := reflect.ValueOf(cfg.GPIO)
	t := reflect.TypeOf(cfg.GPIO)

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() != reflect.Ptr {
			continue
		}
		fieldName := t.Field(i).Tag.Get("mapstructure")

		if field.IsNil() {
			if required[fieldName] {
				missingFields = append(missingFields, "gpio."+fieldName)
			}
			continue
		}

		pin := field.Elem().Int()
		if other, exists := usedPins[int(pin)]; exists {
			conflicts = append(conflicts, fmt.Sprintf("gpio.%s and gpio.%s both use pin %d", fieldName, other, pin))
		} else {
			usedPins[int(pin)] = fieldName
		}
	}

	if cfg.Limits.MinPercent < 0 || cfg.Limits.MinPercent > 100 || cfg.Limits.MaxPercent < 0 || cfg.Limits.MaxPercent > 100 {
		problems = append(problems, "limits must lie in [0,100]")
	}
	if cfg.Potentiometer.FullRaw == cfg.Potentiometer.EmptyRaw {
		problems = append(problems, "potentiometer empty_raw and full_raw must differ")
	}
	if cfg.Ultrasonic.Enabled && cfg.Ultrasonic.EmptyCM == cfg.Ultrasonic.FullCM {
		problems = append(problems, "ultrasonic empty_cm and full_cm must differ")
	}
	if cfg.Potentiometer.Period <= 0 || cfg.Ultrasonic.Period <= 0 {
		problems = append(problems, "sampling periods must be positive")
	}
	if cfg.Pump.PulseHold <= 0 {
		problems = append(problems, "pump.pulse_hold must be positive")
	}

	if len(missingFields) > 0 {
		panic("Missing required GPIO config fields: " + strings.Join(missingFields, ", "))
	}
	if len(conflicts) > 0 {
		panic("Conflicting GPIO pins: " + strings.Join(conflicts, ", "))
	}
	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, "; "))
	}
}
