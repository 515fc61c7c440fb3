package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the agentrelay server. It is resolved
// once at startup (defaults, then config file, then environment, then flags)
// and treated as immutable afterwards.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	MetricsAddr    string        `yaml:"metrics_port"`
	LogLevel       string        `yaml:"log_level"`
	AWSRegion      string        `yaml:"aws_region"`
	DebugMode      bool          `yaml:"debug_mode"`
	TraceLog       bool          `yaml:"trace_log"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	FrameDelay     time.Duration `yaml:"frame_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
	ConfigFile     string        `yaml:"-"`
}

// SetDefaults initializes c with built-in defaults.
func (c *ServerConfig) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	if c.AWSRegion == "" {
		c.AWSRegion = "us-east-1"
	}
	c.TraceLog = true
	if c.FrameDelay == 0 {
		c.FrameDelay = 10 * time.Millisecond
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 5 * time.Minute
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = time.Minute
	}
	if c.ConfigFile == "" {
		c.ConfigFile = DefaultConfigPath("server.yaml")
	}
}

// ApplyEnv overlays environment variables onto the current config values.
func (c *ServerConfig) ApplyEnv() {
	if v := os.Getenv("CONFIG_FILE"); v != "" {
		c.ConfigFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if strings.Contains(v, ":") {
			c.MetricsAddr = v
		} else {
			c.MetricsAddr = ":" + v
		}
	} else if c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.AWSRegion = v
	}
	if v := os.Getenv("DEBUG_MODE"); v != "" {
		if b, ok := parseBool(v); ok {
			c.DebugMode = b
		}
	}
	if v := os.Getenv("TRACE_LOG"); v != "" {
		if b, ok := parseBool(v); ok {
			c.TraceLog = b
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
	if v := os.Getenv("FRAME_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.FrameDelay = d
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RequestTimeout = time.Duration(f * float64(time.Second))
		}
	}
	if v := os.Getenv("DRAIN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DrainTimeout = d
		}
	}
}

// BindFlagsFromCurrent binds command line flags using the current config values as defaults.
func (c *ServerConfig) BindFlagsFromCurrent(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "server config file path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	fs.IntVar(&c.Port, "port", c.Port, "HTTP listen port for the public API")
	fs.StringVar(&c.MetricsAddr, "metrics-port", c.MetricsAddr, "Prometheus metrics listen address or port; defaults to the value of --port")
	fs.StringVar(&c.AWSRegion, "aws-region", c.AWSRegion, "AWS region for the Bedrock agent runtime")
	fs.BoolVar(&c.DebugMode, "debug", c.DebugMode, "forward agent trace events to clients")
	fs.BoolVar(&c.TraceLog, "trace-log", c.TraceLog, "log agent trace events at debug level")
	fs.Func("allowed-origins", "comma separated list of allowed CORS origins", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
	fs.DurationVar(&c.FrameDelay, "frame-delay", c.FrameDelay, "pause between relayed stream events")
	fs.Func("request-timeout", "stream request timeout in seconds", func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.RequestTimeout = time.Duration(f * float64(time.Second))
		return nil
	})
	fs.DurationVar(&c.DrainTimeout, "drain-timeout", c.DrainTimeout, "time to wait for in-flight streams on shutdown (0 to exit immediately)")
}

// LoadFile populates the config from a YAML file.
func (c *ServerConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

func splitComma(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, true
	case "0", "f", "false", "n", "no", "off":
		return false, true
	}
	return false, false
}
