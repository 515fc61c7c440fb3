package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	var c ServerConfig
	c.SetDefaults()
	if c.Port != 8000 {
		t.Fatalf("port: %d", c.Port)
	}
	if c.MetricsAddr != ":8000" {
		t.Fatalf("metrics addr: %q", c.MetricsAddr)
	}
	if c.AWSRegion != "us-east-1" {
		t.Fatalf("region: %q", c.AWSRegion)
	}
	if c.DebugMode {
		t.Fatalf("debug mode should default off")
	}
	if !c.TraceLog {
		t.Fatalf("trace log should default on")
	}
	if c.FrameDelay != 10*time.Millisecond {
		t.Fatalf("frame delay: %v", c.FrameDelay)
	}
	if c.LogLevel != "info" {
		t.Fatalf("log level: %q", c.LogLevel)
	}
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("AWS_REGION", "eu-west-3")
	t.Setenv("DEBUG_MODE", "yes")
	t.Setenv("TRACE_LOG", "off")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FRAME_DELAY", "0s")
	t.Setenv("REQUEST_TIMEOUT", "2.5")
	t.Setenv("METRICS_PORT", "9090")

	var c ServerConfig
	c.SetDefaults()
	c.ApplyEnv()

	if c.Port != 9100 {
		t.Fatalf("port: %d", c.Port)
	}
	if c.AWSRegion != "eu-west-3" {
		t.Fatalf("region: %q", c.AWSRegion)
	}
	if !c.DebugMode {
		t.Fatalf("debug mode should be on")
	}
	if c.TraceLog {
		t.Fatalf("trace log should be off")
	}
	if len(c.AllowedOrigins) != 2 || c.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins: %v", c.AllowedOrigins)
	}
	if c.FrameDelay != 0 {
		t.Fatalf("frame delay: %v", c.FrameDelay)
	}
	if c.RequestTimeout != 2500*time.Millisecond {
		t.Fatalf("request timeout: %v", c.RequestTimeout)
	}
	if c.MetricsAddr != ":9090" {
		t.Fatalf("metrics addr: %q", c.MetricsAddr)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	data := "port: 9200\naws_region: ca-central-1\ndebug_mode: true\nallowed_origins:\n  - https://file.example\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AWS_REGION", "us-west-2")

	var c ServerConfig
	c.SetDefaults()
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("load file: %v", err)
	}
	c.ApplyEnv()

	if c.Port != 9200 {
		t.Fatalf("port from file: %d", c.Port)
	}
	if c.AWSRegion != "us-west-2" {
		t.Fatalf("env should override file: %q", c.AWSRegion)
	}
	if !c.DebugMode {
		t.Fatalf("debug mode from file should hold")
	}
	if len(c.AllowedOrigins) != 1 || c.AllowedOrigins[0] != "https://file.example" {
		t.Fatalf("origins: %v", c.AllowedOrigins)
	}
}

func TestBindFlagsFromCurrent(t *testing.T) {
	var c ServerConfig
	c.SetDefaults()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlagsFromCurrent(fs)
	args := []string{
		"--port", "9300",
		"--debug",
		"--allowed-origins", "https://flag.example",
		"--request-timeout", "30",
		"--drain-timeout", "15s",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Port != 9300 {
		t.Fatalf("port: %d", c.Port)
	}
	if !c.DebugMode {
		t.Fatalf("debug flag")
	}
	if len(c.AllowedOrigins) != 1 || c.AllowedOrigins[0] != "https://flag.example" {
		t.Fatalf("origins: %v", c.AllowedOrigins)
	}
	if c.RequestTimeout != 30*time.Second {
		t.Fatalf("request timeout: %v", c.RequestTimeout)
	}
	if c.DrainTimeout != 15*time.Second {
		t.Fatalf("drain timeout: %v", c.DrainTimeout)
	}
}

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name        string
		goos        string
		home        string
		programData string
		want        string
	}{
		{name: "linux", goos: "linux", home: "/home/user", want: "/etc/agentrelay/server.yaml"},
		{name: "darwin", goos: "darwin", home: "/Users/test", want: "/Users/test/Library/Application Support/agentrelay/server.yaml"},
		{name: "windows", goos: "windows", programData: "C:\\ProgramData", want: "C:/ProgramData/agentrelay/server.yaml"},
		{name: "windows default ProgramData", goos: "windows", want: "C:/ProgramData/agentrelay/server.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveConfigPath(tt.goos, tt.home, tt.programData, "server.yaml")
			got = strings.ReplaceAll(got, "\\", "/")
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
