package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelworks/agentrelay/internal/agent"
	"github.com/kestrelworks/agentrelay/internal/config"
	"github.com/kestrelworks/agentrelay/internal/inflight"
	"github.com/kestrelworks/agentrelay/internal/logx"
	"github.com/kestrelworks/agentrelay/internal/metrics"
	"github.com/kestrelworks/agentrelay/internal/relay"
	"github.com/kestrelworks/agentrelay/internal/secret"
	"github.com/kestrelworks/agentrelay/internal/server"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.ServerConfig
	// Resolve config with precedence: defaults < file < env < args
	cfg.SetDefaults()
	cfg.ApplyEnv() // allows CONFIG_FILE from env
	// Allow --config to override file path before loading it
	for i := 1; i < len(os.Args); i++ {
		a := os.Args[i]
		if a == "--config" && i+1 < len(os.Args) {
			cfg.ConfigFile = os.Args[i+1]
			break
		}
		if strings.HasPrefix(a, "--config=") {
			cfg.ConfigFile = strings.TrimPrefix(a, "--config=")
			break
		}
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	cfg.ApplyEnv()
	cfg.BindFlagsFromCurrent(flag.CommandLine)
	flag.Parse()
	if *showVersion {
		fmt.Printf("agentrelay version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	logx.Configure(cfg.LogLevel)
	// Collectors are registered in server.New
	metrics.SetServerBuildInfo(version, buildSHA, buildDate)

	// An AWS init failure leaves the relay running with degraded health so
	// the platform can surface the misconfiguration instead of crash-looping.
	var (
		translator *relay.Translator
		checker    agent.CredentialChecker
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logx.Log.Error().Err(err).Msg("load aws config; starting degraded")
		translator = relay.New(nil, relayConfig(cfg))
	} else {
		client, err := agent.New(bedrockagentruntime.NewFromConfig(awsCfg), cfg.AWSRegion)
		if err != nil {
			logx.Log.Error().Err(err).Msg("init agent client; starting degraded")
			translator = relay.New(nil, relayConfig(cfg))
		} else {
			translator = relay.New(client, relayConfig(cfg))
			checker = agent.NewSTSChecker(sts.NewFromConfig(awsCfg))
			go probeCredentials(checker)
		}
	}

	streams := &inflight.Counter{}
	handler := server.New(cfg, translator, checker, version, streams)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: handler}
	var metricsSrv *http.Server
	if cfg.MetricsAddr != fmt.Sprintf(":%d", cfg.Port) {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	}

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer close(done)
		<-sigCh
		if cfg.DrainTimeout == 0 {
			logx.Log.Warn().Msg("termination requested")
			_ = srv.Close()
			if metricsSrv != nil {
				_ = metricsSrv.Close()
			}
			return
		}
		logx.Log.Info().Int64("inflight", streams.Load()).Dur("timeout", cfg.DrainTimeout).Msg("shutdown requested; draining in-flight streams")

		go func() {
			<-sigCh
			logx.Log.Warn().Msg("termination requested")
			_ = srv.Close()
		}()
		go func() {
			drainCtx := context.Background()
			if cfg.DrainTimeout > 0 {
				var stop context.CancelFunc
				drainCtx, stop = context.WithTimeout(drainCtx, cfg.DrainTimeout)
				defer stop()
			}
			if streams.WaitForZero(drainCtx) {
				logx.Log.Info().Msg("drain complete")
				return
			}
			logx.Log.Warn().Int64("inflight", streams.Load()).Msg("drain timeout exceeded; closing connections")
			_ = srv.Close()
		}()

		// Shutdown stops intake immediately and returns once the drained
		// streams finish or Close tears the remainder down.
		if err := srv.Shutdown(context.Background()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Log.Error().Err(err).Msg("server shutdown")
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(context.Background()); err != nil {
				logx.Log.Error().Err(err).Msg("metrics server shutdown")
			}
		}
	}()

	if metricsSrv != nil {
		go func() {
			logx.Log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server starting")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logx.Log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}
	logx.Log.Info().Int("port", cfg.Port).Str("region", cfg.AWSRegion).Bool("debug", cfg.DebugMode).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Log.Fatal().Err(err).Msg("server error")
	}
	<-done
}

func relayConfig(cfg config.ServerConfig) relay.Config {
	return relay.Config{
		ForwardTrace: cfg.DebugMode,
		LogTrace:     cfg.TraceLog,
		FrameDelay:   cfg.FrameDelay,
	}
}

// probeCredentials verifies AWS credentials once at startup. Failures are
// logged only; the health endpoint keeps reporting the live state.
func probeCredentials(checker agent.CredentialChecker) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := checker.Check(ctx)
	if err != nil {
		logx.Log.Error().Err(err).Msg("aws credential validation failed")
		return
	}
	logx.Log.Info().Str("account", secret.Mask(id.Account)).Str("arn", id.ARN).Msg("aws credentials valid")
}
