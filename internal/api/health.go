package api

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/kestrelworks/agentrelay/internal/agent"
)

const serviceName = "agentrelay"

const credentialCheckTimeout = 5 * time.Second

type healthDetails struct {
	AgentClient     string  `json:"agent_client"`
	AWSRegion       string  `json:"aws_region"`
	GoVersion       string  `json:"go_version"`
	AWSAccount      string  `json:"aws_account,omitempty"`
	CredentialError string  `json:"credential_error,omitempty"`
	Error           string  `json:"error,omitempty"`
	ProcessRSSBytes uint64  `json:"process_rss_bytes,omitempty"`
	UptimeSeconds   float64 `json:"uptime_seconds,omitempty"`
}

type healthResponse struct {
	Status    string        `json:"status"`
	Service   string        `json:"service"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version"`
	Details   healthDetails `json:"details"`
}

// HealthHandler handles GET /health. A nil checker means the upstream agent
// client never initialized; the endpoint then reports degraded with 503 so
// load balancers rotate the instance out.
func HealthHandler(version, region string, checker agent.CredentialChecker) http.HandlerFunc {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:    "healthy",
			Service:   serviceName,
			Timestamp: time.Now().UTC(),
			Version:   version,
			Details: healthDetails{
				AgentClient: "not_initialized",
				AWSRegion:   region,
				GoVersion:   runtime.Version(),
			},
		}
		if proc != nil {
			if mem, err := proc.MemoryInfo(); err == nil {
				resp.Details.ProcessRSSBytes = mem.RSS
			}
			if created, err := proc.CreateTime(); err == nil {
				resp.Details.UptimeSeconds = time.Since(time.UnixMilli(created)).Seconds()
			}
		}

		status := http.StatusOK
		if checker == nil {
			resp.Status = "degraded"
			resp.Details.Error = "agent runtime client is not initialized"
			status = http.StatusServiceUnavailable
		} else {
			resp.Details.AgentClient = "initialized"
			ctx, cancel := context.WithTimeout(r.Context(), credentialCheckTimeout)
			defer cancel()
			if id, err := checker.Check(ctx); err != nil {
				resp.Status = "degraded"
				resp.Details.CredentialError = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				resp.Details.AWSAccount = id.Account
			}
		}
		writeJSON(w, status, resp)
	}
}

// RootHandler handles GET / with service metadata for probes and humans.
func RootHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": serviceName,
			"version": version,
			"endpoints": map[string]string{
				"stream":  "POST /api/agent/stream",
				"health":  "GET /health",
				"metrics": "GET /metrics",
			},
			"timestamp": time.Now().UTC(),
		})
	}
}
