package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kestrelworks/agentrelay/internal/logx"
	"github.com/kestrelworks/agentrelay/internal/metrics"
	"github.com/kestrelworks/agentrelay/internal/ndjson"
	"github.com/kestrelworks/agentrelay/internal/relay"
)

// StreamHandler handles POST /api/agent/stream. The response is one JSON
// object per line; every line after the first is delivered on a committed
// 200, so upstream failures surface as in-band error frames.
func StreamHandler(tr *relay.Translator, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON in request body")
			return
		}
		req, err := relay.Normalize(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		reqID := chiMiddleware.GetReqID(r.Context())
		logx.Log.Info().
			Str("request_id", reqID).
			Str("agent_id", req.AgentID).
			Str("session_id", req.SessionID).
			Int("input_length", len(req.InputText)).
			Msg("agent stream starting")

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		enc := ndjson.NewEncoder(w)
		metrics.StreamStarted()
		start := time.Now()
		outcome := metrics.OutcomeCompleted
		frames := 0
		sawTerminal := false

		s := tr.Stream(ctx, req)
		for frame := range s.Frames() {
			if err := enc.Encode(frame); err != nil {
				logx.Log.Warn().Err(err).Str("request_id", reqID).Msg("client write failed")
				break
			}
			frames++
			metrics.RecordFrame(frame.Type)
			if frame.Done {
				sawTerminal = true
				if frame.Type == relay.FrameError {
					outcome = metrics.OutcomeError
				}
			}
		}
		if !sawTerminal {
			outcome = metrics.OutcomeCancelled
		}
		metrics.StreamEnded(outcome, time.Since(start))

		logx.Log.Info().
			Str("request_id", reqID).
			Str("session_id", req.SessionID).
			Str("outcome", outcome).
			Int("frames", frames).
			Dur("duration", time.Since(start)).
			Msg("agent stream finished")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
