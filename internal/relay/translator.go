package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/kestrelworks/agentrelay/internal/agent"
	"github.com/kestrelworks/agentrelay/internal/logx"
	"github.com/kestrelworks/agentrelay/internal/metrics"
)

// Invoker starts one upstream agent invocation. Satisfied by *agent.Client.
type Invoker interface {
	Invoke(ctx context.Context, p agent.InvokeParams) (agent.EventStream, error)
}

// Config tunes how a Translator turns upstream events into frames.
type Config struct {
	// ForwardTrace emits trace frames to clients.
	ForwardTrace bool
	// LogTrace logs trace events at debug level even when not forwarding.
	LogTrace bool
	// FrameDelay is the pause inserted after each upstream event.
	FrameDelay time.Duration
}

// Translator turns agent invocations into ordered frame streams. Every
// stream read to completion ends with exactly one done frame; a cancelled
// stream truncates without one.
type Translator struct {
	invoker Invoker
	cfg     Config
}

// New returns a Translator. invoker may be nil when the upstream client
// failed to initialize; streams then carry a single error frame.
func New(invoker Invoker, cfg Config) *Translator {
	return &Translator{invoker: invoker, cfg: cfg}
}

// Stream is one in-flight translation. Frames closes when the stream ends.
type Stream struct {
	frames chan Frame
}

// Frames returns the ordered frame sequence.
func (s *Stream) Frames() <-chan Frame { return s.frames }

// emit delivers one frame, abandoning it when ctx is cancelled.
func (s *Stream) emit(ctx context.Context, f Frame) bool {
	select {
	case s.frames <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stream starts one agent invocation and returns its frame stream.
// Cancelling ctx stops the translation between events.
func (t *Translator) Stream(ctx context.Context, req AgentRequest) *Stream {
	s := &Stream{frames: make(chan Frame, 16)}
	go t.run(ctx, req, s)
	return s
}

func (t *Translator) run(ctx context.Context, req AgentRequest, s *Stream) {
	defer close(s.frames)
	defer func() {
		if r := recover(); r != nil {
			logx.Log.Error().Interface("panic", r).Str("agent_id", req.AgentID).Msg("stream translation panicked")
			s.emit(ctx, ErrorFrame(fmt.Sprintf("internal stream error: %v", r), ""))
		}
	}()

	if t.invoker == nil {
		logx.Log.Error().Str("agent_id", req.AgentID).Msg("agent runtime client is not initialized")
		s.emit(ctx, ErrorFrame("agent runtime client is not initialized", ""))
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	log := logx.Log.With().Str("agent_id", req.AgentID).Str("session_id", sessionID).Logger()

	if !s.emit(ctx, StartFrame(sessionID, req.AgentID)) {
		return
	}

	es, err := t.invoker.Invoke(ctx, agent.InvokeParams{
		AgentID:                 req.AgentID,
		AgentAliasID:            req.AgentAliasID,
		SessionID:               sessionID,
		InputText:               req.InputText,
		SessionAttributes:       req.SessionAttributes,
		PromptSessionAttributes: req.PromptSessionAttributes,
		EnableTrace:             t.cfg.ForwardTrace || t.cfg.LogTrace,
	})
	if err != nil {
		fault := agent.Classify(err)
		log.Error().Err(err).Str("error_code", fault.Code).Msg("agent invocation failed")
		s.emit(ctx, ErrorFrame(fault.Message, fault.Code))
		return
	}
	defer func() { _ = es.Close() }()

	var accumulated strings.Builder
	events := es.Events()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("stream cancelled")
			return
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					log.Debug().Msg("stream cancelled")
					return
				}
				if err := es.Err(); err != nil {
					fault := agent.Classify(err)
					log.Error().Err(err).Str("error_code", fault.Code).Msg("agent stream failed")
					s.emit(ctx, ErrorFrame(fault.Message, fault.Code))
					return
				}
				final := accumulated.String()
				log.Info().Int("final_length", len(final)).Msg("stream complete")
				s.emit(ctx, CompletionFrame(final, sessionID))
				return
			}
			if !t.handleEvent(ctx, log, ev, &accumulated, s) {
				return
			}
			if !sleepCtx(ctx, t.cfg.FrameDelay) {
				log.Debug().Msg("stream cancelled")
				return
			}
		}
	}
}

// handleEvent translates one upstream event. It reports false once ctx is
// cancelled; undecodable or unrecognized events are skipped and the stream
// continues.
func (t *Translator) handleEvent(ctx context.Context, log zerolog.Logger, event agent.Event, accumulated *strings.Builder, s *Stream) bool {
	switch ev := event.(type) {
	case agent.TextEvent:
		delta, ok, err := decodeChunkText(ev.Bytes)
		if err != nil {
			log.Warn().Err(err).Int("payload_length", len(ev.Bytes)).Msg("skipping undecodable chunk")
			metrics.RecordDecodeFailure()
			return true
		}
		if !ok {
			return true
		}
		accumulated.WriteString(delta)
		return s.emit(ctx, ChunkFrame(delta, accumulated.String()))
	case agent.TraceEvent:
		if t.cfg.LogTrace {
			e := log.Debug()
			if len(ev.Data) > 0 {
				e = e.RawJSON("trace", ev.Data)
			}
			e.Msg("agent trace")
		}
		if t.cfg.ForwardTrace {
			return s.emit(ctx, TraceFrame(ev.Data))
		}
		return true
	case agent.ControlEvent:
		log.Info().Msg("agent requested return control")
		return s.emit(ctx, ReturnControlFrame(ev.Data))
	case agent.UnknownEvent:
		log.Debug().Str("event", ev.Tag).Msg("ignoring unrecognized agent event")
		return true
	default:
		return true
	}
}

// decodeChunkText extracts the text delta from one upstream chunk payload.
// The payload is a JSON document whose outputText member carries the delta;
// ok is false when the member is absent.
func decodeChunkText(b []byte) (string, bool, error) {
	if !utf8.Valid(b) {
		return "", false, errors.New("payload is not valid UTF-8")
	}
	var payload struct {
		OutputText *string `json:"outputText"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return "", false, err
	}
	if payload.OutputText == nil {
		return "", false, nil
	}
	return *payload.OutputText, true, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
