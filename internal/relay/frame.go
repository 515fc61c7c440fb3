package relay

import (
	"encoding/json"
	"time"
)

// Frame types emitted on the wire. The set is closed; unrecognized upstream
// events are dropped rather than mapped to new types.
const (
	FrameStart         = "start"
	FrameChunk         = "chunk"
	FrameTrace         = "trace"
	FrameReturnControl = "return_control"
	FrameCompletion    = "completion"
	FrameError         = "error"
)

// Frame is one line of the response stream. Optional fields are omitted
// entirely when unset, never null. Pointer fields distinguish
// present-but-empty from absent where consumers can observe the difference.
type Frame struct {
	Type               string          `json:"type"`
	Content            string          `json:"content"`
	Done               bool            `json:"done"`
	Timestamp          time.Time       `json:"timestamp"`
	AccumulatedContent *string         `json:"accumulated_content,omitempty"`
	FinalContent       *string         `json:"final_content,omitempty"`
	SessionID          string          `json:"session_id,omitempty"`
	AgentID            string          `json:"agent_id,omitempty"`
	TraceData          json.RawMessage `json:"trace_data,omitempty"`
	ReturnControlData  json.RawMessage `json:"return_control_data,omitempty"`
	Error              string          `json:"error,omitempty"`
	ErrorCode          string          `json:"error_code,omitempty"`
}

func newFrame(frameType string) Frame {
	return Frame{Type: frameType, Timestamp: time.Now().UTC()}
}

// StartFrame opens a stream.
func StartFrame(sessionID, agentID string) Frame {
	f := newFrame(FrameStart)
	f.SessionID = sessionID
	f.AgentID = agentID
	return f
}

// ChunkFrame carries one text delta plus the accumulated text so far.
func ChunkFrame(delta, accumulated string) Frame {
	f := newFrame(FrameChunk)
	f.Content = delta
	f.AccumulatedContent = &accumulated
	return f
}

// TraceFrame forwards an opaque trace payload.
func TraceFrame(data json.RawMessage) Frame {
	f := newFrame(FrameTrace)
	f.TraceData = data
	return f
}

// ReturnControlFrame forwards a return-control request payload.
func ReturnControlFrame(data json.RawMessage) Frame {
	f := newFrame(FrameReturnControl)
	f.ReturnControlData = data
	return f
}

// CompletionFrame terminates a successful stream.
func CompletionFrame(finalContent, sessionID string) Frame {
	f := newFrame(FrameCompletion)
	f.Done = true
	f.FinalContent = &finalContent
	f.SessionID = sessionID
	return f
}

// ErrorFrame terminates a failed stream. code may be empty when the failure
// carried no upstream error code.
func ErrorFrame(message, code string) Frame {
	f := newFrame(FrameError)
	f.Done = true
	f.Error = message
	f.ErrorCode = code
	return f
}
