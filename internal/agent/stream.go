package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	batypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// Event is one decoded upstream agent event.
type Event interface {
	isEvent()
}

// TextEvent carries one raw completion payload part. The bytes are the
// upstream's JSON document, decoded later by the stream translator so a bad
// payload can be skipped without dropping the stream.
type TextEvent struct {
	Bytes []byte
}

// TraceEvent carries one diagnostic trace part, re-encoded as JSON at the
// boundary and treated as opaque from then on.
type TraceEvent struct {
	Data json.RawMessage
}

// ControlEvent carries a return-control request payload, re-encoded as JSON
// at the boundary and forwarded verbatim.
type ControlEvent struct {
	Data json.RawMessage
}

// UnknownEvent marks an upstream event shape this build does not handle.
type UnknownEvent struct {
	Tag string
}

func (TextEvent) isEvent()    {}
func (TraceEvent) isEvent()   {}
func (ControlEvent) isEvent() {}
func (UnknownEvent) isEvent() {}

// EventStream is a pull-based sequence of decoded upstream events. The
// Events channel closes when the upstream finishes; Err reports the terminal
// failure, if any, once the channel is closed.
type EventStream interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// eventStream adapts the SDK's InvokeAgent event stream. A pump goroutine
// converts each union member into a local Event so consumers never see SDK
// types.
type eventStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	sdk    *bedrockagentruntime.InvokeAgentEventStream

	events chan Event

	errMu    sync.Mutex
	finalErr error
}

func newEventStream(ctx context.Context, sdk *bedrockagentruntime.InvokeAgentEventStream) *eventStream {
	cctx, cancel := context.WithCancel(ctx)
	es := &eventStream{
		ctx:    cctx,
		cancel: cancel,
		sdk:    sdk,
		events: make(chan Event, 32),
	}
	go es.run()
	return es
}

func (s *eventStream) Events() <-chan Event { return s.events }

func (s *eventStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.finalErr
}

func (s *eventStream) Close() error {
	s.cancel()
	return s.sdk.Close()
}

func (s *eventStream) setErr(err error) {
	s.errMu.Lock()
	if s.finalErr == nil {
		s.finalErr = err
	}
	s.errMu.Unlock()
}

func (s *eventStream) run() {
	defer close(s.events)
	upstream := s.sdk.Events()
	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		case member, ok := <-upstream:
			if !ok {
				if err := s.sdk.Err(); err != nil {
					s.setErr(err)
				}
				return
			}
			select {
			case s.events <- convertMember(member):
			case <-s.ctx.Done():
				s.setErr(s.ctx.Err())
				return
			}
		}
	}
}

func convertMember(member batypes.ResponseStream) Event {
	switch v := member.(type) {
	case *batypes.ResponseStreamMemberChunk:
		return TextEvent{Bytes: v.Value.Bytes}
	case *batypes.ResponseStreamMemberTrace:
		return TraceEvent{Data: rawPayload(v.Value)}
	case *batypes.ResponseStreamMemberReturnControl:
		return ControlEvent{Data: rawPayload(v.Value)}
	case *batypes.UnknownUnionMember:
		return UnknownEvent{Tag: v.Tag}
	default:
		return UnknownEvent{Tag: fmt.Sprintf("%T", member)}
	}
}

// rawPayload re-encodes an SDK payload struct once so downstream consumers
// can forward it without knowing its shape. Unencodable payloads become nil,
// which frames treat as an absent field.
func rawPayload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
