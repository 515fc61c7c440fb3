package relay

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
)

func decodeBody(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("test body: %v", err)
	}
	return v
}

func TestNormalizeMinimalRequest(t *testing.T) {
	req, err := Normalize(decodeBody(t, `{"input_text":"  hello  ","agent_id":" AGENT1 "}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.InputText != "hello" {
		t.Fatalf("input text: %q", req.InputText)
	}
	if req.AgentID != "AGENT1" {
		t.Fatalf("agent id: %q", req.AgentID)
	}
	if req.AgentAliasID != DefaultAgentAliasID {
		t.Fatalf("alias: %q", req.AgentAliasID)
	}
	if req.SessionID != "" {
		t.Fatalf("session id should be empty, got %q", req.SessionID)
	}
	if req.SessionAttributes != nil || req.PromptSessionAttributes != nil {
		t.Fatalf("attribute maps should stay nil")
	}
}

func TestNormalizeCollectsAllViolations(t *testing.T) {
	_, err := Normalize(decodeBody(t, `{"input_text":"   ","session_attributes":"nope"}`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Violations) != 3 {
		t.Fatalf("expected 3 violations, got %v", verr.Violations)
	}
	msg := verr.Error()
	if !strings.Contains(msg, "input_text") || !strings.Contains(msg, "agent_id") || !strings.Contains(msg, "session_attributes") {
		t.Fatalf("joined message incomplete: %q", msg)
	}
	if strings.Count(msg, "; ") != 2 {
		t.Fatalf("violations should be joined with semicolons: %q", msg)
	}
}

func TestNormalizeRejectsNonObjectBody(t *testing.T) {
	for _, body := range []string{`[1,2]`, `"text"`, `42`, `null`} {
		_, err := Normalize(decodeBody(t, body))
		if err == nil {
			t.Fatalf("expected error for body %s", body)
		}
		if !strings.Contains(err.Error(), "must be a JSON object") {
			t.Fatalf("unexpected message for %s: %v", body, err)
		}
	}
}

func TestNormalizeRejectsWrongTypes(t *testing.T) {
	_, err := Normalize(decodeBody(t, `{"input_text":7,"agent_id":"A","session_id":12,"agent_alias_id":true}`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"input_text", "session_id must be a string", "agent_alias_id must be a string"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in %q", want, msg)
		}
	}
}

func TestNormalizeAliasDefaultsWhenBlank(t *testing.T) {
	req, err := Normalize(decodeBody(t, `{"input_text":"hi","agent_id":"A","agent_alias_id":"   "}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.AgentAliasID != DefaultAgentAliasID {
		t.Fatalf("alias: %q", req.AgentAliasID)
	}

	req, err = Normalize(decodeBody(t, `{"input_text":"hi","agent_id":"A","agent_alias_id":" LIVE "}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.AgentAliasID != "LIVE" {
		t.Fatalf("alias: %q", req.AgentAliasID)
	}
}

func TestNormalizeSessionIDVerbatim(t *testing.T) {
	req, err := Normalize(decodeBody(t, `{"input_text":"hi","agent_id":"A","session_id":"session-abc"}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.SessionID != "session-abc" {
		t.Fatalf("session id: %q", req.SessionID)
	}
}

func TestNormalizeAttributeMaps(t *testing.T) {
	req, err := Normalize(decodeBody(t, `{
		"input_text":"hi","agent_id":"A",
		"session_attributes":{"user":"u1","tier":"gold"},
		"prompt_session_attributes":{}
	}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(req.SessionAttributes) != 2 || req.SessionAttributes["tier"] != "gold" {
		t.Fatalf("session attributes: %v", req.SessionAttributes)
	}
	if req.PromptSessionAttributes == nil || len(req.PromptSessionAttributes) != 0 {
		t.Fatalf("prompt attributes: %v", req.PromptSessionAttributes)
	}

	_, err = Normalize(decodeBody(t, `{"input_text":"hi","agent_id":"A","prompt_session_attributes":{"k":5}}`))
	if err == nil || !strings.Contains(err.Error(), "prompt_session_attributes values must be strings") {
		t.Fatalf("expected value type violation, got %v", err)
	}
}

func TestNewSessionIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^session-\d+-[0-9a-f]{8}$`)
	id := NewSessionID()
	if !pattern.MatchString(id) {
		t.Fatalf("session id %q does not match expected format", id)
	}
	if NewSessionID() == id {
		t.Fatalf("session ids should not repeat")
	}
}
