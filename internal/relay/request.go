package relay

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultAgentAliasID is used when a request names no alias. AWS assigns
// this alias to the draft version of every agent.
const DefaultAgentAliasID = "TSTALIASID"

// AgentRequest is a validated, normalized stream request.
type AgentRequest struct {
	InputText               string
	AgentID                 string
	AgentAliasID            string
	SessionID               string
	SessionAttributes       map[string]string
	PromptSessionAttributes map[string]string
}

// ValidationError reports every constraint a request violates.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

// Normalize validates a decoded JSON request body and produces the typed
// request the translator consumes. All violations are collected so the
// caller sees every problem at once.
func Normalize(raw any) (AgentRequest, error) {
	body, ok := raw.(map[string]any)
	if !ok {
		return AgentRequest{}, &ValidationError{Violations: []string{"request body must be a JSON object"}}
	}

	var req AgentRequest
	var violations []string

	if s, ok := requiredString(body, "input_text"); ok {
		req.InputText = s
	} else {
		violations = append(violations, "input_text is required and must be a non-empty string")
	}
	if s, ok := requiredString(body, "agent_id"); ok {
		req.AgentID = s
	} else {
		violations = append(violations, "agent_id is required and must be a non-empty string")
	}

	req.AgentAliasID = DefaultAgentAliasID
	if v, present := body["agent_alias_id"]; present {
		if s, ok := v.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				req.AgentAliasID = trimmed
			}
		} else {
			violations = append(violations, "agent_alias_id must be a string")
		}
	}

	if v, present := body["session_id"]; present {
		if s, ok := v.(string); ok {
			req.SessionID = s
		} else {
			violations = append(violations, "session_id must be a string")
		}
	}

	req.SessionAttributes = attributeMap(body, "session_attributes", &violations)
	req.PromptSessionAttributes = attributeMap(body, "prompt_session_attributes", &violations)

	if len(violations) > 0 {
		return AgentRequest{}, &ValidationError{Violations: violations}
	}
	return req, nil
}

// requiredString returns the trimmed value of a field that must be present,
// a string, and non-empty after trimming.
func requiredString(body map[string]any, key string) (string, bool) {
	v, present := body[key]
	if !present {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// attributeMap converts an optional object field of string values. Absent
// fields stay nil so the upstream request omits them entirely.
func attributeMap(body map[string]any, key string, violations *[]string) map[string]string {
	v, present := body[key]
	if !present {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		*violations = append(*violations, key+" must be an object")
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, raw := range obj {
		s, ok := raw.(string)
		if !ok {
			*violations = append(*violations, key+" values must be strings")
			return nil
		}
		out[k] = s
	}
	return out
}

// NewSessionID returns a fresh session identifier in the form
// session-<unix seconds>-<8 hex chars>.
func NewSessionID() string {
	return fmt.Sprintf("session-%d-%s", time.Now().Unix(), uuid.NewString()[:8])
}
