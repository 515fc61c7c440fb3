// Package agent adapts the AWS Bedrock agent runtime for the relay. It hides
// the SDK's union-typed response stream behind a small decoded event type so
// the rest of the service never touches SDK types, and it classifies upstream
// failures into messages safe to forward to clients.
package agent

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	batypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// RuntimeClient mirrors the subset of the Bedrock agent runtime client
// required by the relay. It matches *bedrockagentruntime.Client so callers
// can pass either the real client or a mock in tests.
type RuntimeClient interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

// InvokeParams describes one agent invocation.
type InvokeParams struct {
	AgentID      string
	AgentAliasID string
	SessionID    string
	InputText    string

	// SessionAttributes and PromptSessionAttributes are forwarded in the
	// invocation session state only when non-empty.
	SessionAttributes       map[string]string
	PromptSessionAttributes map[string]string

	// EnableTrace asks the upstream to include trace parts in the stream.
	EnableTrace bool
}

// Client invokes a remote Bedrock agent and exposes its response as a stream
// of decoded events.
type Client struct {
	runtime RuntimeClient
	region  string
}

// New returns a Client backed by runtime.
func New(runtime RuntimeClient, region string) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock agent: runtime client is required")
	}
	return &Client{runtime: runtime, region: region}, nil
}

// Region returns the region the client was configured with.
func (c *Client) Region() string { return c.region }

// Invoke starts one agent invocation and returns its event stream. The
// returned stream must be closed by the caller. Cancelling ctx stops the
// stream between events.
func (c *Client) Invoke(ctx context.Context, p InvokeParams) (EventStream, error) {
	input := &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(p.AgentID),
		AgentAliasId: aws.String(p.AgentAliasID),
		SessionId:    aws.String(p.SessionID),
		InputText:    aws.String(p.InputText),
	}
	if p.EnableTrace {
		input.EnableTrace = aws.Bool(true)
	}
	if len(p.SessionAttributes) > 0 || len(p.PromptSessionAttributes) > 0 {
		input.SessionState = &batypes.SessionState{
			SessionAttributes:       p.SessionAttributes,
			PromptSessionAttributes: p.PromptSessionAttributes,
		}
	}

	out, err := c.runtime.InvokeAgent(ctx, input)
	if err != nil {
		return nil, err
	}
	stream := out.GetStream()
	if stream == nil {
		return nil, errors.New("bedrock agent: response missing event stream")
	}
	return newEventStream(ctx, stream), nil
}
