package agent

import (
	"errors"
	"fmt"

	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Fault is a classified upstream failure ready for an in-band error frame.
type Fault struct {
	// Code is the upstream error code when the failure was a modeled
	// service error, empty otherwise.
	Code string
	// Message is a human-readable description safe to forward to clients.
	Message string
}

// Classify maps an upstream error to a Fault. Modeled service errors (both
// call-time rejections and exceptions surfaced through the event stream)
// keep their upstream code; transport and SDK failures produce a generic
// message without one.
func Classify(err error) Fault {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return Fault{
			Code:    apiErr.ErrorCode(),
			Message: fmt.Sprintf("agent invocation failed (%s): %s", apiErr.ErrorCode(), apiErr.ErrorMessage()),
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return Fault{Message: fmt.Sprintf("agent endpoint returned HTTP %d: %v", respErr.HTTPStatusCode(), err)}
	}
	return Fault{Message: fmt.Sprintf("agent call failed: %v", err)}
}
