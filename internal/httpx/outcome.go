package httpx

import (
	"context"
	"errors"
	"fmt"
)

// OutcomeKind is a closed classification of how an external call ended.
// Callers pattern-match on this instead of poking at error internals.
type OutcomeKind int

const (
	// OutcomeSuccess: a 2xx response with a usable body.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRemoteRejected: the remote answered with a non-2xx status.
	OutcomeRemoteRejected
	// OutcomeNoResponse: the request went out but no response came back
	// (network failure, timeout, cancelled context).
	OutcomeNoResponse
	// OutcomeRequestSetupFailed: the request never left (bad URL, marshal
	// failure, request construction error).
	OutcomeRequestSetupFailed
)

// Outcome is the tagged result of an external call.
type Outcome struct {
	Kind   OutcomeKind
	Status int    // set for RemoteRejected
	Body   []byte // set for RemoteRejected
	Reason error  // set for every non-success kind
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return "success"
	case OutcomeRemoteRejected:
		return fmt.Sprintf("remote rejected (status %d)", o.Status)
	case OutcomeNoResponse:
		return "no response from remote"
	default:
		return "request setup failed"
	}
}

// ClassifyError maps an error from DoWithRetry/DoJSON into an Outcome.
// A nil error is Success.
func ClassifyError(err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeSuccess}
	}
	var herr *HTTPError
	if errors.As(err, &herr) {
		return Outcome{Kind: OutcomeRemoteRejected, Status: herr.StatusCode, Body: herr.Body, Reason: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || isRetryableNetErr(err) {
		return Outcome{Kind: OutcomeNoResponse, Reason: err}
	}
	return Outcome{Kind: OutcomeRequestSetupFailed, Reason: err}
}
