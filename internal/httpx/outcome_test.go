package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassifyErrorSuccess(t *testing.T) {
	o := ClassifyError(nil)
	if o.Kind != OutcomeSuccess {
		t.Fatalf("Kind = %v, want Success", o.Kind)
	}
}

func TestClassifyErrorRemoteRejected(t *testing.T) {
	herr := &HTTPError{
		Method:     http.MethodPatch,
		URL:        "https://api.slack.com/scim/v1/Users/U1",
		StatusCode: http.StatusConflict,
		Body:       []byte(`{"Errors":{"description":"username taken"}}`),
	}
	o := ClassifyError(fmt.Errorf("slack scim patch failed: %w", herr))
	if o.Kind != OutcomeRemoteRejected {
		t.Fatalf("Kind = %v, want RemoteRejected", o.Kind)
	}
	if o.Status != http.StatusConflict {
		t.Errorf("Status = %d, want 409", o.Status)
	}
	if len(o.Body) == 0 {
		t.Error("Body not carried through")
	}
}

func TestClassifyErrorNoResponse(t *testing.T) {
	for _, err := range []error{
		context.DeadlineExceeded,
		fmt.Errorf("doing request: %w", context.Canceled),
	} {
		if o := ClassifyError(err); o.Kind != OutcomeNoResponse {
			t.Errorf("ClassifyError(%v).Kind = %v, want NoResponse", err, o.Kind)
		}
	}
}

func TestClassifyErrorSetupFailed(t *testing.T) {
	o := ClassifyError(errors.New("building request: invalid URL"))
	if o.Kind != OutcomeRequestSetupFailed {
		t.Fatalf("Kind = %v, want RequestSetupFailed", o.Kind)
	}
	if o.Reason == nil {
		t.Error("Reason not set")
	}
}

func TestOutcomeString(t *testing.T) {
	o := Outcome{Kind: OutcomeRemoteRejected, Status: 502}
	if got := o.String(); got != "remote rejected (status 502)" {
		t.Errorf("String() = %q", got)
	}
}
