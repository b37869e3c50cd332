package slack

import (
	"errors"
	"fmt"
	"net/http"

	slackapi "github.com/slack-go/slack"
)

// DevSkipSecret disables signature checks. It is meant for local testing
// against a tunnel without real Slack credentials.
const DevSkipSecret = "dev-skip"

// Signature errors.
var (
	ErrMissingSignature = errors.New("missing or malformed slack signature headers")
	ErrStaleRequest     = errors.New("slack request timestamp outside replay window")
	ErrBadSignature     = errors.New("slack signature mismatch")
)

// Verifier checks the X-Slack-Signature header of incoming requests. The
// replay window is the five minutes slack-go enforces.
type Verifier struct {
	secret string
}

// NewVerifier creates a Verifier for the app's signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify validates the signature headers in header against body.
func (v *Verifier) Verify(header http.Header, body []byte) error {
	if v.secret == DevSkipSecret {
		return nil
	}

	sv, err := slackapi.NewSecretsVerifier(header, v.secret)
	switch {
	case errors.Is(err, slackapi.ErrExpiredTimestamp):
		return ErrStaleRequest
	case err != nil:
		return fmt.Errorf("%w: %v", ErrMissingSignature, err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	// Ensure's message carries the computed digest; keep it out of logs.
	if sv.Ensure() != nil {
		return ErrBadSignature
	}
	return nil
}
