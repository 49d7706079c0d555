// Package identity verifies bearer credentials issued by an external
// identity provider and reports who they belong to.
package identity

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned for credentials the provider rejects.
var ErrInvalidToken = errors.New("invalid or expired credential")

// Identity is what a verified credential tells us about its holder.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Verifier checks a bearer credential.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
