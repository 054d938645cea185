package wallet

import (
	"context"
	"errors"
)

// ErrSelectionCancelled is returned by a provider when the user closes the
// wallet prompt without connecting. Callers treat it as "no session", not
// as a failure.
var ErrSelectionCancelled = errors.New("wallet selection cancelled")

// Provider is the capability surface every wallet implementation exposes.
// Providers differ in transport (browser extension bridge, deep link, QR)
// but the rest of the system only ever sees this contract.
type Provider interface {
	ID() string
	Name() string

	// Detect reports whether the provider is installed/reachable in the
	// host environment. Failure to detect is absence, never an error.
	Detect(ctx context.Context) bool

	// Connect performs the provider handshake and returns the signing
	// address, or ErrSelectionCancelled if the user backed out.
	Connect(ctx context.Context) (string, error)

	// Sign asks the provider to sign a base64 transaction envelope.
	Sign(ctx context.Context, envelopeXDR, address, networkPassphrase string) (string, error)

	// Disconnect tears down provider-side session state, best effort.
	Disconnect(ctx context.Context) error
}
