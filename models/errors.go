package models

import (
	"errors"
	"fmt"
)

// ConfigurationError means a contract address or platform config entry is
// bad. Fatal, never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// ValidationError means the purchase inputs are bad and the user has to
// correct them. Nothing reached the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SimulationError carries the diagnostic of a failed dry run. The contract
// would reject this transaction, so it is never submitted.
type SimulationError struct {
	Diagnostic string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed: %s", e.Diagnostic)
}

// SignatureRejectedError means the user declined to sign. Not a fault.
type SignatureRejectedError struct{}

func (e *SignatureRejectedError) Error() string {
	return "signature rejected by user"
}

// SignatureError is a provider-level fault during signing.
type SignatureError struct {
	Provider string
	Reason   string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("wallet %s failed to sign: %s", e.Provider, e.Reason)
}

// SubmissionError means the ledger rejected the transaction or the network
// call failed. Retryable, but only by starting a fresh intent.
type SubmissionError struct {
	Status     string
	Diagnostic string
}

func (e *SubmissionError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("submission failed with status %s", e.Status)
	}
	return fmt.Sprintf("submission failed with status %s: %s", e.Status, e.Diagnostic)
}

// RecorderConflictError means the catalog backend refused to decrement
// supply because another buyer got there first. The on-chain purchase
// stands; this is surfaced as a warning, never an error to the buyer.
type RecorderConflictError struct {
	ListingID int64
	Requested int64
}

func (e *RecorderConflictError) Error() string {
	return fmt.Sprintf("recorder conflict for listing %d: insufficient cached supply for %d tokens", e.ListingID, e.Requested)
}

func IsSignatureRejected(err error) bool {
	var target *SignatureRejectedError
	return errors.As(err, &target)
}

func IsRecorderConflict(err error) bool {
	var target *RecorderConflictError
	return errors.As(err, &target)
}
