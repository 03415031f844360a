package store

import "fmt"

// NotFoundError indicates the resource was not found (or user lacks visibility).
// Absence and lack of access are deliberately conflated so that unauthorized
// callers cannot probe for existence.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError indicates a client-side validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// ConflictError indicates a uniqueness/conflict violation.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ForbiddenError indicates the resource exists but the caller lacks rights to it.
type ForbiddenError struct{}

func (e *ForbiddenError) Error() string {
	return "forbidden"
}

// IntegrityError indicates ciphertext authentication failed during decryption.
// It signals tampering or a key mismatch and must always propagate to the
// caller; decryption never falls back to partial or plaintext output.
type IntegrityError struct {
	Cause error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ciphertext integrity check failed: %v", e.Cause)
}

func (e *IntegrityError) Unwrap() error { return e.Cause }

// KeyNotFoundError indicates a conversation exists without an encryption key.
// Every conversation is created together with its key, so this is an internal
// invariant violation rather than a client error.
type KeyNotFoundError struct {
	ConversationID string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("no encryption key for conversation %s", e.ConversationID)
}
