package llm

import (
	"errors"
	"fmt"
)

// ErrNoActiveProvider is returned when a chat request is made before any
// provider has been configured and activated.
var ErrNoActiveProvider = errors.New("no AI provider configured")

// TransportError reports a network failure, timeout or non-2xx status from a
// provider API. It is tagged with the provider name and never retried.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a success response whose body did not have the
// expected shape (missing fields, unparseable JSON).
type ProtocolError struct {
	Provider string
	Err      error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("invalid response format from %s: %v", e.Provider, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func transportErr(provider string, err error) error {
	return &TransportError{Provider: provider, Err: err}
}

func protocolErr(provider string, err error) error {
	return &ProtocolError{Provider: provider, Err: err}
}
