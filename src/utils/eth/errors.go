package eth

import (
	"errors"
	"fmt"
)

var (
	// Desired event missing from a mined transaction's logs
	ErrEventNotFound = errors.New("desired transaction log not found")

	// Write attempted without a configured signing key
	ErrNoSigner = errors.New("no signing key configured")
)

// Provider could not be reached or did not answer the handshake.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (self *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", self.Endpoint, self.Err)
}

func (self *ConnectionError) Unwrap() error {
	return self.Err
}

// Detected network has no configured factory address and the client
// is not in permissive mode.
type UnsupportedNetworkError struct {
	ChainID uint64
	Network string
}

func (self *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("unsupported network %s (chain id %d): no factory address configured", self.Network, self.ChainID)
}

// Read-only contract invocation failed.
type ContractCallError struct {
	Address string
	Method  string
	Reason  string
	Err     error
}

func (self *ContractCallError) Error() string {
	if self.Reason != "" {
		return fmt.Sprintf("contract call %s on %s reverted: %s", self.Method, self.Address, self.Reason)
	}
	return fmt.Sprintf("contract call %s on %s failed: %v", self.Method, self.Address, self.Err)
}

func (self *ContractCallError) Unwrap() error {
	return self.Err
}

type TxFailure int

const (
	// Signer declined to sign the transaction
	TxRejected TxFailure = iota

	// Contract-level rejection, reason decoded when possible
	TxReverted

	// Confirmation not observed within the bound. The transaction may
	// still land on chain, callers must re-check later.
	TxTimeout
)

func (kind TxFailure) String() string {
	switch kind {
	case TxRejected:
		return "rejected"
	case TxReverted:
		return "reverted"
	case TxTimeout:
		return "timeout"
	}
	return "unknown"
}

// Transaction submission or confirmation failed.
type TransactionError struct {
	Kind   TxFailure
	Method string
	Hash   string
	Reason string
	Err    error
}

func (self *TransactionError) Error() string {
	msg := fmt.Sprintf("transaction %s %s", self.Method, self.Kind)
	if self.Hash != "" {
		msg += " (tx " + self.Hash + ")"
	}
	if self.Reason != "" {
		msg += ": " + self.Reason
	} else if self.Err != nil {
		msg += ": " + self.Err.Error()
	}
	return msg
}

func (self *TransactionError) Unwrap() error {
	return self.Err
}

// Timed out confirmations are not failures, the outcome is unknown.
func (self *TransactionError) Ambiguous() bool {
	return self.Kind == TxTimeout
}
