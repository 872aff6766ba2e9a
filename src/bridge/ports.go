package bridge

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/nzgl-g/votex-bridge/src/utils/eth"
)

// Connection handle shared by the adapters. Injected explicitly so
// tests can substitute a double and so multiple networks stay
// possible.
type ChainClient interface {
	Call(ctx context.Context, address common.Address, contractABI *abi.ABI, method string, out *[]interface{}, args ...interface{}) error
	Send(ctx context.Context, address common.Address, contractABI *abi.ABI, method string, args ...interface{}) (*types.Receipt, []eth.DecodedEvent, error)
	CodeExistsAt(ctx context.Context, address common.Address) (bool, error)
	FactoryAddress() (common.Address, bool)
	NetworkName() string
	SignerAddress() common.Address
}

// Platform-side persistence of sessions and their lifecycle.
type SessionStore interface {
	GetSession(ctx context.Context, sessionId string) (*Session, error)

	// Persists the deployed address together with the frozen
	// participant snapshot. The snapshot must never change afterwards.
	SetContractAddress(ctx context.Context, sessionId, contractAddress, txHash string, participants []Participant) error

	MarkStarted(ctx context.Context, sessionId string) error
	MarkEnded(ctx context.Context, sessionId string, finalResults []VoteCountUpdate, voterCount int64) error

	// Deployed sessions that have not ended yet, used to re-arm
	// pollers after a restart.
	GetDeployedActive(ctx context.Context) ([]*Session, error)

	// Conventional vote record for sessions without a contract
	SaveOffchainVote(ctx context.Context, sessionId, voterId string, selection *BallotSelection) error
}

// Resolves the ordered choice list for a session, candidate ids for
// elections and option ids in case of polls.
type ParticipantResolver interface {
	ResolveParticipants(ctx context.Context, sessionId string) ([]Participant, error)
}

// Receives reconciled tallies. Upserts must be idempotent, applying
// the same batch twice yields the same stored state.
type VoteCountSink interface {
	UpsertVoteCounts(ctx context.Context, sessionId string, counts []VoteCountUpdate, voterCount int64, source string) error
}

// Best-effort, fire-and-forget notifications. Reconciled counts go out
// after every successful poll so the application server can refresh
// its cache without waiting for the session to end.
type EventNotifier interface {
	SessionDeployed(sessionId, contractAddress string)
	SessionEnded(sessionId string, finalResults []VoteCountUpdate)
	VoteCountsReconciled(sessionId string, counts []VoteCountUpdate, voterCount int64)
}
