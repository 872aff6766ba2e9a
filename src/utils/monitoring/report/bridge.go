package report

import (
	"go.uber.org/atomic"
)

type BridgeState struct {
	SessionsDeployed     atomic.Uint64 `json:"sessions_deployed"`
	SessionsFinalized    atomic.Uint64 `json:"sessions_finalized"`
	PollersActive        atomic.Int64  `json:"pollers_active"`
	PollerTicks          atomic.Uint64 `json:"poller_ticks"`
	VoteCountsUpserted   atomic.Uint64 `json:"vote_counts_upserted"`
	VotesSubmittedChain  atomic.Uint64 `json:"votes_submitted_chain"`
	VotesSubmittedStored atomic.Uint64 `json:"votes_submitted_stored"`

	LastSuccessfulPollTimestamp atomic.Int64 `json:"last_successful_poll_timestamp"`
}

type BridgeErrors struct {
	Deploy                   atomic.Uint64 `json:"deploy"`
	PollerTickFailures       atomic.Uint64 `json:"poller_tick_failures"`
	ReconciliationMismatches atomic.Uint64 `json:"reconciliation_mismatches"`
	VoteSubmissionFailures   atomic.Uint64 `json:"vote_submission_failures"`
	NotifierFailures         atomic.Uint64 `json:"notifier_failures"`
	DbErrors                 atomic.Uint64 `json:"db"`
}

type BridgeReport struct {
	State  BridgeState  `json:"state"`
	Errors BridgeErrors `json:"errors"`
}
