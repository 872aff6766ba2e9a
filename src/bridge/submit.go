package bridge

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nzgl-g/votex-bridge/src/utils/logger"
	monitor_bridge "github.com/nzgl-g/votex-bridge/src/utils/monitoring/bridge"
)

// Write side of a deployed session contract, satisfied by the session
// adapter.
type VoteCaster interface {
	CastVote(ctx context.Context, session *Session, selection *BallotSelection) (txHash string, err error)
}

// Routes a ballot to the chain or the database. The branch is chosen
// once per call from the session's contract address and never mixed, a
// session is fully on-chain or fully off-chain for voting.
type Submitter struct {
	log *logrus.Entry

	store   SessionStore
	caster  VoteCaster
	monitor *monitor_bridge.Monitor
}

func NewSubmitter(store SessionStore, caster VoteCaster, monitor *monitor_bridge.Monitor) (self *Submitter) {
	self = new(Submitter)
	self.log = logger.NewSublogger("submitter")
	self.store = store
	self.caster = caster
	self.monitor = monitor
	return
}

func (self *Submitter) SubmitVote(ctx context.Context, sessionId, voterId string, selection *BallotSelection) (receipt *VoteReceipt, err error) {
	session, err := self.store.GetSession(ctx, sessionId)
	if err != nil {
		return
	}

	if session.IsOnChain() {
		return self.submitOnChain(ctx, session, selection)
	}
	return self.submitOffChain(ctx, session, voterId, selection)
}

// On-chain votes leave no per-voter record in the database. The chain
// is the only ledger of who voted, keyed by wallet identity.
func (self *Submitter) submitOnChain(ctx context.Context, session *Session, selection *BallotSelection) (receipt *VoteReceipt, err error) {
	txHash, err := self.caster.CastVote(ctx, session, selection)
	if err != nil {
		self.monitor.Report.Bridge.Errors.VoteSubmissionFailures.Inc()
		return
	}

	self.monitor.Report.Bridge.State.VotesSubmittedChain.Inc()
	self.log.WithField("session_id", session.Id).
		WithField("tx_hash", txHash).
		Debug("Vote cast on chain")

	return &VoteReceipt{SessionId: session.Id, OnChain: true, TxHash: txHash}, nil
}

func (self *Submitter) submitOffChain(ctx context.Context, session *Session, voterId string, selection *BallotSelection) (receipt *VoteReceipt, err error) {
	// Same shape checks the contract path gets, just without a chain
	_, _, err = buildVotePayload(session, selection)
	if err != nil {
		self.monitor.Report.Bridge.Errors.VoteSubmissionFailures.Inc()
		return
	}

	err = self.store.SaveOffchainVote(ctx, session.Id, voterId, selection)
	if err != nil {
		self.monitor.Report.Bridge.Errors.VoteSubmissionFailures.Inc()
		return
	}

	self.monitor.Report.Bridge.State.VotesSubmittedStored.Inc()
	return &VoteReceipt{SessionId: session.Id, OnChain: false}, nil
}
