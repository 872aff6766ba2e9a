package bridge

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	monitor_bridge "github.com/nzgl-g/votex-bridge/src/utils/monitoring/bridge"
)

func TestSubmitterTestSuite(t *testing.T) {
	suite.Run(t, new(SubmitterTestSuite))
}

type fakeCaster struct {
	mtx   sync.Mutex
	casts int
	err   error
}

func (self *fakeCaster) CastVote(ctx context.Context, session *Session, selection *BallotSelection) (string, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.err != nil {
		return "", self.err
	}
	self.casts++
	return "0xabc", nil
}

type SubmitterTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	store     *fakeStore
	caster    *fakeCaster
	submitter *Submitter
}

func (s *SubmitterTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.store = newFakeStore()
	s.caster = new(fakeCaster)
	s.submitter = NewSubmitter(s.store, s.caster, monitor_bridge.NewMonitor())

	s.store.sessions["onchain"] = &Session{
		Id:              "onchain",
		ContractAddress: "0x00000000000000000000000000000000000000c1",
		Mode:            VoteModeSingle,
		Participants:    []Participant{{Id: "red", Label: "Red"}, {Id: "blue", Label: "Blue"}},
	}
	s.store.sessions["offchain"] = &Session{
		Id:           "offchain",
		Mode:         VoteModeSingle,
		Participants: []Participant{{Id: "red", Label: "Red"}, {Id: "blue", Label: "Blue"}},
	}
}

func (s *SubmitterTestSuite) TearDownTest() {
	s.cancel()
}

func (s *SubmitterTestSuite) TestOnChainVoteLeavesNoDatabaseRecord() {
	receipt, err := s.submitter.SubmitVote(s.ctx, "onchain", "voter-1", &BallotSelection{Choices: []string{"red"}})
	s.Require().NoError(err)

	s.True(receipt.OnChain)
	s.Equal("0xabc", receipt.TxHash)
	s.Equal(1, s.caster.casts)
	s.Empty(s.store.offchainVotes, "on-chain sessions must not produce per-voter rows")
}

func (s *SubmitterTestSuite) TestOffChainVoteSubmitsNoTransaction() {
	receipt, err := s.submitter.SubmitVote(s.ctx, "offchain", "voter-1", &BallotSelection{Choices: []string{"blue"}})
	s.Require().NoError(err)

	s.False(receipt.OnChain)
	s.Empty(receipt.TxHash)
	s.Zero(s.caster.casts, "off-chain sessions must never reach the chain")
	s.Len(s.store.offchainVotes, 1)
}

func (s *SubmitterTestSuite) TestOffChainRepeatVoterRejected() {
	_, err := s.submitter.SubmitVote(s.ctx, "offchain", "voter-1", &BallotSelection{Choices: []string{"blue"}})
	s.Require().NoError(err)

	_, err = s.submitter.SubmitVote(s.ctx, "offchain", "voter-1", &BallotSelection{Choices: []string{"red"}})
	s.ErrorIs(err, ErrAlreadyVoted)
}

func (s *SubmitterTestSuite) TestOffChainInvalidChoiceRejected() {
	_, err := s.submitter.SubmitVote(s.ctx, "offchain", "voter-1", &BallotSelection{Choices: []string{"green"}})
	s.ErrorIs(err, ErrInvalidChoice)
	s.Empty(s.store.offchainVotes)
}

func (s *SubmitterTestSuite) TestUnknownSession() {
	_, err := s.submitter.SubmitVote(s.ctx, "missing", "voter-1", &BallotSelection{Choices: []string{"red"}})
	s.ErrorIs(err, ErrSessionUnknown)
}
