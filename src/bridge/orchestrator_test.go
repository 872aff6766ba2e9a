package bridge

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/suite"

	"github.com/nzgl-g/votex-bridge/src/utils/config"
	monitor_bridge "github.com/nzgl-g/votex-bridge/src/utils/monitoring/bridge"
)

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

type OrchestratorTestSuite struct {
	suite.Suite
	ctx          context.Context
	cancel       context.CancelFunc
	config       *config.Config
	chain        *fakeChain
	store        *fakeStore
	sink         *fakeSink
	notifier     *fakeNotifier
	monitor      *monitor_bridge.Monitor
	pollers      *PollerManager
	orchestrator *Orchestrator
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.config = config.Default()
	s.config.Bridge.PollerInterval = 20 * time.Millisecond
	s.config.Bridge.PollerTickTimeout = time.Second
	s.config.Bridge.DeployBackoffMaxElapsedTime = 100 * time.Millisecond
	s.config.Bridge.DeployBackoffMaxInterval = 20 * time.Millisecond

	s.chain = newFakeChain()
	s.chain.names = []string{"red", "blue"}
	s.chain.counts = []int64{0, 0}

	sessionAddress := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	s.chain.receiptLogs = []*types.Log{
		s.chain.sessionCreatedLog(big.NewInt(77), sessionAddress, s.chain.signer),
	}

	s.store = newFakeStore()
	s.sink = newFakeSink()
	s.notifier = new(fakeNotifier)
	s.monitor = monitor_bridge.NewMonitor()

	adapter := NewSessionAdapter(s.chain)

	s.pollers = NewPollerManager(s.config).
		WithStore(s.store).
		WithReader(adapter).
		WithSink(s.sink).
		WithNotifier(s.notifier).
		WithMonitor(s.monitor)

	s.orchestrator = NewOrchestrator(s.config).
		WithClient(s.chain).
		WithStore(s.store).
		WithResolver(s.store).
		WithFactory(NewFactoryAdapter(s.chain)).
		WithSessionAdapter(adapter).
		WithPollers(s.pollers).
		WithNotifier(s.notifier).
		WithMonitor(s.monitor)

	s.store.sessions["77"] = &Session{
		Id:           "77",
		Mode:         VoteModeSingle,
		EndTimestamp: time.Now().Add(time.Hour).Unix(),
		Participants: []Participant{
			{Id: "red", Label: "Red"},
			{Id: "blue", Label: "Blue"},
		},
	}
}

func (s *OrchestratorTestSuite) TearDownTest() {
	s.pollers.StopAll()
	s.cancel()
}

func (s *OrchestratorTestSuite) TestDeployPersistsAndArmsPoller() {
	deployment, err := s.orchestrator.DeploySession(s.ctx, "77")
	s.Require().NoError(err)

	s.Equal("77", deployment.SessionId)
	s.NotEmpty(deployment.ContractAddress)
	s.Equal(deployment.ContractAddress, s.store.setAddresses["77"])
	s.True(s.store.startedSessions["77"])
	s.True(s.pollers.IsArmed(deployment.ContractAddress))
	s.Equal([]string{"77"}, s.notifier.deployed)
	s.Equal(uint64(1), s.monitor.Report.Bridge.State.SessionsDeployed.Load())
}

func (s *OrchestratorTestSuite) TestDeployTwiceIsRefused() {
	_, err := s.orchestrator.DeploySession(s.ctx, "77")
	s.Require().NoError(err)

	sent := len(s.chain.sentMethods)

	_, err = s.orchestrator.DeploySession(s.ctx, "77")
	var alreadyDeployed *AlreadyDeployedError
	s.Require().ErrorAs(err, &alreadyDeployed)
	s.Equal("77", alreadyDeployed.SessionId)

	s.Len(s.chain.sentMethods, sent, "the second call must not reach the chain")
}

func (s *OrchestratorTestSuite) TestDeployWithoutParticipants() {
	s.store.sessions["empty"] = &Session{Id: "empty", Mode: VoteModeSingle}

	_, err := s.orchestrator.DeploySession(s.ctx, "empty")
	s.ErrorIs(err, ErrNoParticipants)
	s.Empty(s.chain.sentMethods)
}

func (s *OrchestratorTestSuite) TestDeployUnknownSession() {
	_, err := s.orchestrator.DeploySession(s.ctx, "missing")
	s.ErrorIs(err, ErrSessionUnknown)
}

func (s *OrchestratorTestSuite) TestMissingEventIsNotRetried() {
	s.chain.receiptLogs = nil

	_, err := s.orchestrator.DeploySession(s.ctx, "77")

	var deployErr *DeploymentError
	s.Require().ErrorAs(err, &deployErr)
	s.Len(s.chain.sentMethods, 1, "integrity failures are definite, no silent retry")
	s.Equal(uint64(1), s.monitor.Report.Bridge.Errors.Deploy.Load())
}

func (s *OrchestratorTestSuite) TestResumePolling() {
	s.store.sessions["armed"] = &Session{
		Id:              "armed",
		ContractAddress: "0x00000000000000000000000000000000000000c2",
		Mode:            VoteModeSingle,
		Participants:    []Participant{{Id: "red", Label: "Red"}, {Id: "blue", Label: "Blue"}},
	}

	err := s.orchestrator.ResumePolling(s.ctx)
	s.Require().NoError(err)
	s.True(s.pollers.IsArmed("0x00000000000000000000000000000000000000c2"))
}

func (s *OrchestratorTestSuite) TestForceEndSubmitsEndTransaction() {
	deployment, err := s.orchestrator.DeploySession(s.ctx, "77")
	s.Require().NoError(err)

	txHash, err := s.orchestrator.ForceEnd(s.ctx, "77")
	s.Require().NoError(err)
	s.NotEmpty(txHash)
	s.Contains(s.chain.sentMethods, "endSession")
	s.True(s.pollers.IsArmed(deployment.ContractAddress))
}
