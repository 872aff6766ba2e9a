package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/nzgl-g/votex-bridge/src/utils/config"
	"github.com/nzgl-g/votex-bridge/src/utils/model"
	monitor_bridge "github.com/nzgl-g/votex-bridge/src/utils/monitoring/bridge"
)

func TestPollerTestSuite(t *testing.T) {
	suite.Run(t, new(PollerTestSuite))
}

type PollerTestSuite struct {
	suite.Suite
	ctx      context.Context
	cancel   context.CancelFunc
	config   *config.Config
	chain    *fakeChain
	store    *fakeStore
	sink     *fakeSink
	notifier *fakeNotifier
	monitor  *monitor_bridge.Monitor
	manager  *PollerManager
	session  *Session
}

func (s *PollerTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.config = config.Default()
	s.config.Bridge.PollerInterval = 20 * time.Millisecond
	s.config.Bridge.PollerTickTimeout = time.Second

	s.chain = newFakeChain()
	s.chain.names = []string{"red", "blue"}
	s.chain.counts = []int64{1, 1}
	s.chain.voterCount = 2

	s.store = newFakeStore()
	s.sink = newFakeSink()
	s.notifier = new(fakeNotifier)
	s.monitor = monitor_bridge.NewMonitor()

	s.manager = NewPollerManager(s.config).
		WithStore(s.store).
		WithReader(NewSessionAdapter(s.chain)).
		WithSink(s.sink).
		WithNotifier(s.notifier).
		WithMonitor(s.monitor)

	s.session = &Session{
		Id:              "session-1",
		ContractAddress: "0x00000000000000000000000000000000000000c1",
		Mode:            VoteModeSingle,
		Participants: []Participant{
			{Id: "red", Label: "Red"},
			{Id: "blue", Label: "Blue"},
		},
	}
	s.store.sessions[s.session.Id] = s.session
}

func (s *PollerTestSuite) TearDownTest() {
	s.manager.StopAll()
	s.cancel()
}

func (s *PollerTestSuite) TestReconcileUpsertsBlockchainCounts() {
	handle := newPollingHandle(s.manager, s.session)

	err := handle.tick()
	s.Require().NoError(err)

	s.Equal(int64(1), s.sink.state["session-1"]["red"])
	s.Equal(int64(1), s.sink.state["session-1"]["blue"])
	s.Equal(int64(2), s.sink.voters["session-1"])
	s.Equal(model.VoteSourceBlockchain, s.sink.sources["session-1"])
	s.Equal(1, s.notifier.reconciledCount())
}

func (s *PollerTestSuite) TestReconcileMatchesByLabelFallback() {
	// Contract knows display labels, not our ids
	s.chain.names = []string{"Red", "Blue"}

	handle := newPollingHandle(s.manager, s.session)
	s.Require().NoError(handle.tick())

	// Counts are still keyed by identifier
	s.Equal(int64(1), s.sink.state["session-1"]["red"])
	s.Equal(int64(1), s.sink.state["session-1"]["blue"])
}

func (s *PollerTestSuite) TestMismatchWritesNothing() {
	s.chain.names = []string{"red", "someone-else"}

	handle := newPollingHandle(s.manager, s.session)
	s.Require().NoError(handle.tick())

	s.Zero(s.sink.upsertCount(), "partial matches must not be written")
	s.Equal(uint64(1), s.monitor.Report.Bridge.Errors.ReconciliationMismatches.Load())
	s.Zero(s.store.markEndedCount())
}

func (s *PollerTestSuite) TestRepeatedReconcileIsIdempotent() {
	handle := newPollingHandle(s.manager, s.session)

	s.Require().NoError(handle.tick())
	stateAfterOne := map[string]int64{}
	for k, v := range s.sink.state["session-1"] {
		stateAfterOne[k] = v
	}

	s.Require().NoError(handle.tick())
	s.Equal(stateAfterOne, s.sink.state["session-1"])
}

func (s *PollerTestSuite) TestBusyTickIsSkipped() {
	handle := newPollingHandle(s.manager, s.session)
	handle.busy.Store(true)

	s.Require().NoError(handle.tick())
	s.Zero(s.sink.upsertCount())
}

func (s *PollerTestSuite) TestTransientErrorKeepsPolling() {
	s.chain.callErr = context.DeadlineExceeded

	handle := newPollingHandle(s.manager, s.session)
	s.Require().NoError(handle.tick(), "a failed tick must not kill the schedule")
	s.Equal(uint64(1), s.monitor.Report.Bridge.Errors.PollerTickFailures.Load())

	s.chain.callErr = nil
	s.Require().NoError(handle.tick())
	s.Equal(1, s.sink.upsertCount())
}

func (s *PollerTestSuite) TestInactiveSessionFinalizesAndRetires() {
	s.chain.isActive = false

	err := s.manager.Arm(s.session)
	s.Require().NoError(err)

	// Exactly one final reconciliation, then the handle retires
	s.Eventually(func() bool {
		return s.store.markEndedCount() == 1 && !s.manager.IsArmed(s.session.ContractAddress)
	}, time.Second, 10*time.Millisecond)

	s.Equal(1, s.notifier.endedCount())
	upserts := s.sink.upsertCount()
	s.Equal(1, upserts)

	// No further ticks are scheduled
	time.Sleep(5 * s.config.Bridge.PollerInterval)
	s.Equal(upserts, s.sink.upsertCount())
}

func (s *PollerTestSuite) TestArmTwiceKeepsOneHandle() {
	s.Require().NoError(s.manager.Arm(s.session))
	s.Require().NoError(s.manager.Arm(s.session))

	s.Equal(int64(1), s.monitor.Report.Bridge.State.PollersActive.Load())

	s.manager.Stop(s.session.ContractAddress)
	s.False(s.manager.IsArmed(s.session.ContractAddress))
	s.Equal(int64(0), s.monitor.Report.Bridge.State.PollersActive.Load())
}

func (s *PollerTestSuite) TestExplicitStopHaltsTicks() {
	s.Require().NoError(s.manager.Arm(s.session))

	s.Eventually(func() bool { return s.sink.upsertCount() >= 1 }, time.Second, 5*time.Millisecond)

	s.manager.Stop(s.session.ContractAddress)
	upserts := s.sink.upsertCount()

	time.Sleep(5 * s.config.Bridge.PollerInterval)
	s.LessOrEqual(s.sink.upsertCount(), upserts+1, "at most the in-flight tick may complete after stop")
}
