package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/nzgl-g/votex-bridge/src/utils/config"
	"github.com/nzgl-g/votex-bridge/src/utils/model"
	monitor_bridge "github.com/nzgl-g/votex-bridge/src/utils/monitoring/bridge"
	"github.com/nzgl-g/votex-bridge/src/utils/task"
)

// Read side of a deployed session contract, satisfied by the session
// adapter.
type ContractReader interface {
	GetStatus(ctx context.Context, address string) (*Status, error)
	GetResults(ctx context.Context, address string) (*Results, error)
	GetVoterCount(ctx context.Context, address string) (uint64, error)
}

// Owns one polling handle per deployed contract. Handles are tracked
// by contract address and each runs its own periodic reconciliation,
// fully independent of the others.
type PollerManager struct {
	*task.Task

	store    SessionStore
	reader   ContractReader
	sink     VoteCountSink
	notifier EventNotifier
	monitor  *monitor_bridge.Monitor

	mtx     sync.Mutex
	handles map[string]*pollingHandle
}

func NewPollerManager(config *config.Config) (self *PollerManager) {
	self = new(PollerManager)
	self.handles = make(map[string]*pollingHandle)

	self.Task = task.NewTask(config, "poller-manager").
		WithOnStop(self.StopAll)

	return
}

func (self *PollerManager) WithStore(store SessionStore) *PollerManager {
	self.store = store
	return self
}

func (self *PollerManager) WithReader(reader ContractReader) *PollerManager {
	self.reader = reader
	return self
}

func (self *PollerManager) WithSink(sink VoteCountSink) *PollerManager {
	self.sink = sink
	return self
}

func (self *PollerManager) WithNotifier(notifier EventNotifier) *PollerManager {
	self.notifier = notifier
	return self
}

func (self *PollerManager) WithMonitor(monitor *monitor_bridge.Monitor) *PollerManager {
	self.monitor = monitor
	return self
}

// Arm starts periodic reconciliation for a deployed session. Arming
// the same contract twice is a no-op, the existing handle keeps its
// schedule.
func (self *PollerManager) Arm(session *Session) (err error) {
	if !session.IsOnChain() {
		return errors.New("cannot poll a session without a contract address")
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()

	if _, armed := self.handles[session.ContractAddress]; armed {
		return nil
	}

	handle := newPollingHandle(self, session)
	self.handles[session.ContractAddress] = handle
	self.monitor.Report.Bridge.State.PollersActive.Inc()

	self.Log.WithField("session_id", session.Id).
		WithField("contract_address", session.ContractAddress).
		Info("Armed reconciliation poller")

	return handle.Start()
}

// Stop cancels polling for one contract, independent of the contract's
// active flag. Used when an administrator force-ends a session.
func (self *PollerManager) Stop(contractAddress string) {
	self.mtx.Lock()
	handle, armed := self.handles[contractAddress]
	if armed {
		delete(self.handles, contractAddress)
	}
	self.mtx.Unlock()

	if !armed {
		return
	}
	self.monitor.Report.Bridge.State.PollersActive.Dec()
	handle.Task.Stop()
}

func (self *PollerManager) StopAll() {
	self.mtx.Lock()
	handles := make([]*pollingHandle, 0, len(self.handles))
	for _, handle := range self.handles {
		handles = append(handles, handle)
	}
	self.handles = make(map[string]*pollingHandle)
	self.mtx.Unlock()

	for _, handle := range handles {
		self.monitor.Report.Bridge.State.PollersActive.Dec()
		handle.Task.Stop()
	}
}

func (self *PollerManager) IsArmed(contractAddress string) bool {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	_, armed := self.handles[contractAddress]
	return armed
}

// One contract's polling timeline. Ticks are strictly sequential, a
// tick that overruns the interval makes the next one skip instead of
// overlapping it.
type pollingHandle struct {
	*task.Task

	manager *PollerManager
	session *Session

	busy atomic.Bool
}

func newPollingHandle(manager *PollerManager, session *Session) (self *pollingHandle) {
	self = new(pollingHandle)
	self.manager = manager
	self.session = session

	self.Task = task.NewTask(manager.Config, "poller").
		WithPeriodicSubtaskFunc(manager.Config.Bridge.PollerInterval, self.tick)

	return
}

func (self *pollingHandle) tick() (err error) {
	if !self.busy.CompareAndSwap(false, true) {
		// Previous tick still in flight
		return nil
	}
	defer self.busy.Store(false)

	report := self.manager.monitor.Report.Bridge
	report.State.PollerTicks.Inc()

	ctx, cancel := context.WithTimeout(self.Ctx, self.manager.Config.Bridge.PollerTickTimeout)
	defer cancel()

	isActive, finalResults, voterCount, err := self.reconcile(ctx)
	if err != nil {
		var mismatch *ReconciliationMismatchError
		if errors.As(err, &mismatch) {
			report.Errors.ReconciliationMismatches.Inc()
		} else {
			report.Errors.PollerTickFailures.Inc()
		}
		self.Log.WithError(err).
			WithField("session_id", self.session.Id).
			WithField("contract_address", self.session.ContractAddress).
			Error("Reconciliation tick failed")
		// Transient failures pass through to the next scheduled tick
		return nil
	}

	report.State.LastSuccessfulPollTimestamp.Store(time.Now().Unix())

	if isActive {
		return nil
	}

	// Contract reports voting over. The reconciliation above was the
	// final one, persist the lifecycle change and retire the handle.
	err = self.manager.store.MarkEnded(ctx, self.session.Id, finalResults, int64(voterCount))
	if err != nil {
		report.Errors.DbErrors.Inc()
		self.Log.WithError(err).WithField("session_id", self.session.Id).
			Error("Failed to mark session ended")
		return nil
	}

	self.manager.notifier.SessionEnded(self.session.Id, finalResults)
	report.State.SessionsFinalized.Inc()

	self.Log.WithField("session_id", self.session.Id).
		WithField("contract_address", self.session.ContractAddress).
		Info("Session voting ended, poller retiring")

	go self.manager.Stop(self.session.ContractAddress)
	return nil
}

// reconcile pulls the contract's tallies and upserts them keyed by
// stored choice ids. On-chain entries are matched by identifier first
// and by display label only as a fallback. A tick where anything fails
// to match writes nothing at all.
func (self *pollingHandle) reconcile(ctx context.Context) (isActive bool, updates []VoteCountUpdate, voterCount uint64, err error) {
	address := self.session.ContractAddress

	status, err := self.manager.reader.GetStatus(ctx, address)
	if err != nil {
		return
	}

	results, err := self.manager.reader.GetResults(ctx, address)
	if err != nil {
		return
	}

	voterCount, err = self.manager.reader.GetVoterCount(ctx, address)
	if err != nil {
		return
	}

	var unmatched []string
	updates = make([]VoteCountUpdate, 0, len(results.ParticipantNames))
	for i, name := range results.ParticipantNames {
		participant, found := self.session.ParticipantByMatch(name)
		if !found {
			unmatched = append(unmatched, name)
			continue
		}

		var count uint64
		if i < len(results.VoteCounts) {
			count = results.VoteCounts[i]
		}
		updates = append(updates, VoteCountUpdate{
			ChoiceId:    participant.Id,
			ChoiceLabel: participant.Label,
			VoteCount:   int64(count),
		})
	}

	if len(unmatched) > 0 || (len(updates) == 0 && len(results.ParticipantNames) > 0) {
		err = &ReconciliationMismatchError{
			SessionId:       self.session.Id,
			ContractAddress: address,
			Unmatched:       unmatched,
		}
		return
	}

	err = self.manager.sink.UpsertVoteCounts(ctx, self.session.Id, updates, int64(voterCount), model.VoteSourceBlockchain)
	if err != nil {
		return
	}

	self.manager.monitor.Report.Bridge.State.VoteCountsUpserted.Add(uint64(len(updates)))
	self.manager.notifier.VoteCountsReconciled(self.session.Id, updates, int64(voterCount))
	isActive = status.IsActive
	return
}
