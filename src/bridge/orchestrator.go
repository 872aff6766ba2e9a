package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/nzgl-g/votex-bridge/src/utils/config"
	"github.com/nzgl-g/votex-bridge/src/utils/eth"
	monitor_bridge "github.com/nzgl-g/votex-bridge/src/utils/monitoring/bridge"
	"github.com/nzgl-g/votex-bridge/src/utils/task"
)

// Drives a session from registered to deployed to polled. The factory
// adapter owns the chain write, this component owns persistence and
// poller lifecycle around it.
type Orchestrator struct {
	*task.Task

	client   ChainClient
	store    SessionStore
	resolver ParticipantResolver
	factory  *FactoryAdapter
	sessions *SessionAdapter
	pollers  *PollerManager
	notifier EventNotifier
	monitor  *monitor_bridge.Monitor
}

func NewOrchestrator(config *config.Config) (self *Orchestrator) {
	self = new(Orchestrator)
	self.Task = task.NewTask(config, "orchestrator")
	return
}

func (self *Orchestrator) WithClient(client ChainClient) *Orchestrator {
	self.client = client
	return self
}

func (self *Orchestrator) WithStore(store SessionStore) *Orchestrator {
	self.store = store
	return self
}

func (self *Orchestrator) WithResolver(resolver ParticipantResolver) *Orchestrator {
	self.resolver = resolver
	return self
}

func (self *Orchestrator) WithFactory(factory *FactoryAdapter) *Orchestrator {
	self.factory = factory
	return self
}

func (self *Orchestrator) WithSessionAdapter(sessions *SessionAdapter) *Orchestrator {
	self.sessions = sessions
	return self
}

func (self *Orchestrator) WithPollers(pollers *PollerManager) *Orchestrator {
	self.pollers = pollers
	return self
}

func (self *Orchestrator) WithNotifier(notifier EventNotifier) *Orchestrator {
	self.notifier = notifier
	return self
}

func (self *Orchestrator) WithMonitor(monitor *monitor_bridge.Monitor) *Orchestrator {
	self.monitor = monitor
	return self
}

// DeploySession deploys a registered session's voting contract,
// persists the address together with the frozen participant snapshot
// and arms the reconciliation poller. Deploying an already deployed
// session is refused, retrying a deployment that mined would orphan
// votes on the first contract.
func (self *Orchestrator) DeploySession(ctx context.Context, sessionId string) (deployment *Deployment, err error) {
	session, err := self.store.GetSession(ctx, sessionId)
	if err != nil {
		return
	}

	if session.IsOnChain() {
		return nil, &AlreadyDeployedError{SessionId: sessionId, ContractAddress: session.ContractAddress}
	}

	participants, err := self.resolver.ResolveParticipants(ctx, sessionId)
	if err != nil {
		return
	}
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	endTimestamp := session.EndTimestamp
	if endTimestamp <= 0 {
		endTimestamp = time.Now().Add(self.Config.Bridge.DefaultSessionDuration).Unix()
		self.Log.WithField("session_id", sessionId).
			WithField("end_timestamp", endTimestamp).
			Warn("Session has no end date, defaulting voting deadline")
	}

	params := &DeployParams{
		SessionId:    sessionId,
		Participants: participants,
		EndTimestamp: endTimestamp,
		Mode:         session.Mode,
		MaxChoices:   session.MaxChoices,
	}

	// Connectivity hiccups are worth retrying, everything else is a
	// definite failure requiring a new decision.
	err = task.NewRetry().
		WithContext(ctx).
		WithMaxElapsedTime(self.Config.Bridge.DeployBackoffMaxElapsedTime).
		WithMaxInterval(self.Config.Bridge.DeployBackoffMaxInterval).
		WithOnError(func(err error) {
			self.Log.WithError(err).WithField("session_id", sessionId).
				Warn("Deployment attempt failed, retrying")
		}).
		Run(func() error {
			var deployErr error
			deployment, deployErr = self.factory.DeploySession(ctx, params)
			if deployErr == nil {
				return nil
			}
			var connErr *eth.ConnectionError
			if errors.As(deployErr, &connErr) {
				return deployErr
			}
			return backoff.Permanent(deployErr)
		})
	if err != nil {
		self.monitor.Report.Bridge.Errors.Deploy.Inc()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		return nil, err
	}

	// Do not trust the event blindly, the address must hold bytecode.
	exists, err := self.client.CodeExistsAt(ctx, common.HexToAddress(deployment.ContractAddress))
	if err == nil && !exists {
		self.monitor.Report.Bridge.Errors.Deploy.Inc()
		return nil, &DeploymentError{
			SessionId: sessionId,
			TxHash:    deployment.TxHash,
			Reason:    "no bytecode at reported session address",
		}
	}
	if err != nil {
		self.Log.WithError(err).WithField("session_id", sessionId).
			Warn("Could not verify bytecode at deployed address")
		err = nil
	}

	err = self.store.SetContractAddress(ctx, sessionId, deployment.ContractAddress, deployment.TxHash, participants)
	if err != nil {
		self.monitor.Report.Bridge.Errors.DbErrors.Inc()
		return nil, err
	}

	err = self.store.MarkStarted(ctx, sessionId)
	if err != nil {
		self.monitor.Report.Bridge.Errors.DbErrors.Inc()
		return nil, err
	}

	self.monitor.Report.Bridge.State.SessionsDeployed.Inc()
	self.notifier.SessionDeployed(sessionId, deployment.ContractAddress)

	session.ContractAddress = deployment.ContractAddress
	session.Participants = participants
	session.EndTimestamp = endTimestamp

	err = self.pollers.Arm(session)
	if err != nil {
		return nil, err
	}
	return
}

// ResumePolling re-arms pollers for every deployed session that has
// not ended, called once on service startup.
func (self *Orchestrator) ResumePolling(ctx context.Context) (err error) {
	sessions, err := self.store.GetDeployedActive(ctx)
	if err != nil {
		return
	}

	for _, session := range sessions {
		exists, checkErr := self.client.CodeExistsAt(ctx, common.HexToAddress(session.ContractAddress))
		if checkErr == nil && !exists {
			self.Log.WithField("session_id", session.Id).
				WithField("contract_address", session.ContractAddress).
				Error("Stored contract address holds no bytecode, skipping poller")
			continue
		}

		err = self.pollers.Arm(session)
		if err != nil {
			return
		}
	}

	self.Log.WithField("count", len(sessions)).Info("Resumed reconciliation polling")
	return
}

// ForceEnd ends voting on chain ahead of the deadline. The armed
// poller observes the inactive status on its next tick and runs the
// final reconciliation, a missing poller is re-armed first so the
// finalization still happens.
func (self *Orchestrator) ForceEnd(ctx context.Context, sessionId string) (txHash string, err error) {
	session, err := self.store.GetSession(ctx, sessionId)
	if err != nil {
		return
	}
	if !session.IsOnChain() {
		return "", ErrSessionUnknown
	}

	txHash, err = self.sessions.EndSession(ctx, session.ContractAddress)
	if err != nil {
		return
	}

	if !self.pollers.IsArmed(session.ContractAddress) {
		err = self.pollers.Arm(session)
	}
	return
}
