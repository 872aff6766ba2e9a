package bridge

import (
	"github.com/nzgl-g/votex-bridge/src/utils/config"
	"github.com/nzgl-g/votex-bridge/src/utils/eth"
	"github.com/nzgl-g/votex-bridge/src/utils/model"
	"github.com/nzgl-g/votex-bridge/src/utils/monitoring"
	monitor_bridge "github.com/nzgl-g/votex-bridge/src/utils/monitoring/bridge"
	"github.com/nzgl-g/votex-bridge/src/utils/task"
)

// Wires the whole bridge service together. Everything is set up here
// and starts upon calling Controller.Start().
type Controller struct {
	*task.Task

	Orchestrator *Orchestrator
	Submitter    *Submitter
	Store        *DbStore
	Sessions     *SessionAdapter
}

func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)
	self.Task = task.NewTask(config, "bridge")

	// SQL database
	db, err := model.NewConnection(self.Ctx, config, "bridge")
	if err != nil {
		return
	}

	// Chain connection, shared by every adapter
	client, err := eth.NewClient(&config.Chain)
	if err != nil {
		return
	}
	err = client.Connect(self.Ctx)
	if err != nil {
		return
	}

	// Monitoring
	monitor := monitor_bridge.NewMonitor()
	server := monitoring.NewServer(config).
		WithMonitor(monitor)

	self.Store = NewDbStore(db)

	notifier := NewNotifier(config).
		WithMonitor(monitor)

	factory := NewFactoryAdapter(client)
	sessions := NewSessionAdapter(client)
	self.Sessions = sessions

	pollers := NewPollerManager(config).
		WithStore(self.Store).
		WithReader(sessions).
		WithSink(self.Store).
		WithNotifier(notifier).
		WithMonitor(monitor)

	self.Orchestrator = NewOrchestrator(config).
		WithClient(client).
		WithStore(self.Store).
		WithResolver(self.Store).
		WithFactory(factory).
		WithSessionAdapter(sessions).
		WithPollers(pollers).
		WithNotifier(notifier).
		WithMonitor(monitor)

	self.Submitter = NewSubmitter(self.Store, sessions, monitor)

	// Setup everything, will start upon calling Controller.Start()
	self.Task.
		WithSubtask(monitor.Task).
		WithSubtask(server.Task).
		WithSubtask(notifier.Task).
		WithSubtask(pollers.Task).
		WithSubtask(self.Orchestrator.Task).
		WithSubtaskFunc(func() error {
			// Pollers for sessions deployed before the restart
			resumeErr := self.Orchestrator.ResumePolling(self.Ctx)
			if resumeErr != nil {
				self.Log.WithError(resumeErr).Error("Failed to resume polling")
			}
			return nil
		})
	return
}
