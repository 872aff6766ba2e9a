package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nzgl-g/votex-bridge/src/utils/config"
	monitor_bridge "github.com/nzgl-g/votex-bridge/src/utils/monitoring/bridge"
	"github.com/nzgl-g/votex-bridge/src/utils/task"
)

const (
	EventTypeSessionDeployed   = "session_deployed"
	EventTypeSessionEnded      = "session_ended"
	EventTypeVoteCountsUpdated = "vote_counts_updated"
)

// Lifecycle or reconciliation event pushed to subscribers.
type Event struct {
	Id              string            `json:"id"`
	Type            string            `json:"type"`
	SessionId       string            `json:"session_id"`
	ContractAddress string            `json:"contract_address,omitempty"`
	VoteCounts      []VoteCountUpdate `json:"vote_counts,omitempty"`
	VoterCount      int64             `json:"voter_count,omitempty"`
	FinalResults    []VoteCountUpdate `json:"final_results,omitempty"`
	Timestamp       int64             `json:"timestamp"`
}

func (self *Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(self)
}

// Pushes session lifecycle events to Redis and an optional webhook.
// Delivery is best effort, a full queue drops the event instead of
// blocking the caller.
type Notifier struct {
	*task.Task

	monitor *monitor_bridge.Monitor

	redisClient *redis.Client
	httpClient  *resty.Client

	channelName string
	webhookUrl  string

	input chan *Event
}

func NewNotifier(config *config.Config) (self *Notifier) {
	self = new(Notifier)

	self.channelName = config.Bridge.NotifierRedisChannel
	self.webhookUrl = config.Bridge.NotifierWebhookUrl
	self.input = make(chan *Event, config.Bridge.NotifierChannelBufferLength)

	self.Task = task.NewTask(config, "notifier").
		WithSubtaskFunc(self.run).
		WithOnBeforeStart(self.connect).
		WithOnAfterStop(self.disconnect).
		WithWorkerPool(2)

	return
}

func (self *Notifier) WithMonitor(monitor *monitor_bridge.Monitor) *Notifier {
	self.monitor = monitor
	return self
}

func (self *Notifier) connect() (err error) {
	if self.webhookUrl != "" {
		self.httpClient = resty.New().
			SetTimeout(self.Config.Bridge.NotifierWebhookTimeout).
			SetHeader("Content-Type", "application/json")
	}

	if !self.Config.Redis.Enabled {
		return nil
	}

	self.redisClient = redis.NewClient(&redis.Options{
		ClientName:      fmt.Sprintf("votex/%s", self.Name),
		Addr:            fmt.Sprintf("%s:%d", self.Config.Redis.Host, self.Config.Redis.Port),
		Password:        self.Config.Redis.Password,
		Username:        self.Config.Redis.User,
		DB:              self.Config.Redis.DB,
		MinIdleConns:    self.Config.Redis.MinIdleConns,
		MaxIdleConns:    self.Config.Redis.MaxIdleConns,
		ConnMaxIdleTime: self.Config.Redis.ConnMaxIdleTime,
		PoolSize:        self.Config.Redis.MaxOpenConns,
		ConnMaxLifetime: self.Config.Redis.ConnMaxLifetime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = self.redisClient.Ping(ctx).Err()
	if err != nil {
		self.Log.WithError(err).Error("Failed to ping Redis")
		return
	}
	return
}

func (self *Notifier) disconnect() {
	if self.redisClient == nil {
		return
	}
	err := self.redisClient.Close()
	if err != nil {
		self.Log.WithError(err).Error("Failed to close Redis connection")
	}
}

func (self *Notifier) SessionDeployed(sessionId, contractAddress string) {
	self.enqueue(&Event{
		Id:              uuid.NewString(),
		Type:            EventTypeSessionDeployed,
		SessionId:       sessionId,
		ContractAddress: contractAddress,
		Timestamp:       time.Now().Unix(),
	})
}

func (self *Notifier) SessionEnded(sessionId string, finalResults []VoteCountUpdate) {
	self.enqueue(&Event{
		Id:           uuid.NewString(),
		Type:         EventTypeSessionEnded,
		SessionId:    sessionId,
		FinalResults: finalResults,
		Timestamp:    time.Now().Unix(),
	})
}

func (self *Notifier) VoteCountsReconciled(sessionId string, counts []VoteCountUpdate, voterCount int64) {
	self.enqueue(&Event{
		Id:         uuid.NewString(),
		Type:       EventTypeVoteCountsUpdated,
		SessionId:  sessionId,
		VoteCounts: counts,
		VoterCount: voterCount,
		Timestamp:  time.Now().Unix(),
	})
}

func (self *Notifier) enqueue(event *Event) {
	select {
	case self.input <- event:
	default:
		self.Log.WithField("type", event.Type).
			WithField("session_id", event.SessionId).
			Warn("Notification queue full, dropping event")
		if self.monitor != nil {
			self.monitor.Report.Bridge.Errors.NotifierFailures.Inc()
		}
	}
}

func (self *Notifier) run() (err error) {
	for {
		select {
		case <-self.Ctx.Done():
			return nil
		case event := <-self.input:
			self.SubmitToWorker(func() {
				self.publish(event)
				self.post(event)
			})
		}
	}
}

func (self *Notifier) publish(event *Event) {
	if self.redisClient == nil {
		return
	}

	err := task.NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(self.Config.Bridge.DeployBackoffMaxElapsedTime).
		WithMaxInterval(self.Config.Bridge.DeployBackoffMaxInterval).
		WithOnError(func(err error) {
			self.Log.WithError(err).Error("Failed to publish event, retrying")
			self.monitor.Report.RedisPublisher.Errors.Publish.Inc()
		}).
		Run(func() error {
			return self.redisClient.Publish(self.Ctx, self.channelName, event).Err()
		})
	if err != nil {
		self.Log.WithError(err).Error("Failed to publish event, giving up")
		self.monitor.Report.RedisPublisher.Errors.PersistentFailure.Inc()
		return
	}

	self.monitor.Report.RedisPublisher.State.MessagesPublished.Inc()
	self.monitor.Report.RedisPublisher.State.LastSuccessfulMessageTimestamp.Store(time.Now().Unix())
}

func (self *Notifier) post(event *Event) {
	if self.httpClient == nil {
		return
	}

	resp, err := self.httpClient.R().
		SetContext(self.Ctx).
		SetBody(event).
		Post(self.webhookUrl)
	if err != nil {
		self.Log.WithError(err).WithField("type", event.Type).Error("Failed to deliver webhook")
		self.monitor.Report.Bridge.Errors.NotifierFailures.Inc()
		return
	}
	if resp.IsError() {
		self.Log.WithField("status", resp.StatusCode()).
			WithField("type", event.Type).
			Error("Webhook delivery rejected")
		self.monitor.Report.Bridge.Errors.NotifierFailures.Inc()
	}
}
