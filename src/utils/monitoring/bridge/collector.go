package monitor_bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	monitor *Monitor

	// Run
	UpForSeconds *prometheus.Desc

	// Bridge
	SessionsDeployed     *prometheus.Desc
	SessionsFinalized    *prometheus.Desc
	PollersActive        *prometheus.Desc
	PollerTicks          *prometheus.Desc
	VoteCountsUpserted   *prometheus.Desc
	VotesSubmittedChain  *prometheus.Desc
	VotesSubmittedStored *prometheus.Desc

	// Errors
	DeployErrors             *prometheus.Desc
	PollerTickFailures       *prometheus.Desc
	ReconciliationMismatches *prometheus.Desc
	VoteSubmissionFailures   *prometheus.Desc
	NotifierFailures         *prometheus.Desc
	DbErrors                 *prometheus.Desc

	// Redis publisher
	RedisPublishErrors     *prometheus.Desc
	RedisPersistentErrors  *prometheus.Desc
	RedisMessagesPublished *prometheus.Desc
}

func NewCollector() *Collector {
	return &Collector{
		// Run
		UpForSeconds: prometheus.NewDesc("up_for_seconds", "", nil, nil),

		// Bridge
		SessionsDeployed:     prometheus.NewDesc("sessions_deployed", "", nil, nil),
		SessionsFinalized:    prometheus.NewDesc("sessions_finalized", "", nil, nil),
		PollersActive:        prometheus.NewDesc("pollers_active", "", nil, nil),
		PollerTicks:          prometheus.NewDesc("poller_ticks", "", nil, nil),
		VoteCountsUpserted:   prometheus.NewDesc("vote_counts_upserted", "", nil, nil),
		VotesSubmittedChain:  prometheus.NewDesc("votes_submitted_chain", "", nil, nil),
		VotesSubmittedStored: prometheus.NewDesc("votes_submitted_stored", "", nil, nil),

		// Errors
		DeployErrors:             prometheus.NewDesc("error_deploy", "", nil, nil),
		PollerTickFailures:       prometheus.NewDesc("error_poller_tick", "", nil, nil),
		ReconciliationMismatches: prometheus.NewDesc("error_reconciliation_mismatch", "", nil, nil),
		VoteSubmissionFailures:   prometheus.NewDesc("error_vote_submission", "", nil, nil),
		NotifierFailures:         prometheus.NewDesc("error_notifier", "", nil, nil),
		DbErrors:                 prometheus.NewDesc("error_db", "", nil, nil),

		// Redis publisher
		RedisPublishErrors:     prometheus.NewDesc("error_redis_publish_errors", "", nil, nil),
		RedisPersistentErrors:  prometheus.NewDesc("error_redis_persistent_errors", "", nil, nil),
		RedisMessagesPublished: prometheus.NewDesc("redis_messages_published", "", nil, nil),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	// Run
	ch <- self.UpForSeconds

	// Bridge
	ch <- self.SessionsDeployed
	ch <- self.SessionsFinalized
	ch <- self.PollersActive
	ch <- self.PollerTicks
	ch <- self.VoteCountsUpserted
	ch <- self.VotesSubmittedChain
	ch <- self.VotesSubmittedStored

	// Errors
	ch <- self.DeployErrors
	ch <- self.PollerTickFailures
	ch <- self.ReconciliationMismatches
	ch <- self.VoteSubmissionFailures
	ch <- self.NotifierFailures
	ch <- self.DbErrors

	// Redis publisher
	ch <- self.RedisPublishErrors
	ch <- self.RedisPersistentErrors
	ch <- self.RedisMessagesPublished
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	// Run
	ch <- prometheus.MustNewConstMetric(self.UpForSeconds, prometheus.GaugeValue, float64(self.monitor.Report.Run.State.UpForSeconds.Load()))

	// Bridge
	ch <- prometheus.MustNewConstMetric(self.SessionsDeployed, prometheus.CounterValue, float64(self.monitor.Report.Bridge.State.SessionsDeployed.Load()))
	ch <- prometheus.MustNewConstMetric(self.SessionsFinalized, prometheus.CounterValue, float64(self.monitor.Report.Bridge.State.SessionsFinalized.Load()))
	ch <- prometheus.MustNewConstMetric(self.PollersActive, prometheus.GaugeValue, float64(self.monitor.Report.Bridge.State.PollersActive.Load()))
	ch <- prometheus.MustNewConstMetric(self.PollerTicks, prometheus.CounterValue, float64(self.monitor.Report.Bridge.State.PollerTicks.Load()))
	ch <- prometheus.MustNewConstMetric(self.VoteCountsUpserted, prometheus.CounterValue, float64(self.monitor.Report.Bridge.State.VoteCountsUpserted.Load()))
	ch <- prometheus.MustNewConstMetric(self.VotesSubmittedChain, prometheus.CounterValue, float64(self.monitor.Report.Bridge.State.VotesSubmittedChain.Load()))
	ch <- prometheus.MustNewConstMetric(self.VotesSubmittedStored, prometheus.CounterValue, float64(self.monitor.Report.Bridge.State.VotesSubmittedStored.Load()))

	// Errors
	ch <- prometheus.MustNewConstMetric(self.DeployErrors, prometheus.CounterValue, float64(self.monitor.Report.Bridge.Errors.Deploy.Load()))
	ch <- prometheus.MustNewConstMetric(self.PollerTickFailures, prometheus.CounterValue, float64(self.monitor.Report.Bridge.Errors.PollerTickFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.ReconciliationMismatches, prometheus.CounterValue, float64(self.monitor.Report.Bridge.Errors.ReconciliationMismatches.Load()))
	ch <- prometheus.MustNewConstMetric(self.VoteSubmissionFailures, prometheus.CounterValue, float64(self.monitor.Report.Bridge.Errors.VoteSubmissionFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.NotifierFailures, prometheus.CounterValue, float64(self.monitor.Report.Bridge.Errors.NotifierFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.DbErrors, prometheus.CounterValue, float64(self.monitor.Report.Bridge.Errors.DbErrors.Load()))

	// Redis publisher
	ch <- prometheus.MustNewConstMetric(self.RedisPublishErrors, prometheus.CounterValue, float64(self.monitor.Report.RedisPublisher.Errors.Publish.Load()))
	ch <- prometheus.MustNewConstMetric(self.RedisPersistentErrors, prometheus.CounterValue, float64(self.monitor.Report.RedisPublisher.Errors.PersistentFailure.Load()))
	ch <- prometheus.MustNewConstMetric(self.RedisMessagesPublished, prometheus.CounterValue, float64(self.monitor.Report.RedisPublisher.State.MessagesPublished.Load()))
}
