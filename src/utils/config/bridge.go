package config

import (
	"time"

	"github.com/spf13/viper"
)

type Bridge struct {
	// How often on-chain results are reconciled into the database
	PollerInterval time.Duration

	// Timeout for one reconciliation tick (2-3 chain reads + one upsert)
	PollerTickTimeout time.Duration

	// Voting deadline applied when a session has no scheduled end date
	DefaultSessionDuration time.Duration

	// Max lifecycle events waiting to be published
	NotifierChannelBufferLength int

	// Redis channel lifecycle events are published to
	NotifierRedisChannel string

	// Optional application server endpoint notified about lifecycle
	// events. Empty disables webhook delivery.
	NotifierWebhookUrl string

	// Timeout for a single webhook delivery
	NotifierWebhookTimeout time.Duration

	// Max time between failed deployment retries issued by operators
	DeployBackoffMaxElapsedTime time.Duration
	DeployBackoffMaxInterval    time.Duration
}

func setBridgeDefaults() {
	viper.SetDefault("Bridge.PollerInterval", "15s")
	viper.SetDefault("Bridge.PollerTickTimeout", "30s")
	viper.SetDefault("Bridge.DefaultSessionDuration", "168h")
	viper.SetDefault("Bridge.NotifierChannelBufferLength", "64")
	viper.SetDefault("Bridge.NotifierRedisChannel", "votex:sessions:lifecycle")
	viper.SetDefault("Bridge.NotifierWebhookUrl", "")
	viper.SetDefault("Bridge.NotifierWebhookTimeout", "10s")
	viper.SetDefault("Bridge.DeployBackoffMaxElapsedTime", "2m")
	viper.SetDefault("Bridge.DeployBackoffMaxInterval", "20s")
}
