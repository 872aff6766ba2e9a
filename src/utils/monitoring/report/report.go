package report

type Report struct {
	Run            *RunReport            `json:"run,omitempty"`
	Bridge         *BridgeReport         `json:"bridge,omitempty"`
	RedisPublisher *RedisPublisherReport `json:"redis_publisher,omitempty"`
}
