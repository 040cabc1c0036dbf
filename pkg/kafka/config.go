package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // -1 waits for all in-sync replicas

	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	CommitInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "task-engine",
		ClientID:      "task-engine",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,

		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
	}
}

// Topics the engine publishes to or consumes from
var Topics = struct {
	WavesEvents     string
	TasksEvents     string
	CrossDockEvents string
	SlottingEvents  string
	ReceivingEvents string
}{
	WavesEvents:     "wms.waves.events",
	TasksEvents:     "wms.tasks.events",
	CrossDockEvents: "wms.crossdock.events",
	SlottingEvents:  "wms.slotting.events",
	ReceivingEvents: "wms.receiving.events",
}
