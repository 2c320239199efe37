package reconcile

import (
	"time"

	"github.com/spf13/viper"
)

// Config tunes batch sizes and pacing of the sync operations.
type Config struct {
	QueueBatchSize int
	PageSize       int
	Concurrency    int
	PauseEvery     int
	Pause          time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueBatchSize: 200,
		PageSize:       1000,
		Concurrency:    10,
		PauseEvery:     20,
		Pause:          time.Second,
	}
}

// ConfigFromViper reads the sync.* keys, keeping defaults for unset ones.
func ConfigFromViper() Config {
	cfg := DefaultConfig()
	if v := viper.GetInt("sync.queue_batch_size"); v > 0 {
		cfg.QueueBatchSize = v
	}
	if v := viper.GetInt("sync.page_size"); v > 0 {
		cfg.PageSize = v
	}
	if v := viper.GetInt("sync.concurrency"); v > 0 {
		cfg.Concurrency = v
	}
	if viper.IsSet("sync.pause_every") {
		cfg.PauseEvery = viper.GetInt("sync.pause_every")
	}
	if viper.IsSet("sync.pause") {
		cfg.Pause = viper.GetDuration("sync.pause")
	}
	return cfg
}
