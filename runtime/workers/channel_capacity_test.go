package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestChannelCapacityWorker_Samples_Length_And_Capacity(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a buffered channel holding two values
	ch := make(chan int, 8)
	ch <- 1
	ch <- 2
	worker := NewChannelCapacityWorker(log, time.Hour,
		NamedChannel{Name: "capacity_test", Channel: ch},
		NamedChannel{Name: "not_a_channel", Channel: 42})

	// When a sample is taken
	worker.sample()

	// Then both gauges reflect the channel
	req.Equal(2.0, testutil.ToFloat64(observability.ChannelLength.WithLabelValues("capacity_test")))
	req.Equal(8.0, testutil.ToFloat64(observability.ChannelCapacity.WithLabelValues("capacity_test")))
}

func TestChannelCapacityWorker_StopsWithContext(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	worker := NewChannelCapacityWorker(log, 5*time.Millisecond,
		NamedChannel{Name: "stop_test", Channel: make(chan struct{}, 1)})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req.NoError(worker.Run(ctx))
}
