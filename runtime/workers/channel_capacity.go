package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically reports the length and capacity of subscription channels.
// Reading len and cap of a channel is non-blocking, so sampling never slows a consumer down.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	metricInterval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger, metricInterval time.Duration,
	channels ...NamedChannel) *ChannelCapacityWorker {
	if metricInterval <= 0 {
		metricInterval = DefaultMonitorInterval
	}
	return &ChannelCapacityWorker{
		log:            log,
		channels:       channels,
		metricInterval: metricInterval,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel sampling")
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *ChannelCapacityWorker) sample() {
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		observability.ChannelLength.WithLabelValues(nc.Name).Set(float64(v.Len()))
		observability.ChannelCapacity.WithLabelValues(nc.Name).Set(float64(v.Cap()))
	}
}
