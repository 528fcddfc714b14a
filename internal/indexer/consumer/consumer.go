// Package consumer turns corpus reload requests from Kafka into index
// reloads. Every searcher replica joins its own consumer group so each one
// rebuilds its snapshot.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/showsearch/showsearch/internal/indexer"
	"github.com/showsearch/showsearch/pkg/config"
	"github.com/showsearch/showsearch/pkg/kafka"
)

// EventReload is the event-type header of ReloadEvent messages.
const EventReload = "corpus-reload"

// ReloadEvent asks searchers to re-read the corpus.
type ReloadEvent struct {
	Reason      string    `json:"reason"`
	Source      string    `json:"source"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewReloadEvent stamps a request with the current time.
func NewReloadEvent(reason, source string) kafka.Event {
	return kafka.Event{
		Key:  source,
		Type: EventReload,
		Value: ReloadEvent{
			Reason:      reason,
			Source:      source,
			RequestedAt: time.Now().UTC(),
		},
	}
}

// Reloader is the part of *indexer.Engine the consumer drives.
type Reloader interface {
	Current() (*indexer.Snapshot, error)
	Reload(ctx context.Context) (*indexer.Snapshot, error)
}

// New returns a consumer of the reload topic for one replica.
func New(cfg config.KafkaConfig, engine Reloader, replica string) *kafka.Consumer {
	return kafka.NewConsumer(cfg, cfg.Topics.CorpusReload, replica, HandleReload(engine))
}

// HandleReload reloads engine for each reload event. Requests issued before
// the current snapshot was built are already reflected in it and are
// skipped, which collapses a burst of requests into one rebuild.
func HandleReload(engine Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-consumer")
	return func(ctx context.Context, msg kafka.Message) error {
		if msg.Type != "" && msg.Type != EventReload {
			return nil
		}
		event, err := kafka.DecodeJSON[ReloadEvent](msg.Value)
		if err != nil {
			logger.Error("failed to decode reload event", "offset", msg.Offset, "error", err)
			return nil
		}
		if snap, err := engine.Current(); err == nil && !event.RequestedAt.IsZero() && event.RequestedAt.Before(snap.BuiltAt) {
			logger.Debug("reload already applied",
				"requested_at", event.RequestedAt,
				"generation", snap.Generation,
			)
			return nil
		}
		logger.Info("reload requested", "reason", event.Reason, "source", event.Source)
		snap, err := engine.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reloading corpus for %q: %w", event.Reason, err)
		}
		logger.Info("reload applied", "generation", snap.Generation)
		return nil
	}
}
