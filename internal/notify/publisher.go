// Package notify publishes events describing which workspace blob keys
// changed, for the downstream harvester.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event lists the keys added, updated and deleted in a workspace bucket.
type Event struct {
	ID          string   `json:"id"`
	Workspace   string   `json:"workspace"`
	BucketName  string   `json:"bucket_name"`
	AddedKeys   []string `json:"added_keys"`
	UpdatedKeys []string `json:"updated_keys"`
	DeletedKeys []string `json:"deleted_keys"`
	Source      string   `json:"source"`
	Target      string   `json:"target"`
}

// OrderEvent is published after an order record was written.
func OrderEvent(workspace, bucket string, added []string) Event {
	return Event{
		ID:          workspace + "/order_item",
		Workspace:   workspace,
		BucketName:  bucket,
		AddedKeys:   nonNil(added),
		UpdatedKeys: []string{},
		DeletedKeys: []string{},
		Source:      "/",
		Target:      "/",
	}
}

// DatasetEvent is published by the user-dataset endpoints; action is one of
// create_item, update_item or delete_item.
func DatasetEvent(workspace, bucket, action string, added, updated, deleted []string) Event {
	return Event{
		ID:          workspace + "/" + action,
		Workspace:   workspace,
		BucketName:  bucket,
		AddedKeys:   nonNil(added),
		UpdatedKeys: nonNil(updated),
		DeletedKeys: nonNil(deleted),
		Source:      workspace,
		Target:      "user-datasets/" + workspace,
	}
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}

// Publisher is a fire-and-forget event sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// Conn is the subset of *nats.Conn used by NATSPublisher.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	IsConnected() bool
	Close()
}

const publishAttempts = 3

// NATSPublisher publishes events on a NATS subject.
type NATSPublisher struct {
	nc      Conn
	subject string
	logger  *slog.Logger
	backoff time.Duration
}

// Connect dials NATS, retrying the initial connection a few times.
func Connect(ctx context.Context, url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for i := 0; i < 3; i++ {
		var nc *nats.Conn
		nc, err = nats.Connect(url,
			nats.Name("resource-catalogue"),
			nats.MaxReconnects(5),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err == nil {
			logger.Info("connected to nats", "url", url, "subject", subject)
			return NewNATSPublisher(nc, subject, logger), nil
		}

		logger.Warn("connect to nats failed", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to nats: %w", err)
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect to nats after retries: %w", err)
}

func NewNATSPublisher(nc Conn, subject string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: subject, logger: logger, backoff: time.Second}
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	for i := 0; i < publishAttempts; i++ {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("context cancelled while publishing", "event_id", event.ID)
			return err
		}
		if err := p.nc.Publish(p.subject, data); err != nil {
			p.logger.Warn("publish failed", "attempt", i+1, "error", err)
			time.Sleep(p.backoff)
			continue
		}
		if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
			p.logger.Warn("flush failed", "attempt", i+1, "error", err)
			continue
		}
		p.logger.Info("event published", "event_id", event.ID, "added", len(event.AddedKeys), "deleted", len(event.DeletedKeys))
		return nil
	}

	p.logger.Error("publish failed after retries", "event_id", event.ID)
	return errors.New("publish event: retries exhausted")
}

func (p *NATSPublisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
		p.logger.Info("nats connection closed")
	}
}

// LogPublisher only logs events. It is used when no bus is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("event (not published)", "event_id", event.ID, "workspace", event.Workspace,
		"added_keys", event.AddedKeys, "updated_keys", event.UpdatedKeys, "deleted_keys", event.DeletedKeys)
	return nil
}

func (p *LogPublisher) Close() {}
