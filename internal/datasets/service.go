// Package datasets copies public STAC documents into a workspace's
// saved-data catalogue and removes them again.
package datasets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"example.com/resource-catalogue/internal/blobstore"
	"example.com/resource-catalogue/internal/notify"
)

const savedDataCatalog = "saved-data"

// Actions announced to the harvester.
const (
	ActionCreate = "create_item"
	ActionUpdate = "update_item"
	ActionDelete = "delete_item"
)

// BodyFetcher returns the raw document at a URL.
type BodyFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Service manages saved-data documents in the workspace bucket.
type Service struct {
	fetcher   BodyFetcher
	store     blobstore.Store
	publisher notify.Publisher
	bucket    string
	logger    *slog.Logger
}

func NewService(fetcher BodyFetcher, store blobstore.Store, publisher notify.Publisher, bucket string, logger *slog.Logger) *Service {
	return &Service{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		bucket:    bucket,
		logger:    logger.With("component", "datasets"),
	}
}

// Key maps a catalogue URL onto its saved-data key. Everything after the
// ninth slash is kept; keys without an extension get ".json".
func Key(workspace, rawURL string) string {
	parts := strings.SplitN(rawURL, "/", 10)
	key := fmt.Sprintf("%s/%s/%s", workspace, savedDataCatalog, parts[len(parts)-1])
	if path.Ext(key) == "" {
		key += ".json"
	}
	return key
}

// nestedURLs returns the parent collection URL, when the path has one,
// followed by rawURL itself.
func nestedURLs(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return []string{rawURL}
	}
	segments := strings.Split(u.Path, "/")
	for i, s := range segments {
		if s != "collections" {
			continue
		}
		end := i + 2
		if end > len(segments) {
			end = len(segments)
		}
		collection := fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, strings.Join(segments[:end], "/"))
		if collection == rawURL {
			break
		}
		return []string{collection, rawURL}
	}
	return []string{rawURL}
}

// Save copies rawURL and its collection into the workspace and announces
// the keys. action is ActionCreate or ActionUpdate.
func (s *Service) Save(ctx context.Context, workspace, rawURL, action string) (notify.Event, error) {
	var added, updated []string
	for _, u := range nestedURLs(rawURL) {
		body, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			return notify.Event{}, fmt.Errorf("fetch %s: %w", u, err)
		}
		key := Key(workspace, u)
		s.logger.Info("uploading saved item", "workspace", workspace, "key", key)
		existed, err := s.store.Put(ctx, s.bucket, key, body)
		if err != nil {
			return notify.Event{}, fmt.Errorf("upload %s: %w", key, err)
		}
		if existed {
			updated = append(updated, key)
		} else {
			added = append(added, key)
		}
	}

	event := notify.DatasetEvent(workspace, s.bucket, action, added, updated, nil)
	if err := s.publisher.Publish(ctx, event); err != nil {
		return event, fmt.Errorf("publish %s: %w", event.ID, err)
	}
	return event, nil
}

// Remove deletes the saved copy of rawURL. A key that is already gone is
// still announced as deleted.
func (s *Service) Remove(ctx context.Context, workspace, rawURL string) (notify.Event, error) {
	key := Key(workspace, rawURL)
	s.logger.Info("deleting saved item", "workspace", workspace, "key", key)
	if err := s.store.Delete(ctx, s.bucket, key); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return notify.Event{}, fmt.Errorf("delete %s: %w", key, err)
	}

	event := notify.DatasetEvent(workspace, s.bucket, ActionDelete, nil, nil, []string{key})
	if err := s.publisher.Publish(ctx, event); err != nil {
		return event, fmt.Errorf("publish %s: %w", event.ID, err)
	}
	return event, nil
}
