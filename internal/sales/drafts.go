package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
)

// ErrDraftNotFound indicates the draft key is unknown or has expired.
var ErrDraftNotFound = errors.New("draft not found")

const draftKeyPrefix = "sales:draft:"

// Draft is a document being edited by a single client session.
type Draft struct {
	Key       string                   `json:"key"`
	Document  *documents.SalesDocument `json:"document"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// DraftStore keeps in-progress drafts between requests.
type DraftStore interface {
	Create(ctx context.Context, doc *documents.SalesDocument) (*Draft, error)
	Get(ctx context.Context, key string) (*Draft, error)
	Save(ctx context.Context, draft *Draft) error
	Delete(ctx context.Context, key string) error
}

// RedisDraftStore stores drafts as JSON blobs with a sliding TTL.
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
}

// NewRedisDraftStore constructs a draft store.
func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDraftStore{client: client, ttl: ttl, clock: time.Now}
}

// Create stores doc under a fresh key.
func (s *RedisDraftStore) Create(ctx context.Context, doc *documents.SalesDocument) (*Draft, error) {
	draft := &Draft{Key: uuid.NewString(), Document: doc}
	if err := s.Save(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// Get loads a draft and refreshes its TTL.
func (s *RedisDraftStore) Get(ctx context.Context, key string) (*Draft, error) {
	if _, err := uuid.Parse(key); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, key)
	}
	payload, err := s.client.GetEx(ctx, draftKeyPrefix+key, s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("sales: load draft: %w", err)
	}
	var draft Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return nil, fmt.Errorf("sales: decode draft: %w", err)
	}
	return &draft, nil
}

// Save overwrites the stored draft.
func (s *RedisDraftStore) Save(ctx context.Context, draft *Draft) error {
	draft.UpdatedAt = s.clock().UTC()
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("sales: encode draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKeyPrefix+draft.Key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("sales: store draft: %w", err)
	}
	return nil
}

// Delete discards a draft. Unknown keys are ignored.
func (s *RedisDraftStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, draftKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("sales: delete draft: %w", err)
	}
	return nil
}
