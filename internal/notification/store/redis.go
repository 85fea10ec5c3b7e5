package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"kontrakpro/internal/notification/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/sentinel"
)

const (
	notificationKeyPrefix = "notification:"
	dedupeKeyPrefix       = "notification_dedupe:"
	createdIndexKey       = "notifications:by_created"
	unreadSetKey          = "notifications:unread"

	// maxExecuteAttempts bounds WATCH retries when other writers touch the
	// same record between read and commit.
	maxExecuteAttempts = 10
)

// RedisStore keeps each notification as a JSON value, with a sorted set
// ordering ids by creation time and a set of unread ids.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func notificationKey(id domain.NotificationID) string {
	return notificationKeyPrefix + id.String()
}

func (s *RedisStore) Create(ctx context.Context, n *models.Notification) error {
	if n.DedupeKey == "" {
		return s.insert(ctx, n)
	}
	existing, err := s.insertDeduped(ctx, n)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("dedupe key %q: %w", n.DedupeKey, sentinel.ErrConflict)
	}
	return nil
}

// CreateIfAbsent inserts n unless its dedupe key is taken, in which case the
// notification holding the key is returned with created=false.
func (s *RedisStore) CreateIfAbsent(ctx context.Context, n *models.Notification) (*models.Notification, bool, error) {
	if n.DedupeKey == "" {
		if err := s.insert(ctx, n); err != nil {
			return nil, false, err
		}
		return n.Clone(), true, nil
	}
	existing, err := s.insertDeduped(ctx, n)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	return n.Clone(), true, nil
}

// insertDeduped watches the dedupe key and writes it together with the
// record and its indexes in one MULTI, so the key never points at a record
// that is not there yet. It returns the holder when the key is taken.
func (s *RedisStore) insertDeduped(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	key := dedupeKeyPrefix + n.DedupeKey
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}

	var existing *models.Notification
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case err == nil:
			id, err := domain.ParseNotificationID(raw)
			if err != nil {
				return fmt.Errorf("dedupe key %q holds invalid id: %w", n.DedupeKey, err)
			}
			existing, err = s.FindByID(ctx, id)
			return err
		case !errors.Is(err, redis.Nil):
			return fmt.Errorf("read dedupe key: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, n.ID.String(), 0)
			pipe.Set(ctx, notificationKey(n.ID), data, 0)
			s.index(ctx, pipe, n)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxExecuteAttempts; attempt++ {
		existing = nil
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return existing, nil
	}
	return nil, fmt.Errorf("dedupe key %q: %w", n.DedupeKey, sentinel.ErrConflict)
}

func (s *RedisStore) insert(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	ok, err := s.client.SetNX(ctx, notificationKey(n.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	if !ok {
		return fmt.Errorf("notification %s: %w", n.ID, sentinel.ErrConflict)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.index(ctx, pipe, n)
		return nil
	})
	if err != nil {
		return fmt.Errorf("index notification: %w", err)
	}
	return nil
}

func (s *RedisStore) index(ctx context.Context, pipe redis.Pipeliner, n *models.Notification) {
	pipe.ZAdd(ctx, createdIndexKey, redis.Z{Score: float64(n.CreatedAt.UnixNano()), Member: n.ID.String()})
	if !n.IsRead() {
		pipe.SAdd(ctx, unreadSetKey, n.ID.String())
	}
}

func (s *RedisStore) FindByID(ctx context.Context, id domain.NotificationID) (*models.Notification, error) {
	data, err := s.client.Get(ctx, notificationKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return decodeNotification(data)
}

// List returns matching notifications newest first.
func (s *RedisStore) List(ctx context.Context, f models.ListFilter) ([]*models.Notification, error) {
	ids, err := s.client.ZRevRange(ctx, createdIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read notification index: %w", err)
	}
	out := make([]*models.Notification, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = notificationKeyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		n, err := decodeNotification([]byte(raw))
		if err != nil {
			return nil, err
		}
		if f.Matches(n) {
			out = append(out, n)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return models.Newer(out[i], out[j]) })
	return out, nil
}

func (s *RedisStore) CountUnread(ctx context.Context) (int, error) {
	count, err := s.client.SCard(ctx, unreadSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return int(count), nil
}

// Execute watches the record key, applies validate and mutate, and commits
// with MULTI. A concurrent write aborts the transaction and the whole
// read-validate-mutate cycle is retried.
func (s *RedisStore) Execute(ctx context.Context, id domain.NotificationID, validate func(*models.Notification) error, mutate func(*models.Notification)) (*models.Notification, error) {
	key := notificationKey(id)
	var result *models.Notification

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get notification: %w", err)
		}
		n, err := decodeNotification(data)
		if err != nil {
			return err
		}
		if err := validate(n); err != nil {
			return err
		}
		mutate(n)

		updated, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			if n.IsRead() {
				pipe.SRem(ctx, unreadSetKey, id.String())
			} else {
				pipe.SAdd(ctx, unreadSetKey, id.String())
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = n
		return nil
	}

	for attempt := 0; attempt < maxExecuteAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("notification %s: %w", id, sentinel.ErrConflict)
}

func decodeNotification(data []byte) (*models.Notification, error) {
	var n models.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	return &n, nil
}
