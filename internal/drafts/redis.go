package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each draft under draft:<id> with the store ttl and indexes
// owners in a sorted set scored by update time.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func draftKey(id string) string    { return "draft:" + id }
func ownerKey(owner string) string { return "drafts:owner:" + owner }

func (s *RedisStore) Save(ctx context.Context, d Draft) error {
	if err := validDraft(d); err != nil {
		return err
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = s.now()
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	id := d.Snapshot.SessionID
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, draftKey(id), data, s.ttl)
		p.ZAdd(ctx, ownerKey(d.Owner), redis.Z{Score: float64(d.UpdatedAt.UnixMilli()), Member: id})
		if s.ttl > 0 {
			p.Expire(ctx, ownerKey(d.Owner), s.ttl)
		}
		return nil
	})
	return err
}

func (s *RedisStore) Load(ctx context.Context, id string) (Draft, error) {
	data, err := s.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return d, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	d, err := s.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, draftKey(id))
		p.ZRem(ctx, ownerKey(d.Owner), id)
		return nil
	})
	return err
}

func (s *RedisStore) List(ctx context.Context, owner string) ([]Summary, error) {
	ids, err := s.client.ZRevRange(ctx, ownerKey(owner), 0, 199).Result()
	if err != nil {
		return nil, err
	}
	out := []Summary{}
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = draftKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	var gone []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			gone = append(gone, ids[i])
			continue
		}
		var d Draft
		if json.Unmarshal([]byte(str), &d) != nil {
			continue
		}
		out = append(out, d.summary())
	}
	if len(gone) > 0 {
		// index entries whose draft key already expired
		s.client.ZRem(ctx, ownerKey(owner), gone...)
	}
	return out, nil
}
