package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"voiceswap/internal/model"

	"github.com/redis/go-redis/v9"
)

// SessionCache holds read snapshots of sessions. It is never consulted by a
// transition; only GetSession reads through it.
type SessionCache interface {
	Set(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// setIfNewer writes the snapshot only when it carries a higher version than the
// one already cached. KEYS[1]=snapshot key, ARGV[1]=version, ARGV[2]=payload, ARGV[3]=ttl ms.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// snapshot keeps participants alongside the session, which hides them from JSON.
type snapshot struct {
	Session      *model.Session      `json:"session"`
	Participants []model.Participant `json:"participants"`
}

// NewSessionCache creates a new session snapshot cache
func NewSessionCache(client *redis.Client, ttl time.Duration) SessionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &sessionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *sessionCache) key(id string) string {
	return fmt.Sprintf("session:%s:snapshot", id)
}

func (c *sessionCache) Set(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(snapshot{Session: session, Participants: session.Participants})
	if err != nil {
		return err
	}
	return setIfNewer.Run(ctx, c.client, []string{c.key(session.ID)},
		session.Version, data, c.ttl.Milliseconds()).Err()
}

func (c *sessionCache) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := c.client.HGet(ctx, c.key(id), "data").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}
	if snap.Session == nil {
		return nil, nil
	}
	snap.Session.Participants = snap.Participants
	return snap.Session, nil
}

func (c *sessionCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
