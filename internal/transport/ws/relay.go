package ws

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const updatesPattern = "session:*:updates"

// Relay forwards change signals published by any server instance to the local hub.
type Relay struct {
	client *redis.Client
	hub    *Hub
}

// NewRelay creates a relay from redis pub/sub into hub
func NewRelay(client *redis.Client, hub *Hub) *Relay {
	return &Relay{client: client, hub: hub}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, updatesPattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.hub.logger.Info("relaying session updates", "pattern", updatesPattern)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			sessionID, version, ok := parseUpdate(msg.Channel, msg.Payload)
			if !ok {
				r.hub.logger.Warn("malformed session update", "channel", msg.Channel, "payload", msg.Payload)
				continue
			}
			r.hub.SessionChanged(sessionID, version)
		}
	}
}

func parseUpdate(channel, payload string) (string, int64, bool) {
	rest, ok := strings.CutPrefix(channel, "session:")
	if !ok {
		return "", 0, false
	}
	sessionID, ok := strings.CutSuffix(rest, ":updates")
	if !ok || sessionID == "" {
		return "", 0, false
	}
	version, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return sessionID, version, true
}
