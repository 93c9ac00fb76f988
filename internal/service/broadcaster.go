package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notifier fans out "session changed" signals (avoids import cycle with ws).
// Clients re-read the session on receipt.
type Notifier interface {
	SessionChanged(sessionID string, version int64)
}

type nopNotifier struct{}

func (nopNotifier) SessionChanged(string, int64) {}

// UpdatesChannel is the pub/sub channel for a session's change signals
func UpdatesChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:updates", sessionID)
}

// RedisNotifier publishes change signals so every server instance can push them
// to its own websocket clients.
type RedisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, logger: logger}
}

func (n *RedisNotifier) SessionChanged(sessionID string, version int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := n.client.Publish(ctx, UpdatesChannel(sessionID), strconv.FormatInt(version, 10)).Err()
	if err != nil {
		n.logger.Warn("publish session update failed", "session", sessionID, "err", err)
	}
}
