package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"nanobanana-studio/modules/common/config"
	"nanobanana-studio/modules/session"
)

func TestSessionStore_InMemoryWithoutRedis(t *testing.T) {
	store := sessionStore(context.Background(), &config.Config{SessionTTL: time.Hour}, zerolog.Nop())
	assert.IsType(t, &session.MemoryStore{}, store)
}

func TestSessionStore_FallsBackWhenRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := &config.Config{RedisHost: "127.0.0.1", RedisPort: "1", SessionTTL: time.Hour}
	store := sessionStore(ctx, cfg, zerolog.Nop())
	assert.IsType(t, &session.MemoryStore{}, store)
}
