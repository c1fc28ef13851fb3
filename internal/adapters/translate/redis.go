package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/voxbridge/internal/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// job is what a queue worker pops. The worker pushes a reply envelope onto ReplyTo.
type job struct {
	ID      string                  `json:"id"`
	ReplyTo string                  `json:"replyTo"`
	Request core.TranslationRequest `json:"request"`
}

// Redis pushes jobs onto a list and blocks on a per-request reply list.
type Redis struct {
	client *redis.Client
	queue  string
}

func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info().Str("module", "translate.redis").Str("addr", opts.Addr).Str("queue", opts.Queue).Msg("connected")
	return NewRedisClient(client, opts.Queue), nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(client *redis.Client, queue string) *Redis {
	return &Redis{client: client, queue: queue}
}

func (r *Redis) Translate(ctx context.Context, req core.TranslationRequest) (core.TranslationResult, error) {
	id := uuid.NewString()
	replyKey := r.queue + ":reply:" + id
	data, err := json.Marshal(job{ID: id, ReplyTo: replyKey, Request: req})
	if err != nil {
		return core.TranslationResult{}, fmt.Errorf("encode job: %w", err)
	}
	if err := r.client.LPush(ctx, r.queue, data).Err(); err != nil {
		return core.TranslationResult{}, fmt.Errorf("enqueue: %w", err)
	}
	defer r.client.Del(context.WithoutCancel(ctx), replyKey)

	wait := 3 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
	}
	if wait <= 0 {
		return core.TranslationResult{}, context.DeadlineExceeded
	}
	res, err := r.client.BRPop(ctx, wait, replyKey).Result()
	if errors.Is(err, redis.Nil) {
		return core.TranslationResult{}, context.DeadlineExceeded
	}
	if err != nil {
		return core.TranslationResult{}, fmt.Errorf("await reply: %w", err)
	}
	// BRPop yields [key, value].
	return decodeReply([]byte(res[1]))
}

func (r *Redis) Close() error {
	return r.client.Close()
}
