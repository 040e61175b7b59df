package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// QuestionCache implements domain.QuestionCache. Each question read model is
// one JSON string under question:{id} with a TTL; writers invalidate on every
// committed change to the question.
type QuestionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuestionCache creates a QuestionCache backed by the given Client.
func NewQuestionCache(c *Client, ttl time.Duration) *QuestionCache {
	return &QuestionCache{rdb: c.Underlying(), ttl: ttl}
}

func questionKey(id uint64) string { return "question:" + strconv.FormatUint(id, 10) }

// Set stores the view until the TTL expires.
func (qc *QuestionCache) Set(ctx context.Context, view domain.QuestionView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("redis: marshal question %d: %w", view.Question.ID, err)
	}
	if err := qc.rdb.Set(ctx, questionKey(view.Question.ID), data, qc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set question %d: %w", view.Question.ID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a cache miss.
func (qc *QuestionCache) Get(ctx context.Context, id uint64) (domain.QuestionView, error) {
	data, err := qc.rdb.Get(ctx, questionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.QuestionView{}, domain.ErrNotFound
		}
		return domain.QuestionView{}, fmt.Errorf("redis: get question %d: %w", id, err)
	}

	var view domain.QuestionView
	if err := json.Unmarshal(data, &view); err != nil {
		return domain.QuestionView{}, fmt.Errorf("redis: unmarshal question %d: %w", id, err)
	}
	return view, nil
}

// Invalidate drops the cached view of a question.
func (qc *QuestionCache) Invalidate(ctx context.Context, id uint64) error {
	if err := qc.rdb.Del(ctx, questionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate question %d: %w", id, err)
	}
	return nil
}

var _ domain.QuestionCache = (*QuestionCache)(nil)
