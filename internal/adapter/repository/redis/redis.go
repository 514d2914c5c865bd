// Package redis implements the URL repository on top of Redis.
//
// A URL is stored under three keys: the record itself as JSON (created with SETNX, which
// enforces short code uniqueness), the click list and the click counter.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shorturls/internal/entity"
)

const keyPrefix = "url:"

// The short code is wrapped in a hash tag so all keys of a URL land in the same cluster slot.
func urlKey(shortCode string) string    { return keyPrefix + "{" + shortCode + "}" }
func clicksKey(shortCode string) string { return urlKey(shortCode) + ":clicks" }
func countKey(shortCode string) string  { return urlKey(shortCode) + ":click_count" }

// addClickScript appends a click and bumps the counter only if the URL exists.
var addClickScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("RPUSH", KEYS[2], ARGV[1])
redis.call("INCR", KEYS[3])
return 1
`)

type urlRedis struct {
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	Expiry      time.Time `json:"expiry"`
}

type clickRedis struct {
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer,omitempty"`
	Location  string    `json:"location,omitempty"`
}

// New connects to the Redis server described by opts and verifies the connection.
func New(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	const op = "adapter.repository.redis.New"

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}

type URLRepository struct {
	client redis.UniversalClient
}

func NewURLRepository(client redis.UniversalClient) *URLRepository {
	return &URLRepository{client: client}
}

func (r *URLRepository) Save(ctx context.Context, url *entity.ShortURL) (*entity.ShortURL, error) {
	const op = "adapter.repository.redis.URLRepository.Save"

	data, err := json.Marshal(urlRedis{
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		Expiry:      url.Expiry,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode url: %w", op, err)
	}

	ok, err := r.client.SetNX(ctx, urlKey(url.ShortCode), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to set url key: %w", op, err)
	}

	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	return &entity.ShortURL{
		ShortCode:      url.ShortCode,
		OriginalURL:    url.OriginalURL,
		CreatedAt:      url.CreatedAt,
		Expiry:         url.Expiry,
		ClickAnalytics: []entity.Click{},
	}, nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.ShortURL, error) {
	const op = "adapter.repository.redis.URLRepository.RetrieveByShortCode"

	var (
		urlCmd    *redis.StringCmd
		countCmd  *redis.StringCmd
		clicksCmd *redis.StringSliceCmd
	)

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		urlCmd = pipe.Get(ctx, urlKey(shortCode))
		countCmd = pipe.Get(ctx, countKey(shortCode))
		clicksCmd = pipe.LRange(ctx, clicksKey(shortCode), 0, -1)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: failed to get url keys: %w", op, err)
	}

	data, err := urlCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url key: %w", op, err)
	}

	var rec urlRedis
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%s: failed to decode url: %w", op, err)
	}

	count, err := countCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: failed to get click count: %w", op, err)
	}

	rawClicks, err := clicksCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get clicks: %w", op, err)
	}

	url := &entity.ShortURL{
		ShortCode:      rec.ShortCode,
		OriginalURL:    rec.OriginalURL,
		CreatedAt:      rec.CreatedAt.UTC(),
		Expiry:         rec.Expiry.UTC(),
		ClickCount:     count,
		ClickAnalytics: make([]entity.Click, 0, len(rawClicks)),
	}

	for _, raw := range rawClicks {
		var c clickRedis
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("%s: failed to decode click: %w", op, err)
		}

		url.ClickAnalytics = append(url.ClickAnalytics, entity.Click{
			Timestamp: c.Timestamp.UTC(),
			Referrer:  c.Referrer,
			Location:  c.Location,
		})
	}

	return url, nil
}

func (r *URLRepository) AddClick(ctx context.Context, shortCode string, click entity.Click) error {
	const op = "adapter.repository.redis.URLRepository.AddClick"

	data, err := json.Marshal(clickRedis{
		Timestamp: click.Timestamp,
		Referrer:  click.Referrer,
		Location:  click.Location,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to encode click: %w", op, err)
	}

	keys := []string{urlKey(shortCode), clicksKey(shortCode), countKey(shortCode)}

	added, err := addClickScript.Run(ctx, r.client, keys, data).Int()
	if err != nil {
		return fmt.Errorf("%s: failed to add click: %w", op, err)
	}

	if added != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return nil
}
