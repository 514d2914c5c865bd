// Package memory implements an in-process URL repository for local runs and tests.
// Records are lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vadimbarashkov/shorturls/internal/entity"
)

type URLRepository struct {
	mu     sync.RWMutex
	nextID int64
	urls   map[string]*entity.ShortURL
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		urls: make(map[string]*entity.ShortURL),
	}
}

func (r *URLRepository) Save(_ context.Context, url *entity.ShortURL) (*entity.ShortURL, error) {
	const op = "adapter.repository.memory.URLRepository.Save"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[url.ShortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	r.nextID++

	rec := &entity.ShortURL{
		ID:             r.nextID,
		ShortCode:      url.ShortCode,
		OriginalURL:    url.OriginalURL,
		CreatedAt:      url.CreatedAt,
		Expiry:         url.Expiry,
		ClickAnalytics: []entity.Click{},
	}
	r.urls[url.ShortCode] = rec

	return clone(rec), nil
}

func (r *URLRepository) RetrieveByShortCode(_ context.Context, shortCode string) (*entity.ShortURL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByShortCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return clone(rec), nil
}

func (r *URLRepository) AddClick(_ context.Context, shortCode string, click entity.Click) error {
	const op = "adapter.repository.memory.URLRepository.AddClick"

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.urls[shortCode]
	if !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	rec.ClickAnalytics = append(rec.ClickAnalytics, click)
	rec.ClickCount++

	return nil
}

// clone copies rec so callers never share the stored click slice.
func clone(rec *entity.ShortURL) *entity.ShortURL {
	c := *rec
	c.ClickAnalytics = append(make([]entity.Click, 0, len(rec.ClickAnalytics)), rec.ClickAnalytics...)
	return &c
}
