// Package usecase implements the business logic of the URL shortener: short code
// allocation, click recording and the stats view.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vadimbarashkov/shorturls/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrMaxRetriesExceeded is returned when every generated short code collided with an existing one.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

const (
	shortCodeAlphabet      = "0123456789abcdef"
	defaultShortCodeLength = 6
	maxRetries             = 5
)

type urlRepository interface {
	Save(ctx context.Context, url *entity.ShortURL) (*entity.ShortURL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.ShortURL, error)
	AddClick(ctx context.Context, shortCode string, click entity.Click) error
}

type locator interface {
	Locate(ip string) string
}

// Option configures a URLUseCase.
type Option func(*URLUseCase)

// WithShortCodeLength sets the length of generated short codes.
func WithShortCodeLength(n int) Option {
	return func(uc *URLUseCase) {
		uc.shortCodeLength = n
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(uc *URLUseCase) {
		uc.now = now
	}
}

type URLUseCase struct {
	shortCodeLength int
	urlRepo         urlRepository
	locator         locator
	now             func() time.Time
}

func NewURLUseCase(urlRepo urlRepository, locator locator, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		shortCodeLength: defaultShortCodeLength,
		urlRepo:         urlRepo,
		locator:         locator,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// ShortenURL allocates a short code for params.OriginalURL and stores the new record.
//
// A caller-supplied code must be unused, otherwise entity.ErrShortCodeExists is returned.
// Generated codes are redrawn on collision up to maxRetries times.
func (uc *URLUseCase) ShortenURL(ctx context.Context, params entity.ShortenParams) (*entity.ShortURL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if params.ShortCode != "" {
		url, err := uc.shortenWithCode(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return url, nil
	}

	for i := 0; i < maxRetries; i++ {
		shortCode, err := gonanoid.Generate(shortCodeAlphabet, uc.shortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url, err := uc.urlRepo.Save(ctx, uc.newShortURL(shortCode, params))
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

func (uc *URLUseCase) shortenWithCode(ctx context.Context, params entity.ShortenParams) (*entity.ShortURL, error) {
	_, err := uc.urlRepo.RetrieveByShortCode(ctx, params.ShortCode)
	switch {
	case err == nil:
		return nil, entity.ErrShortCodeExists
	case !errors.Is(err, entity.ErrURLNotFound):
		return nil, fmt.Errorf("failed to check short code availability: %w", err)
	}

	// Save still reports ErrShortCodeExists if a concurrent request took the code.
	url, err := uc.urlRepo.Save(ctx, uc.newShortURL(params.ShortCode, params))
	if err != nil {
		if errors.Is(err, entity.ErrShortCodeExists) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to shorten url: %w", err)
	}

	return url, nil
}

func (uc *URLUseCase) newShortURL(shortCode string, params entity.ShortenParams) *entity.ShortURL {
	createdAt := uc.now().UTC().Truncate(time.Millisecond)

	return &entity.ShortURL{
		ShortCode:      shortCode,
		OriginalURL:    params.OriginalURL,
		CreatedAt:      createdAt,
		Expiry:         entity.ExpiryFor(createdAt, params.Validity),
		ClickCount:     0,
		ClickAnalytics: []entity.Click{},
	}
}

// ResolveShortCode returns the URL behind shortCode and records the visit as a click.
// Expired URLs are reported with entity.ErrURLExpired and are not counted.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string, visit entity.Visit) (*entity.ShortURL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	now := uc.now().UTC()
	if url.IsExpired(now) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLExpired)
	}

	click := entity.Click{
		Timestamp: now.Truncate(time.Millisecond),
		Referrer:  visit.Referrer,
		Location:  uc.locator.Locate(visit.IP),
	}

	if err := uc.urlRepo.AddClick(ctx, shortCode, click); err != nil {
		return nil, fmt.Errorf("%s: failed to record click: %w", op, err)
	}

	return url, nil
}

// GetURLStats returns the stats view of the URL behind shortCode.
func (uc *URLUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URLStats, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url.Stats(), nil
}
