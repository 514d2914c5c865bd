package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shorturls/internal/entity"
)

func newURL(shortCode string) *entity.ShortURL {
	createdAt := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

	return &entity.ShortURL{
		ShortCode:   shortCode,
		OriginalURL: "https://example.com",
		CreatedAt:   createdAt,
		Expiry:      createdAt.Add(30 * time.Minute),
	}
}

func TestURLRepository_Save(t *testing.T) {
	repo := NewURLRepository()

	url, err := repo.Save(context.Background(), newURL("abc123"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), url.ID)
	assert.Equal(t, "abc123", url.ShortCode)
	assert.NotNil(t, url.ClickAnalytics)

	_, err = repo.Save(context.Background(), newURL("abc123"))
	assert.ErrorIs(t, err, entity.ErrShortCodeExists)
}

func TestURLRepository_RetrieveByShortCode(t *testing.T) {
	repo := NewURLRepository()

	_, err := repo.RetrieveByShortCode(context.Background(), "abc123")
	assert.ErrorIs(t, err, entity.ErrURLNotFound)

	_, err = repo.Save(context.Background(), newURL("abc123"))
	require.NoError(t, err)

	url, err := repo.RetrieveByShortCode(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", url.OriginalURL)
	assert.Zero(t, url.ClickCount)
	assert.Empty(t, url.ClickAnalytics)
}

func TestURLRepository_AddClick(t *testing.T) {
	repo := NewURLRepository()
	clickedAt := time.Date(2024, 10, 1, 12, 1, 0, 0, time.UTC)

	err := repo.AddClick(context.Background(), "abc123", entity.Click{Timestamp: clickedAt})
	assert.ErrorIs(t, err, entity.ErrURLNotFound)

	_, err = repo.Save(context.Background(), newURL("abc123"))
	require.NoError(t, err)

	require.NoError(t, repo.AddClick(context.Background(), "abc123", entity.Click{Timestamp: clickedAt}))
	require.NoError(t, repo.AddClick(context.Background(), "abc123", entity.Click{
		Timestamp: clickedAt.Add(time.Second),
		Referrer:  "https://news.example.com",
	}))

	url, err := repo.RetrieveByShortCode(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, int64(2), url.ClickCount)
	assert.Equal(t, []entity.Click{
		{Timestamp: clickedAt},
		{Timestamp: clickedAt.Add(time.Second), Referrer: "https://news.example.com"},
	}, url.ClickAnalytics)

	url.ClickAnalytics[0].Referrer = "mutated"

	again, err := repo.RetrieveByShortCode(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Empty(t, again.ClickAnalytics[0].Referrer)
}

func TestURLRepository_ConcurrentSave(t *testing.T) {
	repo := NewURLRepository()

	const workers = 20

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		saved    int
		conflict int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := repo.Save(context.Background(), newURL("abc123"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				saved++
			case assert.ErrorIs(t, err, entity.ErrShortCodeExists):
				conflict++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, saved)
	assert.Equal(t, workers-1, conflict)
}
