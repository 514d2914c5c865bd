// Package entity defines the entities and errors used in the application.
// It includes the ShortURL struct, which represents a shortened URL together with
// its click history, the stats view built from it, and the error taxonomy shared
// by the use case and adapter layers.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when a short code is resolved after its expiry.
	ErrURLExpired = errors.New("url expired")
)

const (
	// DefaultValidityMinutes is used when no positive validity is supplied.
	DefaultValidityMinutes = 30
	// DefaultReferrer is reported for clicks recorded without a referrer.
	DefaultReferrer = "Direct"
	// DefaultLocation is reported for clicks recorded without a location.
	DefaultLocation = "Unknown"
)

// ShortURL represents a shortened URL.
type ShortURL struct {
	ID             int64     // ID is the store's surrogate key, zero if the store has none.
	ShortCode      string    // ShortCode is the unique code that identifies the URL.
	OriginalURL    string    // OriginalURL is the full URL that the short code resolves to.
	CreatedAt      time.Time // CreatedAt is the timestamp when the URL was created.
	Expiry         time.Time // Expiry is the timestamp after which the short code stops resolving.
	ClickCount     int64     // ClickCount is the number of recorded clicks.
	ClickAnalytics []Click   // ClickAnalytics holds the recorded clicks in chronological order.
}

// Click is one recorded access of a short code.
type Click struct {
	Timestamp time.Time
	Referrer  string // empty when the visitor sent no referrer
	Location  string // empty when the location could not be resolved
}

// ShortenParams carries the input of a shorten request.
type ShortenParams struct {
	OriginalURL string
	// ShortCode is the desired code; empty means one is generated.
	ShortCode string
	// Validity is the lifetime in minutes, fractions allowed; zero or less means DefaultValidityMinutes.
	Validity float64
}

// Visit describes the request that resolves a short code.
type Visit struct {
	Referrer string
	IP       string
}

// URLStats is the reporting view of a ShortURL.
type URLStats struct {
	OriginalURL    string
	CreatedAt      time.Time
	Expiry         time.Time
	TotalClicks    int
	ClickAnalytics []Click
}

// ExpiryFor returns the expiry of a URL created at createdAt that is valid for the given
// number of minutes, falling back to DefaultValidityMinutes.
func ExpiryFor(createdAt time.Time, minutes float64) time.Time {
	if minutes <= 0 {
		minutes = DefaultValidityMinutes
	}
	return createdAt.Add(time.Duration(minutes * float64(time.Minute)))
}

// IsExpired reports whether the URL has expired at now.
func (u *ShortURL) IsExpired(now time.Time) bool {
	return !u.Expiry.IsZero() && now.After(u.Expiry)
}

// Stats reshapes the URL and its click history into the reporting view.
func (u *ShortURL) Stats() *URLStats {
	clicks := make([]Click, 0, len(u.ClickAnalytics))

	for _, c := range u.ClickAnalytics {
		if c.Referrer == "" {
			c.Referrer = DefaultReferrer
		}
		if c.Location == "" {
			c.Location = DefaultLocation
		}
		clicks = append(clicks, c)
	}

	return &URLStats{
		OriginalURL:    u.OriginalURL,
		CreatedAt:      u.CreatedAt,
		Expiry:         u.Expiry,
		TotalClicks:    len(clicks),
		ClickAnalytics: clicks,
	}
}
