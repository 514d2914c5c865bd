// Package geoip resolves visitor IP addresses to human readable locations using a
// MaxMind GeoIP2/GeoLite2 City database.
package geoip

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/oschwald/geoip2-golang"
)

const localhost = "Localhost"

// Locator looks up IP addresses. A Locator without a database resolves every public
// address to the empty string, which the stats view reports as unknown.
type Locator struct {
	reader *geoip2.Reader
	logger *slog.Logger
}

// Open loads the database at path. An empty path yields a Locator without a database.
func Open(path string, logger *slog.Logger) (*Locator, error) {
	const op = "adapter.geoip.Open"

	if path == "" {
		logger.Warn("geoip database path not set, click locations are disabled")
		return &Locator{logger: logger}, nil
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	logger.Info("geoip database loaded", slog.Uint64("build_epoch", uint64(reader.Metadata().BuildEpoch)))

	return &Locator{reader: reader, logger: logger}, nil
}

// Locate returns "City, Country", "Country" or an empty string when ip cannot be resolved.
func (l *Locator) Locate(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	if parsed.IsLoopback() {
		return localhost
	}

	if l.reader == nil {
		return ""
	}

	record, err := l.reader.City(parsed)
	if err != nil {
		l.logger.Error("geoip lookup failed", slog.String("ip", ip), slog.Any("err", err))
		return ""
	}

	country := record.Country.Names["en"]
	if country == "" {
		country = record.Country.IsoCode
	}

	city := record.City.Names["en"]

	switch {
	case city != "" && country != "":
		return city + ", " + country
	case country != "":
		return country
	default:
		return city
	}
}

func (l *Locator) Close() error {
	if l.reader == nil {
		return nil
	}
	return l.reader.Close()
}
