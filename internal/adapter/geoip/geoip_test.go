package geoip

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		l, err := Open("", discardLogger())

		require.NoError(t, err)
		assert.NotNil(t, l)
		assert.NoError(t, l.Close())
	})

	t.Run("missing database file", func(t *testing.T) {
		l, err := Open(filepath.Join(t.TempDir(), "GeoLite2-City.mmdb"), discardLogger())

		assert.Error(t, err)
		assert.Nil(t, l)
	})
}

func TestLocator_Locate(t *testing.T) {
	l, err := Open("", discardLogger())
	require.NoError(t, err)

	tests := []struct {
		name string
		ip   string
		want string
	}{
		{name: "empty ip", ip: "", want: ""},
		{name: "invalid ip", ip: "not-an-ip", want: ""},
		{name: "ipv4 loopback", ip: "127.0.0.1", want: "Localhost"},
		{name: "ipv6 loopback", ip: "::1", want: "Localhost"},
		{name: "public ip without database", ip: "203.0.113.7", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Locate(tt.ip))
		})
	}
}
