package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestdash/internal/config"
	"harvestdash/internal/sheets/memory"
	"harvestdash/internal/sheets/published"
	"harvestdash/internal/sheets/xlsx"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataSource: "ftp"})
	require.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataSource:       "published",
		PublishedBaseURL: "https://example.com/export",
		PublishedSheets:  []string{"Sales"},
	})
	require.NoError(t, err)
	assert.Equal(t, PublishedSource, cfg.Type)
	assert.Equal(t, []string{"Sales"}, cfg.PublishedSheets)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"demo", Config{Type: DemoSource}, false},
		{"unknown", Config{Type: "nope"}, true},
		{"sheets without id", Config{Type: SheetsSource}, true},
		{"published without tabs", Config{Type: PublishedSource, PublishedBaseURL: "https://x"}, true},
		{"xlsx without path", Config{Type: XLSXSource}, true},
		{"xlsx", Config{Type: XLSXSource, XLSXPath: "farm.xlsx"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateSource(t *testing.T) {
	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	f := NewFactory(nil, func() time.Time { return now })
	ctx := context.Background()

	res, err := f.CreateSource(ctx, Config{Type: DemoSource})
	require.NoError(t, err)
	assert.Equal(t, memory.SourceName, res.Source.Name())
	snap, err := res.Source.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, now, snap.FetchedAt)

	res, err = f.CreateSource(ctx, Config{
		Type:             PublishedSource,
		PublishedBaseURL: "https://example.com/export",
		PublishedSheets:  []string{"Sales"},
	})
	require.NoError(t, err)
	assert.Equal(t, published.SourceName, res.Source.Name())

	res, err = f.CreateSource(ctx, Config{Type: XLSXSource, XLSXPath: filepath.Join(t.TempDir(), "farm.xlsx")})
	require.NoError(t, err)
	assert.Equal(t, xlsx.SourceName, res.Source.Name())

	_, err = f.CreateSource(ctx, Config{Type: SheetsSource, GoogleSpreadsheetID: "abc"})
	require.Error(t, err, "no credentials configured")
}

func TestGetSourceTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"demo", "sheets", "published", "xlsx"}, GetSourceTypeStrings())
}
