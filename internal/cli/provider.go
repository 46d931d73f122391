package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hydrologic/mainstem/internal/arcgis"
	"github.com/hydrologic/mainstem/internal/config"
	"github.com/hydrologic/mainstem/internal/provider"
	"github.com/hydrologic/mainstem/internal/store"
)

// buildProvider constructs the configured network data source. The
// returned closer is a no-op for providers with nothing to release.
func buildProvider(ctx context.Context, cfg *config.Config) (provider.Interface, io.Closer, error) {
	switch cfg.Provider.Name {
	case "sqlite":
		st, err := store.Open(cfg.Provider.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite provider: %w", err)
		}
		return st, st, nil
	case "arcgis":
		p, err := arcgis.New(ctx, arcgis.Config{
			URL:      cfg.Provider.URL,
			Username: cfg.Provider.Username,
			Password: cfg.Provider.Password,
			FieldMap: cfg.Provider.FieldMap,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open arcgis provider: %w", err)
		}
		return p, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
