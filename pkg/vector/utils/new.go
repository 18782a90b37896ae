// Package vectorutils selects a vector.Driver implementation from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/papercomputeco/reposcope/pkg/vector"
	"github.com/papercomputeco/reposcope/pkg/vector/chroma"
	"github.com/papercomputeco/reposcope/pkg/vector/inmemory"
	"github.com/papercomputeco/reposcope/pkg/vector/qdrant"
	"github.com/papercomputeco/reposcope/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType is one of "inmemory", "sqlite", "qdrant", "chroma".
	ProviderType string

	// Target is a URL for chroma, host:port for qdrant and a file path for sqlite.
	Target     string
	Collection string
	Dimensions uint
	Logger     *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "", "inmemory":
		return inmemory.NewDriver(), nil
	case "sqlite":
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Target:         o.Target,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
			APIKey:         os.Getenv("QDRANT_API_KEY"),
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.Target,
			CollectionName: o.Collection,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
