// Package qdrant provides a Qdrant vector database driver over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/reposcope/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for storing reposcope chunks.
	DefaultCollectionName = "reposcope"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	fieldChunkID   = "chunk_id"
	fieldPrefixes  = "id_prefixes"
	fieldContent   = "content"
	fieldPath      = "path"
	fieldLanguage  = "language"
	fieldStartLine = "start_line"
	fieldEndLine   = "end_line"
)

// pointNamespace derives stable point UUIDs from chunk ids.
var pointNamespace = uuid.MustParse("8f0e2c55-3f7e-4f43-9d37-6f1f3e2b7a10")

// Driver implements vector.Driver on a Qdrant collection using cosine distance.
//
// Qdrant point ids must be integers or UUIDs, so each chunk id is mapped to a
// name based UUID and kept in the payload. Prefix scoping uses a keyword index
// over the chunk id's boundary prefixes.
type Driver struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is "host" or "host:port" of the gRPC endpoint.
	Target string

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	// Dimensions is the vector size used when creating the collection.
	Dimensions uint

	// APIKey is sent with every request when non-empty.
	APIKey string

	UseTLS bool
}

// NewDriver connects to Qdrant and ensures the collection and its prefix
// index exist.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Target == "" {
		return nil, fmt.Errorf("qdrant target is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	host, port, err := splitTarget(c.Target)
	if err != nil {
		return nil, err
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", errors.Join(vector.ErrConnection, err))
	}

	d := &Driver{
		client:     client,
		collection: collection,
		logger:     logger,
	}

	if err := d.ensureCollection(ctx, c.Dimensions); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to Qdrant",
		"target", c.Target,
		"collection", collection,
		"dimensions", c.Dimensions,
	)

	return d, nil
}

func splitTarget(target string) (string, int, error) {
	target = strings.TrimPrefix(strings.TrimPrefix(target, "http://"), "https://")
	if !strings.Contains(target, ":") {
		return target, DefaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("parsing qdrant target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parsing qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}

func (d *Driver) ensureCollection(ctx context.Context, dimensions uint) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", d.collection, errors.Join(vector.ErrConnection, err))
	}
	if exists {
		return nil
	}

	if err := d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("creating collection %q: %w", d.collection, err)
	}

	if _, err := d.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: d.collection,
		FieldName:      fieldPrefixes,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	}); err != nil {
		return fmt.Errorf("creating prefix index: %w", err)
	}

	return nil
}

// PointID returns the Qdrant point UUID for a chunk id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Payload builds the point payload stored for doc.
func Payload(doc vector.Document) map[string]any {
	prefixes := vector.BoundaryPrefixes(doc.ID)
	list := make([]any, len(prefixes))
	for i, p := range prefixes {
		list[i] = p
	}

	return map[string]any{
		fieldChunkID:   doc.ID,
		fieldPrefixes:  list,
		fieldContent:   doc.Content,
		fieldPath:      doc.Metadata.Path,
		fieldLanguage:  doc.Metadata.Language,
		fieldStartLine: int64(doc.Metadata.StartLine),
		fieldEndLine:   int64(doc.Metadata.EndLine),
	}
}

// PrefixFilter returns the filter selecting ids under prefix, nil for all.
func PrefixFilter(prefix string) (*qdrant.Filter, error) {
	if prefix == "" {
		return nil, nil
	}
	if !vector.IsBoundaryPrefix(prefix) {
		return nil, fmt.Errorf("qdrant prefix %q: %w", prefix, vector.ErrUnsupportedPrefix)
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchKeyword(fieldPrefixes, prefix),
		},
	}, nil
}

// Insert upserts docs as points.
func (d *Driver) Insert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(doc.ID)),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(Payload(doc)),
		}
	}

	if _, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant",
		"count", len(docs),
	)

	return nil
}

// Query returns the topK nearest points under prefix.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, prefix string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	filter, err := PrefixFilter(prefix)
	if err != nil {
		return nil, err
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, vector.QueryResult{
			Document: DocumentFromPayload(p.GetPayload()),
			Score:    p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant",
		"prefix", prefix,
		"results", len(results),
	)

	return results, nil
}

// DocumentFromPayload rebuilds a document (without embedding) from a payload.
func DocumentFromPayload(payload map[string]*qdrant.Value) vector.Document {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	num := func(key string) int {
		if v, ok := payload[key]; ok {
			return int(v.GetIntegerValue())
		}
		return 0
	}

	return vector.Document{
		ID:      str(fieldChunkID),
		Content: str(fieldContent),
		Metadata: vector.Metadata{
			Path:      str(fieldPath),
			Language:  str(fieldLanguage),
			StartLine: num(fieldStartLine),
			EndLine:   num(fieldEndLine),
		},
	}
}

// DeleteByPrefix counts then deletes every point under prefix.
func (d *Driver) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	filter, err := PrefixFilter(prefix)
	if err != nil {
		return 0, err
	}
	if filter == nil {
		filter = &qdrant.Filter{}
	}

	count, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if _, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	}); err != nil {
		return 0, fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted documents from qdrant",
		"prefix", prefix,
		"count", count,
	)

	return int(count), nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}
