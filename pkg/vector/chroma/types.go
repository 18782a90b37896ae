package chroma

import "github.com/papercomputeco/reposcope/pkg/vector"

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createCollectionRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
	Documents  []string         `json:"documents,omitempty"`
}

func newUpsertRequest(docs []vector.Document) upsertRequest {
	req := upsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
		Documents:  make([]string, len(docs)),
	}
	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Metadatas[i] = metadataMap(doc)
		req.Documents[i] = doc.Content
	}
	return req
}

// metadataMap flattens chunk metadata and flags every boundary prefix of the
// id as "p:<prefix>" = true.
func metadataMap(doc vector.Document) map[string]any {
	m := map[string]any{
		"path":       doc.Metadata.Path,
		"language":   doc.Metadata.Language,
		"start_line": doc.Metadata.StartLine,
		"end_line":   doc.Metadata.EndLine,
	}
	for _, p := range vector.BoundaryPrefixes(doc.ID) {
		m[prefixKeyPrefix+p] = true
	}
	return m
}

func metadataFrom(m map[string]any) vector.Metadata {
	var meta vector.Metadata
	meta.Path, _ = m["path"].(string)
	meta.Language, _ = m["language"].(string)

	// JSON numbers decode as float64.
	if v, ok := m["start_line"].(float64); ok {
		meta.StartLine = int(v)
	}
	if v, ok := m["end_line"].(float64); ok {
		meta.EndLine = int(v)
	}
	return meta
}

type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

// queryResponse holds one group per query embedding. The driver always
// sends exactly one.
type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float32        `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Documents [][]string         `json:"documents"`
}

func (r queryResponse) results() []vector.QueryResult {
	out := []vector.QueryResult{}
	if len(r.IDs) == 0 {
		return out
	}

	distances := first(r.Distances)
	metadatas := first(r.Metadatas)
	documents := first(r.Documents)

	for i, id := range r.IDs[0] {
		res := vector.QueryResult{Document: vector.Document{ID: id}}
		if i < len(metadatas) && metadatas[i] != nil {
			res.Metadata = metadataFrom(metadatas[i])
		}
		if i < len(documents) {
			res.Content = documents[i]
		}
		// Cosine space: distance = 1 - similarity.
		if i < len(distances) {
			res.Score = 1 - distances[i]
		}
		out = append(out, res)
	}
	return out
}

func first[T any](groups [][]T) []T {
	if len(groups) == 0 {
		return nil
	}
	return groups[0]
}

type getRequest struct {
	Where   map[string]any `json:"where,omitempty"`
	Include []string       `json:"include"`
}

type getResponse struct {
	IDs []string `json:"ids"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}
