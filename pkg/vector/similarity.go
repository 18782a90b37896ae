package vector

import (
	"math"
	"strings"
)

// Similarity returns the cosine similarity of a and b. It is 0 when either
// vector has zero magnitude or the lengths differ.
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// BoundaryPrefixes returns every prefix of id that ends with "_", shortest
// first. "repo1_auth.py_chunk_0" yields "repo1_", "repo1_auth.py_" and
// "repo1_auth.py_chunk_". Remote drivers store these so prefix scoped queries
// and deletes become exact keyword matches.
func BoundaryPrefixes(id string) []string {
	var out []string
	for i := 0; i < len(id); i++ {
		if id[i] == '_' {
			out = append(out, id[:i+1])
		}
	}
	return out
}

// IsBoundaryPrefix reports whether prefix can be answered from BoundaryPrefixes.
func IsBoundaryPrefix(prefix string) bool {
	return prefix == "" || strings.HasSuffix(prefix, "_")
}
