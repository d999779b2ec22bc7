package router

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// Embedder turns texts into vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float64, error)
}

// Exemplars are reference phrases per route. The "engineering" route maps
// to SMART; every other route maps to FAST.
type Exemplars map[string][]string

// DefaultExemplars returns the built-in route phrases.
func DefaultExemplars() Exemplars {
	return Exemplars{
		"engineering": {"write python code", "debug error", "aws lambda", "sql query", "api implementation"},
		"general":     {"write email", "summarize text", "marketing copy", "meeting notes"},
	}
}

const smartRoute = "engineering"

// EmbeddingClassifier compares the prompt embedding against exemplar
// embeddings by cosine similarity. The route with the highest single
// similarity wins; ties go to SMART.
type EmbeddingClassifier struct {
	embedder  Embedder
	model     string
	exemplars Exemplars

	mu      sync.Mutex
	vectors map[string][][]float64
}

// NewEmbeddingClassifier creates a classifier. Exemplar vectors are fetched
// lazily on first use and cached once they load successfully.
func NewEmbeddingClassifier(embedder Embedder, model string, exemplars Exemplars) *EmbeddingClassifier {
	if len(exemplars) == 0 {
		exemplars = DefaultExemplars()
	}
	return &EmbeddingClassifier{
		embedder:  embedder,
		model:     model,
		exemplars: exemplars,
	}
}

func (c *EmbeddingClassifier) NeedsSmart(ctx context.Context, text string) (bool, error) {
	routes, err := c.routeVectors(ctx)
	if err != nil {
		return false, err
	}

	vecs, err := c.embedder.Embed(ctx, c.model, []string{text})
	if err != nil {
		return false, fmt.Errorf("embedding prompt: %w", err)
	}
	if len(vecs) != 1 {
		return false, fmt.Errorf("embedding prompt: got %d vectors", len(vecs))
	}

	smartScore := math.Inf(-1)
	otherScore := math.Inf(-1)
	for route, exemplarVecs := range routes {
		for _, v := range exemplarVecs {
			score := Cosine(vecs[0], v)
			if route == smartRoute {
				smartScore = math.Max(smartScore, score)
			} else {
				otherScore = math.Max(otherScore, score)
			}
		}
	}
	return smartScore >= otherScore, nil
}

func (c *EmbeddingClassifier) routeVectors(ctx context.Context) (map[string][][]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vectors != nil {
		return c.vectors, nil
	}

	vectors := make(map[string][][]float64, len(c.exemplars))
	for route, phrases := range c.exemplars {
		if len(phrases) == 0 {
			continue
		}
		vecs, err := c.embedder.Embed(ctx, c.model, phrases)
		if err != nil {
			return nil, fmt.Errorf("embedding %s exemplars: %w", route, err)
		}
		vectors[route] = vecs
	}
	if len(vectors[smartRoute]) == 0 {
		return nil, errors.New("no engineering exemplars")
	}
	c.vectors = vectors
	return vectors, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
