package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalDimensions is the fixed width of the fallback vector space.
const LocalDimensions = 384

type localConfig struct {
	Dimensions int `json:"dimensions"`
}

// localEmbedProvider is a deterministic, offline embedder: each token
// is hashed into one of D buckets, accumulated with 1/sqrt(n) weight
// and the result is L2-normalized. Quality is far below a real model
// but the vector space is stable across runs, which keeps similarity
// comparisons meaningful during a provider outage.
type localEmbedProvider struct {
	dimensions int
}

func NewLocalProvider(dimensions int) IEmbedProvider {
	if dimensions <= 0 {
		dimensions = LocalDimensions
	}
	return &localEmbedProvider{dimensions: dimensions}
}

func (p *localEmbedProvider) Name() string {
	return "local"
}

func (p *localEmbedProvider) ModelName() string {
	return "local-hash-v1"
}

func (p *localEmbedProvider) Dimensions() int {
	return p.dimensions
}

func (p *localEmbedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.embedOne(text), nil
}

func (p *localEmbedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.embedOne(text)
	}
	return vectors, nil
}

func (p *localEmbedProvider) embedOne(text string) []float32 {
	vector := make([]float32, p.dimensions)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vector
	}
	weight := float32(1.0 / math.Sqrt(float64(len(tokens))))
	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(token))
		bucket := int(h.Sum32()) % p.dimensions
		if bucket < 0 {
			bucket += p.dimensions
		}
		vector[bucket] += weight
	}
	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1.0 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= inv
		}
	}
	return vector
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func createLocalFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &localConfig{}
	if args != nil {
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
	}
	return NewLocalProvider(cfg.Dimensions), nil
}

func init() {
	Register("local", createLocalFactory)
}
