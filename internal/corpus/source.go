package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Source lists and reads raw corpus files from wherever the knowledge
// base is published.
type Source interface {
	Type() string
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, key string) ([]byte, error)
}

type createFunc func(args interface{}) (Source, error)

var registry = map[string]createFunc{}

func Register(name string, create createFunc) {
	registry[strings.ToLower(name)] = create
}

func New(name string, args interface{}) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("corpus.type is required")
	}
	create, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("unknown corpus source: %s", name)
	}
	return create(args)
}

func decodeConfig(args interface{}, out interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode source config: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode source config: %w", err)
	}
	return nil
}
