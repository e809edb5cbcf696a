package resources

import (
	"encoding/json"
	"fmt"

	"github.com/komodore/core/internal/model"
)

// DecodeConfig round-trips a Resource's opaque RawConfig into one of the
// typed per-kind Config structs in internal/model/configs.go — the same
// JSON-blob-to-typed-struct boundary the teacher's store layer crosses
// when reading an UpdateRecord back out of bbolt, generalized here to ten
// kinds of config instead of one.
func DecodeConfig[T any](raw model.RawConfig) (T, error) {
	var out T
	data, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("marshal raw config: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode config: %w", err)
	}
	return out, nil
}

// EncodeConfig flattens a typed Config struct back into a RawConfig map
// for storage, preserving the "never nil" invariant (spec §3) even for a
// zero-value struct.
func EncodeConfig(v any) (model.RawConfig, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	out := model.RawConfig{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode into raw config: %w", err)
	}
	return out, nil
}
