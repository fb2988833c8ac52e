package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Persister loads and saves store snapshots.
type Persister interface {
	Load(ctx context.Context) (map[string]any, error)
	Save(ctx context.Context, state map[string]any) error
}

// Codec encodes snapshots
type Codec interface {
	Marshal(v map[string]any) ([]byte, error)
	Unmarshal(data []byte) (map[string]any, error)
}

// YAMLCodec encodes snapshots as YAML
type YAMLCodec struct{}

// Marshal implements Codec
func (YAMLCodec) Marshal(v map[string]any) ([]byte, error) { return yaml.Marshal(v) }

// Unmarshal implements Codec
func (YAMLCodec) Unmarshal(data []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MsgpackCodec encodes snapshots as MessagePack
type MsgpackCodec struct{}

// Marshal implements Codec
func (MsgpackCodec) Marshal(v map[string]any) ([]byte, error) { return msgpack.Marshal(v) }

// Unmarshal implements Codec
func (MsgpackCodec) Unmarshal(data []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CodecFor picks a codec from a file extension: .yaml and .yml use YAML,
// .msgpack and .mp use MessagePack.
func CodecFor(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLCodec{}, nil
	case ".msgpack", ".mp":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("no store codec for %q (use .yaml, .yml, .msgpack or .mp)", path)
	}
}

// FilePersister keeps the snapshot in one file. A missing file loads as empty
// state.
type FilePersister struct {
	Path  string
	Codec Codec
}

// NewFilePersister creates a persister whose codec follows the file extension.
func NewFilePersister(path string) (*FilePersister, error) {
	codec, err := CodecFor(path)
	if err != nil {
		return nil, err
	}
	return &FilePersister{Path: path, Codec: codec}, nil
}

// Load implements Persister
func (p *FilePersister) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	state, err := p.Codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.Path, err)
	}
	return state, nil
}

// Save implements Persister. The file is replaced atomically.
func (p *FilePersister) Save(ctx context.Context, state map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := p.Codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.Path, err)
	}
	if dir := filepath.Dir(p.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.Path)
}
