package precompute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/canopy-network/govlens/pkg/analytics"
)

// ErrInvalidKey is returned for keys that cannot name a single file.
var ErrInvalidKey = errors.New("precompute: invalid key")

// FileSink writes <Dir>/<key>.json. Files are replaced atomically so a
// reader never sees a partial object.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink { return &FileSink{Dir: dir} }

func (s *FileSink) Name() string { return "file" }

// Path is the file holding key.
func (s *FileSink) Path(key string) string { return filepath.Join(s.Dir, key+".json") }

func (s *FileSink) Write(ctx context.Context, key string, d analytics.Distributions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.Dir, "."+key+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path(key))
}

// KV is the part of the Redis client RedisSink needs.
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Publish(ctx context.Context, channel string, message interface{})
}

// RedisSink stores each object under <prefix>:stats:<key> and announces it
// on <prefix>:stats.updated with the key as payload.
type RedisSink struct {
	kv     KV
	prefix string
	ttl    time.Duration
}

func NewRedisSink(kv KV, prefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{kv: kv, prefix: prefix, ttl: ttl}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Key(key string) string { return s.prefix + ":stats:" + key }

func (s *RedisSink) Channel() string { return s.prefix + ":stats.updated" }

func (s *RedisSink) Write(ctx context.Context, key string, d analytics.Distributions) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, s.Key(key), b, s.ttl); err != nil {
		return err
	}
	s.kv.Publish(ctx, s.Channel(), key)
	return nil
}
