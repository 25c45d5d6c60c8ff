package leaderboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// MemoryStorage keeps results for the lifetime of the process.
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data), nil
}

func (m *MemoryStorage) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = slices.Clone(data)
	return nil
}

func (m *MemoryStorage) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

// FileStorage keeps results in one JSON file, replaced atomically on save.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Load(context.Context) ([]byte, error) {
	b, err := os.ReadFile(f.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return b, nil
}

func (f *FileStorage) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return os.Rename(tmp.Name(), f.path)
}

func (f *FileStorage) Delete(context.Context) error {
	if err := os.Remove(f.path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.path, err)
	}
	return nil
}

// RedisStorage keeps results as one string value.
type RedisStorage struct {
	redis redis.UniversalClient
	key   string
}

func NewRedisStorage(r redis.UniversalClient, key string) *RedisStorage {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStorage{redis: r, key: key}
}

func (r *RedisStorage) Load(ctx context.Context) ([]byte, error) {
	b, err := r.redis.Get(ctx, r.key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.key, err)
	}
	return b, nil
}

func (r *RedisStorage) Save(ctx context.Context, data []byte) error {
	// TODO: retry on error
	if err := r.redis.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", r.key, err)
	}
	return nil
}

// PostgresStorage keeps results as one row per key.
type PostgresStorage struct {
	db  *pgxpool.Pool
	key string
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS leaderboards (
	key         TEXT PRIMARY KEY,
	data        JSONB NOT NULL,
	update_time TIMESTAMPTZ NOT NULL
);`

func NewPostgresStorage(db *pgxpool.Pool, key string) *PostgresStorage {
	if key == "" {
		key = DefaultKey
	}
	return &PostgresStorage{db: db, key: key}
}

// Migrate creates the leaderboards table if it does not exist.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create leaderboards table: %w", err)
	}
	return nil
}

func (p *PostgresStorage) Load(ctx context.Context) ([]byte, error) {
	const stmt = `SELECT data FROM leaderboards WHERE key = $1;`

	var b []byte
	err := p.db.QueryRow(ctx, stmt, p.key).Scan(&b)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", p.key, err)
	}
	return b, nil
}

func (p *PostgresStorage) Save(ctx context.Context, data []byte) error {
	const stmt = `
INSERT INTO leaderboards (key, data, update_time)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, update_time = EXCLUDED.update_time;`

	if _, err := p.db.Exec(ctx, stmt, p.key, string(data), time.Now()); err != nil {
		return fmt.Errorf("upsert %s: %w", p.key, err)
	}
	return nil
}

func (p *PostgresStorage) Delete(ctx context.Context) error {
	const stmt = `DELETE FROM leaderboards WHERE key = $1;`

	if _, err := p.db.Exec(ctx, stmt, p.key); err != nil {
		return fmt.Errorf("delete %s: %w", p.key, err)
	}
	return nil
}
