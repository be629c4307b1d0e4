package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/danmu-dashboard-go/internal/view"
	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned for unknown or expired sessions
var ErrNotFound = errors.New("session not found")

const sessionPrefix = "session:"

// Storage interface defines view state operations
type Storage interface {
	GetState(ctx context.Context, sessionID string) (*view.State, error)
	SaveState(ctx context.Context, sessionID string, state *view.State, ttl time.Duration) error
	DeleteState(ctx context.Context, sessionID string) error
	CountSessions(ctx context.Context) (int, error)
	CleanupExpired(ctx context.Context) error
}

// Recorder receives storage statistics
type Recorder interface {
	RecordStorageOperation(operation, status string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordStorageOperation(string, string, time.Duration) {}

// Manager manages different storage backends
type Manager struct {
	storage     Storage
	sessionTTL  time.Duration
	recorder    Recorder
	logger      *logrus.Logger
	redisClient *redis.Client
}

// NewManager creates a new storage manager
func NewManager(cfg *config.Config, recorder Recorder, logger *logrus.Logger) (*Manager, error) {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	manager := &Manager{
		sessionTTL: cfg.Server.SessionTTL,
		recorder:   recorder,
		logger:     logger,
	}

	switch cfg.Storage.Type {
	case "redis":
		redisStorage, err := NewRedisStorage(cfg, logger)
		if err != nil {
			return nil, err
		}
		manager.storage = redisStorage
		manager.redisClient = redisStorage.client
	case "memory":
		manager.storage = NewMemoryStorage(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	// Start cleanup goroutine
	if cfg.Storage.Memory.CleanupInterval > 0 {
		go manager.startCleanup(cfg.Storage.Memory.CleanupInterval)
	}

	return manager, nil
}

// NewManagerWithStorage wraps an existing backend
func NewManagerWithStorage(storage Storage, sessionTTL time.Duration, recorder Recorder, logger *logrus.Logger) *Manager {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Manager{
		storage:    storage,
		sessionTTL: sessionTTL,
		recorder:   recorder,
		logger:     logger,
	}
}

func (m *Manager) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := m.storage.CleanupExpired(ctx); err != nil {
			m.logger.WithError(err).Error("Failed to cleanup expired sessions")
		}
		cancel()
	}
}

func (m *Manager) record(operation string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	m.recorder.RecordStorageOperation(operation, status, time.Since(start))
}

// GetState loads the view state of a session
func (m *Manager) GetState(ctx context.Context, sessionID string) (*view.State, error) {
	start := time.Now()
	state, err := m.storage.GetState(ctx, sessionID)
	m.record("get_state", start, err)
	return state, err
}

// SaveState stores the view state of a session for the session TTL
func (m *Manager) SaveState(ctx context.Context, sessionID string, state *view.State) error {
	start := time.Now()
	err := m.storage.SaveState(ctx, sessionID, state, m.sessionTTL)
	m.record("save_state", start, err)
	return err
}

func (m *Manager) DeleteState(ctx context.Context, sessionID string) error {
	start := time.Now()
	err := m.storage.DeleteState(ctx, sessionID)
	m.record("delete_state", start, err)
	return err
}

// CountSessions returns the number of stored sessions
func (m *Manager) CountSessions(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := m.storage.CountSessions(ctx)
	m.record("count_sessions", start, err)
	return n, err
}

// Ping checks the backend
func (m *Manager) Ping(ctx context.Context) error {
	if m.redisClient == nil {
		return nil
	}
	return m.redisClient.Ping(ctx).Err()
}

// Close releases the backend connection
func (m *Manager) Close() error {
	if m.redisClient == nil {
		return nil
	}
	return m.redisClient.Close()
}

// RedisStorage implements storage using Redis
type RedisStorage struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisStorage(cfg *config.Config, logger *logrus.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStorage{
		client: client,
		logger: logger,
	}, nil
}

func (r *RedisStorage) GetState(ctx context.Context, sessionID string) (*view.State, error) {
	data, err := r.client.Get(ctx, sessionPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var state view.State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

func (r *RedisStorage) SaveState(ctx context.Context, sessionID string, state *view.State, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionPrefix+sessionID, data, ttl).Err()
}

func (r *RedisStorage) DeleteState(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionPrefix+sessionID).Err()
}

func (r *RedisStorage) CountSessions(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, sessionPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

func (r *RedisStorage) CleanupExpired(ctx context.Context) error {
	// Redis handles expiration automatically
	return nil
}

// MemoryStorage implements storage using in-memory cache
type MemoryStorage struct {
	states *cache.Cache
	logger *logrus.Logger
}

func NewMemoryStorage(cfg *config.Config, logger *logrus.Logger) *MemoryStorage {
	return &MemoryStorage{
		states: cache.New(cfg.Storage.Memory.DefaultExpiration, cfg.Storage.Memory.CleanupInterval),
		logger: logger,
	}
}

// States are stored by value so callers never share a pointer
func (m *MemoryStorage) GetState(ctx context.Context, sessionID string) (*view.State, error) {
	if val, found := m.states.Get(sessionPrefix + sessionID); found {
		state := val.(view.State)
		return &state, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) SaveState(ctx context.Context, sessionID string, state *view.State, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	m.states.Set(sessionPrefix+sessionID, *state, ttl)
	return nil
}

func (m *MemoryStorage) DeleteState(ctx context.Context, sessionID string) error {
	m.states.Delete(sessionPrefix + sessionID)
	return nil
}

func (m *MemoryStorage) CountSessions(ctx context.Context) (int, error) {
	return m.states.ItemCount(), nil
}

func (m *MemoryStorage) CleanupExpired(ctx context.Context) error {
	m.states.DeleteExpired()
	return nil
}
