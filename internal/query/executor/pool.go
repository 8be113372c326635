// Package executor runs query plans across partition segments in
// parallel and merges the per-segment results.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ConnectionPool manages read-only SQLite connections to downloaded
// segment files.
type ConnectionPool struct {
	mu sync.RWMutex

	connections map[string]*connectionEntry
	maxTotal    int
	total       int
	idleTimeout time.Duration
	closed      bool
}

type connectionEntry struct {
	db       *sql.DB
	refCount int
	lastUsed time.Time
}

// PoolConfig configures the connection pool.
type PoolConfig struct {
	MaxTotalConnections int
	IdleTimeout         time.Duration
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxTotalConnections: 64,
		IdleTimeout:         5 * time.Minute,
	}
}

// NewConnectionPool creates a pool and starts its idle-connection sweep.
func NewConnectionPool(config PoolConfig) *ConnectionPool {
	if config.MaxTotalConnections <= 0 {
		config.MaxTotalConnections = 64
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 5 * time.Minute
	}

	pool := &ConnectionPool{
		connections: make(map[string]*connectionEntry),
		maxTotal:    config.MaxTotalConnections,
		idleTimeout: config.IdleTimeout,
	}
	go pool.sweepLoop()
	return pool
}

// Get returns a connection for the segment file at path. The caller must
// Release it when done.
func (p *ConnectionPool) Get(ctx context.Context, path string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("pool: closed")
	}

	if entry, ok := p.connections[path]; ok {
		entry.refCount++
		entry.lastUsed = time.Now()
		return entry.db, nil
	}

	if p.total >= p.maxTotal {
		if !p.evictIdleLocked() {
			return nil, fmt.Errorf("pool: maximum connections reached (%d)", p.maxTotal)
		}
	}

	db, err := p.open(ctx, path)
	if err != nil {
		return nil, err
	}

	p.connections[path] = &connectionEntry{db: db, refCount: 1, lastUsed: time.Now()}
	p.total++
	return db, nil
}

// Release drops a reference taken by Get.
func (p *ConnectionPool) Release(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.connections[path]; ok {
		entry.refCount--
		entry.lastUsed = time.Now()
	}
}

func (p *ConnectionPool) open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_query_only=true", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("pool: failed to open segment: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(p.idleTimeout)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pool: failed to ping segment: %w", err)
	}
	return db, nil
}

// evictIdleLocked closes the least recently used idle connection.
func (p *ConnectionPool) evictIdleLocked() bool {
	var oldestPath string
	var oldestTime time.Time

	for path, entry := range p.connections {
		if entry.refCount == 0 && (oldestPath == "" || entry.lastUsed.Before(oldestTime)) {
			oldestPath = path
			oldestTime = entry.lastUsed
		}
	}
	if oldestPath == "" {
		return false
	}

	p.connections[oldestPath].db.Close()
	delete(p.connections, oldestPath)
	p.total--
	return true
}

func (p *ConnectionPool) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		now := time.Now()
		for path, entry := range p.connections {
			if entry.refCount == 0 && now.Sub(entry.lastUsed) > p.idleTimeout {
				entry.db.Close()
				delete(p.connections, path)
				p.total--
			}
		}
		p.mu.Unlock()
	}
}

// Close closes every connection in the pool.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var lastErr error
	for path, entry := range p.connections {
		if err := entry.db.Close(); err != nil {
			lastErr = err
		}
		delete(p.connections, path)
	}
	p.total = 0
	return lastErr
}
