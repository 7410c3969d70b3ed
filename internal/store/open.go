package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kjstillabower/workout-journal/internal/observability"
)

// Backend names accepted by Open.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendSQLite    = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend               string
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	SQLitePath            string
}

// Backend is a Store that can be health-checked and closed.
type Backend interface {
	Store
	Ping() error
	Close() error
}

// Open builds the configured backend wrapped with operation metrics.
func Open(ctx context.Context, opts Options) (Backend, error) {
	var b Backend
	switch opts.Backend {
	case BackendMemcached:
		mc, err := NewMemcachedStore(opts.MemcachedAddrs, opts.MemcachedTimeout, opts.MemcachedMaxIdleConns)
		if err != nil {
			return nil, err
		}
		b = mc
	case BackendSQLite:
		sq, err := NewSQLiteStore(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		b = sq
	case BackendInMemory, "":
		b = NewInMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	return &instrumented{Backend: b, backend: backendLabel(opts.Backend)}, nil
}

func backendLabel(s string) string {
	if s == "" {
		return BackendInMemory
	}
	return s
}

// Ping implements Backend for the in-memory store.
func (s *InMemoryStore) Ping() error { return nil }

// Close implements Backend for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// instrumented records store operation outcomes and latency.
type instrumented struct {
	Backend
	backend string
}

func (s *instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, ok, err := s.Backend.Get(ctx, key)
	s.observe("get", start, err)
	return v, ok, err
}

func (s *instrumented) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := s.Backend.Set(ctx, key, value)
	s.observe("set", start, err)
	if err == nil {
		observability.StoreBlobBytes.WithLabelValues(s.backend).Set(float64(len(value)))
	}
	return err
}

func (s *instrumented) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := s.Backend.Remove(ctx, key)
	s.observe("remove", start, err)
	if err == nil {
		observability.StoreBlobBytes.WithLabelValues(s.backend).Set(0)
	}
	return err
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.StoreOperationsTotal.WithLabelValues(s.backend, op, status).Inc()
	observability.StoreOperationDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
}
