package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests, the same way the
// teacher's mockWorkerRepository and mockJobRepository stand in for
// SQLiteRepository. BRPop has no real blocking primitive over Go
// maps, so it polls on a short interval — a test-only approximation
// documented in SPEC_FULL.md, not a behavior workers rely on.
type MemStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	lists  map[string][]string
	sets   map[string]map[string]struct{}
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		hashes: make(map[string]map[string]string),
		lists:  make(map[string][]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (s *MemStore) HSetFields(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (s *MemStore) HGetField(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (s *MemStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	cur, _ := strconv.ParseInt(h[field], 10, 64)
	cur += delta
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (s *MemStore) LPushValue(_ context.Context, list, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[list] = append([]string{value}, s.lists[list]...)
	return nil
}

func (s *MemStore) RPushValue(_ context.Context, list, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[list] = append(s.lists[list], value)
	return nil
}

func (s *MemStore) BRPop(ctx context.Context, timeout time.Duration, lists ...string) (string, string, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if v, l, ok := s.tryPopRight(lists); ok {
			return l, v, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return "", "", ErrNoJob
		}
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *MemStore) tryPopRight(lists []string) (value, list string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lists {
		vals := s.lists[l]
		if len(vals) == 0 {
			continue
		}
		v := vals[len(vals)-1]
		s.lists[l] = vals[:len(vals)-1]
		return v, l, true
	}
	return "", "", false
}

func (s *MemStore) SAdd(_ context.Context, set, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sets[set]
	if !ok {
		m = make(map[string]struct{})
		s.sets[set] = m
	}
	m[value] = struct{}{}
	return nil
}

func (s *MemStore) SRem(_ context.Context, set, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets[set], value)
	return nil
}

func (s *MemStore) ListDelete(_ context.Context, list string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, list)
	return nil
}

func (s *MemStore) ListRange(_ context.Context, list string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lists[list]))
	copy(out, s.lists[list])
	return out, nil
}

type memPipe struct {
	s   *MemStore
	ops []func()
}

func (p *memPipe) HSetFields(key string, fields map[string]string) {
	p.ops = append(p.ops, func() {
		h, ok := p.s.hashes[key]
		if !ok {
			h = make(map[string]string)
			p.s.hashes[key] = h
		}
		for k, v := range fields {
			h[k] = v
		}
	})
}

func (p *memPipe) SAdd(set, value string) {
	p.ops = append(p.ops, func() {
		m, ok := p.s.sets[set]
		if !ok {
			m = make(map[string]struct{})
			p.s.sets[set] = m
		}
		m[value] = struct{}{}
	})
}

func (p *memPipe) SRem(set, value string) {
	p.ops = append(p.ops, func() { delete(p.s.sets[set], value) })
}

func (p *memPipe) LPush(list, value string) {
	p.ops = append(p.ops, func() {
		p.s.lists[list] = append([]string{value}, p.s.lists[list]...)
	})
}

func (p *memPipe) RPush(list, value string) {
	p.ops = append(p.ops, func() {
		p.s.lists[list] = append(p.s.lists[list], value)
	})
}

func (p *memPipe) Del(key string) {
	p.ops = append(p.ops, func() {
		delete(p.s.lists, key)
		delete(p.s.hashes, key)
		delete(p.s.sets, key)
	})
}

func (p *memPipe) LLen(list string, dst *int64) {
	p.ops = append(p.ops, func() { *dst = int64(len(p.s.lists[list])) })
}

func (p *memPipe) SCard(set string, dst *int64) {
	p.ops = append(p.ops, func() { *dst = int64(len(p.s.sets[set])) })
}

func (s *MemStore) MultiExec(_ context.Context, fn func(p Pipe) error) error {
	p := &memPipe{s: s}
	if err := fn(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range p.ops {
		op()
	}
	return nil
}

func (s *MemStore) Snapshot(_ context.Context) (int64, int64, int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	high := int64(len(s.lists[QueueHigh]))
	low := int64(len(s.lists[QueueLow]))
	dlq := int64(len(s.lists[QueueDLQ]))
	processing := int64(len(s.sets[SetProcessing]))
	return high, low, dlq, processing, nil
}
