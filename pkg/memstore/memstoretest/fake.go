// Package memstoretest provides an in-process fake of memstore.Client for
// unit tests that need set/lock/counter semantics without a real Redis.
package memstoretest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopsaga/order-core/pkg/memstore"
)

type entry struct {
	value   string
	expires time.Time // zero means no expiry
}

// Fake is a minimal, single-process, mutex-guarded stand-in for
// memstore.Client. It is not a cache simulator: TTLs are honored on read but
// there is no background eviction.
type Fake struct {
	mu      sync.Mutex
	strings map[string]entry
	sets    map[string]map[string]bool
	zsets   map[string]map[string]float64
	lists   map[string]string // key -> '\n' joined values, for wait-free append order

	listVals map[string][]string

	subs map[string][]chan string
}

var _ memstore.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		strings:  make(map[string]entry),
		sets:     make(map[string]map[string]bool),
		zsets:    make(map[string]map[string]float64),
		listVals: make(map[string][]string),
		subs:     make(map[string][]chan string),
	}
}

func (f *Fake) expired(e entry) bool {
	return !e.expires.IsZero() && time.Now().After(e.expires)
}

func (f *Fake) Incr(ctx context.Context, key string) (int64, error) {
	return f.IncrBy(ctx, key, 1)
}

func (f *Fake) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.strings[key]
	var cur int64
	if ok && !f.expired(e) {
		cur, _ = strconv.ParseInt(e.value, 10, 64)
	}
	cur += delta
	f.strings[key] = entry{value: strconv.FormatInt(cur, 10)}
	return cur, nil
}

func (f *Fake) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.strings[key]
	if !ok || f.expired(e) {
		return "", nil
	}
	return e.value, nil
}

func (f *Fake) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strings[key] = f.newEntry(value, ttl)
	return nil
}

func (f *Fake) newEntry(value string, ttl time.Duration) entry {
	if ttl <= 0 {
		return entry{value: value}
	}
	return entry{value: value, expires: time.Now().Add(ttl)}
}

func (f *Fake) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.strings, k)
		delete(f.sets, k)
		delete(f.zsets, k)
		delete(f.listVals, k)
	}
	return nil
}

func (f *Fake) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.strings[key]
	return ok && !f.expired(e), nil
}

func (f *Fake) SAdd(_ context.Context, key string, member string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sets[key]
	if !ok {
		s = make(map[string]bool)
		f.sets[key] = s
	}
	if s[member] {
		return false, nil
	}
	s[member] = true
	return true, nil
}

func (f *Fake) SRem(_ context.Context, key string, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sets[key]; ok {
		delete(s, member)
	}
	return nil
}

func (f *Fake) SIsMember(_ context.Context, key string, member string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sets[key]
	if !ok {
		return false, nil
	}
	return s[member], nil
}

func (f *Fake) ZAdd(_ context.Context, key string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zsets[key]
	if !ok {
		z = make(map[string]float64)
		f.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (f *Fake) ZRem(_ context.Context, key string, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if z, ok := f.zsets[key]; ok {
		delete(z, member)
	}
	return nil
}

func (f *Fake) ZRangeByScore(_ context.Context, key string, count int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zsets[key]
	if !ok {
		return nil, nil
	}
	members := make([]string, 0, len(z))
	for m := range z {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return z[members[i]] < z[members[j]] })
	if count > 0 && int64(len(members)) > count {
		members = members[:count]
	}
	return members, nil
}

func (f *Fake) ZRevRange(_ context.Context, key string, count int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zsets[key]
	if !ok {
		return nil, nil
	}
	members := make([]string, 0, len(z))
	for m := range z {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return z[members[i]] > z[members[j]] })
	if count > 0 && int64(len(members)) > count {
		members = members[:count]
	}
	return members, nil
}

func (f *Fake) ZRank(_ context.Context, key string, member string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zsets[key]
	if !ok {
		return 0, false, nil
	}
	if _, ok := z[member]; !ok {
		return 0, false, nil
	}
	members := make([]string, 0, len(z))
	for m := range z {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return z[members[i]] < z[members[j]] })
	for i, m := range members {
		if m == member {
			return int64(i), true, nil
		}
	}
	return 0, false, nil
}

func (f *Fake) RPush(_ context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listVals[key] = append(f.listVals[key], value)
	return nil
}

func (f *Fake) RenameNX(_ context.Context, src, dst string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.listVals[dst]; exists {
		return false, nil
	}
	v, ok := f.listVals[src]
	if !ok {
		return false, nil
	}
	f.listVals[dst] = v
	delete(f.listVals, src)
	return true, nil
}

func (f *Fake) LRange(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listVals[key]...), nil
}

func (f *Fake) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.strings[key]; ok && !f.expired(e) {
		return false, nil
	}
	f.strings[key] = f.newEntry(value, ttl)
	return true, nil
}

func (f *Fake) CompareAndDelete(_ context.Context, key, expect string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.strings[key]
	if !ok || f.expired(e) || e.value != expect {
		return false, nil
	}
	delete(f.strings, key)
	return true, nil
}

func (f *Fake) CompareAndExpire(_ context.Context, key, expect string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.strings[key]
	if !ok || f.expired(e) || e.value != expect {
		return false, nil
	}
	f.strings[key] = f.newEntry(e.value, ttl)
	return true, nil
}

func (f *Fake) Publish(_ context.Context, channel, payload string) error {
	f.mu.Lock()
	subs := append([]chan string(nil), f.subs[channel]...)
	f.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// fakeSubscription is a single subscriber's channel plus the bookkeeping
// needed to unregister itself from Fake.subs on Close.
type fakeSubscription struct {
	f       *Fake
	channel string
	ch      chan string
}

func (s *fakeSubscription) Channel() <-chan string { return s.ch }

func (s *fakeSubscription) Close() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	subs := s.f.subs[s.channel]
	for i, ch := range subs {
		if ch == s.ch {
			s.f.subs[s.channel] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	return nil
}

func (f *Fake) Subscribe(_ context.Context, channel string) memstore.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan string, 16)
	f.subs[channel] = append(f.subs[channel], ch)
	return &fakeSubscription{f: f, channel: channel, ch: ch}
}

func (f *Fake) Ping(_ context.Context) error { return nil }

func (f *Fake) Close() error { return nil }
