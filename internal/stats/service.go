package stats

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopsaga/order-core/internal/model"
	"github.com/shopsaga/order-core/pkg/database"
	"github.com/shopsaga/order-core/pkg/memstore"
)

// Service is the read path over the popularity ranking: Popular(limit)
// serves from cache, falling back to the durable ranking on a miss.
type Service struct {
	store memstore.Client
	pool  database.TxQuerier
}

func NewService(store memstore.Client, pool database.TxQuerier) *Service {
	return &Service{store: store, pool: pool}
}

// Popular returns the top `limit` products by popularity score (§4.10's
// popular(limit) read path), cache-aside over the durable ranking sorted
// set.
func (s *Service) Popular(ctx context.Context, limit int) ([]model.PopularProduct, error) {
	cacheKey := memstore.CacheKey("popular", strconv.Itoa(limit))

	if cached, err := s.store.Get(ctx, cacheKey); err == nil && cached != "" {
		var out []model.PopularProduct
		if err := json.Unmarshal([]byte(cached), &out); err == nil {
			return out, nil
		}
	}

	out, err := s.readPopular(ctx, limit)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(out); err == nil {
		_ = s.store.Set(ctx, cacheKey, string(payload), 30*time.Minute)
	}
	return out, nil
}

func (s *Service) readPopular(ctx context.Context, limit int) ([]model.PopularProduct, error) {
	members, err := s.store.ZRevRange(ctx, memstore.RankSalesKey("total"), int64(limit))
	if err != nil {
		return nil, err
	}

	repo := NewRepository(s.pool)
	out := make([]model.PopularProduct, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ps, err := repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, model.PopularProduct{ProductID: id, Score: ps.PopularityScore()})
	}
	return out, nil
}

// WarmCache evicts and re-populates the popular(limit) cache for every
// configured limit, per §4.10's cache warmer ("same cadence, after fold").
func (s *Service) WarmCache(ctx context.Context, limits []int) error {
	for _, limit := range limits {
		cacheKey := memstore.CacheKey("popular", strconv.Itoa(limit))
		if err := s.store.Del(ctx, cacheKey); err != nil {
			return err
		}
		if _, err := s.Popular(ctx, limit); err != nil {
			return err
		}
	}
	return nil
}
