package stats

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// productCounters is a fold target for one product, accumulated by the
// mock pool in place of a real INSERT ... ON CONFLICT DO UPDATE.
type productCounters struct {
	views, sales, wishes int64
}

// statsMockPool is a hand-written database.TxQuerier fake, following the
// teacher's mockPool convention, that actually accumulates ApplyDelta calls
// instead of just recording the last call's arguments.
type statsMockPool struct {
	mu    sync.Mutex
	stats map[int64]*productCounters
}

func newStatsMockPool() *statsMockPool {
	return &statsMockPool{stats: make(map[int64]*productCounters)}
}

func (p *statsMockPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// INSERT INTO product_statistics (product_id, view_count, sales_count, wish_count, ...)
	productID := args[0].(int64)
	views := args[1].(int64)
	sales := args[2].(int64)
	wishes := args[3].(int64)

	c, ok := p.stats[productID]
	if !ok {
		c = &productCounters{}
		p.stats[productID] = c
	}
	c.views += views
	c.sales += sales
	c.wishes += wishes
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (p *statsMockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	productID := args[0].(int64)
	c := p.stats[productID]
	return &mockStatsRow{counters: c, productID: productID}
}

func (p *statsMockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

type mockStatsRow struct {
	counters  *productCounters
	productID int64
}

func (m *mockStatsRow) Scan(dest ...any) error {
	if m.counters == nil {
		return pgx.ErrNoRows
	}
	*(dest[0].(*int64)) = m.productID
	*(dest[1].(*int64)) = m.counters.views
	*(dest[2].(*int64)) = m.counters.sales
	*(dest[3].(*int64)) = m.counters.wishes
	*(dest[4].(*int64)) = 1
	return nil
}
