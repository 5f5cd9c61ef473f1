package model

// ProductStatEventKind is one of the three high-frequency event streams the
// statistics aggregator ingests (§4.10).
type ProductStatEventKind string

const (
	StatEventView ProductStatEventKind = "view"
	StatEventSale ProductStatEventKind = "sales"
	StatEventWish ProductStatEventKind = "wish"
)

// ProductStatistics is the durable, folded form of §3's counters.
type ProductStatistics struct {
	ProductID  int64
	ViewCount  int64
	SalesCount int64
	WishCount  int64
	Version    int64
}

// PopularityScore computes the §3 ranking score:
// score = 0.4*sales + 0.3*views + 0.3*wishes.
func (p *ProductStatistics) PopularityScore() float64 {
	return 0.4*float64(p.SalesCount) + 0.3*float64(p.ViewCount) + 0.3*float64(p.WishCount)
}

// PopularProduct is one row of the popular-items ranking exposed to readers.
type PopularProduct struct {
	ProductID int64
	Score     float64
}
