package app

import (
	"container/heap"
	"sort"

	"github.com/lightpool/lightpool-go/pkg/types"
)

// maxPriceHeap tracks bid prices, highest on top.
type maxPriceHeap []uint64

func (h maxPriceHeap) Len() int           { return len(h) }
func (h maxPriceHeap) Less(i, j int) bool { return h[i] > h[j] }
func (h maxPriceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *maxPriceHeap) Push(x any) {
	*h = append(*h, x.(uint64))
}

func (h *maxPriceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// minPriceHeap tracks ask prices, lowest on top.
type minPriceHeap []uint64

func (h minPriceHeap) Len() int           { return len(h) }
func (h minPriceHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h minPriceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minPriceHeap) Push(x any) {
	*h = append(*h, x.(uint64))
}

func (h *minPriceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Level aggregates the resting volume at one price.
type Level struct {
	Price  uint64
	Amount uint64
	Orders int
}

// book is one market's resting orders: a heap per side for O(1) best
// price, a FIFO queue per price level, and an id index for O(1)
// cancels. Not safe for concurrent use; the app serializes access.
type book struct {
	bidHeap *maxPriceHeap
	askHeap *minPriceHeap

	bids map[uint64][]*OrderRecord
	asks map[uint64][]*OrderRecord

	index map[types.OrderId]uint64 // order id -> resting price

	lastPrice uint64
}

func newBook() *book {
	bidHeap := &maxPriceHeap{}
	askHeap := &minPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)
	return &book{
		bidHeap: bidHeap,
		askHeap: askHeap,
		bids:    make(map[uint64][]*OrderRecord),
		asks:    make(map[uint64][]*OrderRecord),
		index:   make(map[types.OrderId]uint64),
	}
}

// rebuildBook restores a book from stored orders, replaying them in
// placement order so FIFO priority survives a restart.
func rebuildBook(orders []*OrderRecord) *book {
	sort.Slice(orders, func(i, j int) bool { return orders[i].Seq < orders[j].Seq })
	b := newBook()
	for _, o := range orders {
		b.add(o)
	}
	return b
}

func (b *book) add(o *OrderRecord) {
	if o.Side == types.Buy {
		if len(b.bids[o.Price]) == 0 {
			heap.Push(b.bidHeap, o.Price)
		}
		b.bids[o.Price] = append(b.bids[o.Price], o)
	} else {
		if len(b.asks[o.Price]) == 0 {
			heap.Push(b.askHeap, o.Price)
		}
		b.asks[o.Price] = append(b.asks[o.Price], o)
	}
	b.index[o.OrderID] = o.Price
}

// remove takes an order off the book. Returns nil if the id is not
// resting.
func (b *book) remove(id types.OrderId) *OrderRecord {
	price, ok := b.index[id]
	if !ok {
		return nil
	}
	if arr, exists := b.bids[price]; exists {
		for i, o := range arr {
			if o.OrderID == id {
				b.bids[price] = append(arr[:i], arr[i+1:]...)
				if len(b.bids[price]) == 0 {
					delete(b.bids, price)
					b.removeFromBidHeap(price)
				}
				delete(b.index, id)
				return o
			}
		}
	}
	if arr, exists := b.asks[price]; exists {
		for i, o := range arr {
			if o.OrderID == id {
				b.asks[price] = append(arr[:i], arr[i+1:]...)
				if len(b.asks[price]) == 0 {
					delete(b.asks, price)
					b.removeFromAskHeap(price)
				}
				delete(b.index, id)
				return o
			}
		}
	}
	return nil
}

// removeFromBidHeap drops a price level from the bid heap. O(N) worst
// case, but levels are few.
func (b *book) removeFromBidHeap(price uint64) {
	for i := 0; i < b.bidHeap.Len(); i++ {
		if (*b.bidHeap)[i] == price {
			heap.Remove(b.bidHeap, i)
			return
		}
	}
}

func (b *book) removeFromAskHeap(price uint64) {
	for i := 0; i < b.askHeap.Len(); i++ {
		if (*b.askHeap)[i] == price {
			heap.Remove(b.askHeap, i)
			return
		}
	}
}

func (b *book) bestBid() (uint64, bool) {
	if b.bidHeap.Len() == 0 {
		return 0, false
	}
	return (*b.bidHeap)[0], true
}

func (b *book) bestAsk() (uint64, bool) {
	if b.askHeap.Len() == 0 {
		return 0, false
	}
	return (*b.askHeap)[0], true
}

// head returns the first resting order a taker of the given side
// matches against, or nil when that side of the book is empty.
func (b *book) head(takerSide types.OrderSide) *OrderRecord {
	if takerSide == types.Buy {
		p, ok := b.bestAsk()
		if !ok {
			return nil
		}
		return b.asks[p][0]
	}
	p, ok := b.bestBid()
	if !ok {
		return nil
	}
	return b.bids[p][0]
}

// crosses reports whether a taker of the given side matches a resting
// order at makerPrice under its own bound.
func crosses(takerSide types.OrderSide, bound, makerPrice uint64) bool {
	if takerSide == types.Buy {
		return makerPrice <= bound
	}
	return makerPrice >= bound
}

// available sums the opposite side's resting volume a taker could fill
// within bound, stopping early once need is covered.
func (b *book) available(takerSide types.OrderSide, bound, need uint64) bool {
	var total uint64
	for _, lv := range b.levels(takerSide.Opposite(), 0) {
		if !crosses(takerSide, bound, lv.Price) {
			break
		}
		total += lv.Amount
		if total >= need {
			return true
		}
	}
	return false
}

// levels aggregates one side of the book, best price first. depth 0
// returns every level.
func (b *book) levels(side types.OrderSide, depth int) []Level {
	m := b.bids
	if side == types.Sell {
		m = b.asks
	}
	var levels []Level
	for price, orders := range m {
		if len(orders) == 0 {
			continue
		}
		var total uint64
		for _, o := range orders {
			total += o.Remaining
		}
		levels = append(levels, Level{Price: price, Amount: total, Orders: len(orders)})
	}
	if side == types.Buy {
		sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	} else {
		sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	}
	if depth > 0 && len(levels) > depth {
		levels = levels[:depth]
	}
	return levels
}
