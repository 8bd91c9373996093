package book

import "sort"

// queue keeps orders sorted under a side-specific priority. Insertion is a
// binary search plus slice shift; the front element is always the next order
// to match or trigger.
type queue struct {
	orders []*Order
	before func(a, b *Order) bool
}

// Resting buys: best (highest) price first, oldest sequence first on ties.
func bidPriority(a, b *Order) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.GreaterThan(b.Price)
	}
	return a.ID < b.ID
}

// Resting sells: best (lowest) price first, oldest sequence first on ties.
func askPriority(a, b *Order) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.LessThan(b.Price)
	}
	return a.ID < b.ID
}

// Buy stops: lowest trigger first, it fires first as the price rises.
func buyStopPriority(a, b *Order) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.LessThan(b.Price)
	}
	return a.ID < b.ID
}

// Sell stops: highest trigger first, it fires first as the price falls.
func sellStopPriority(a, b *Order) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.GreaterThan(b.Price)
	}
	return a.ID < b.ID
}

func newQueue(before func(a, b *Order) bool) *queue {
	return &queue{before: before}
}

func (q *queue) insert(o *Order) {
	i := sort.Search(len(q.orders), func(i int) bool {
		return q.before(o, q.orders[i])
	})
	q.orders = append(q.orders, nil)
	copy(q.orders[i+1:], q.orders[i:])
	q.orders[i] = o
}

// first returns the highest-priority order, or nil when empty.
func (q *queue) first() *Order {
	if len(q.orders) == 0 {
		return nil
	}
	return q.orders[0]
}

// removeByID removes and returns the order with the given id, nil if absent.
func (q *queue) removeByID(id uint64) *Order {
	for i, o := range q.orders {
		if o.ID == id {
			q.orders = append(q.orders[:i], q.orders[i+1:]...)
			return o
		}
	}
	return nil
}

func (q *queue) remove(o *Order) {
	q.removeByID(o.ID)
}

func (q *queue) len() int { return len(q.orders) }

func (q *queue) totalQuantity() int64 {
	var total int64
	for _, o := range q.orders {
		total += o.Remaining
	}
	return total
}
