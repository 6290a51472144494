package scheduler

import (
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/store"
)

type item struct {
	sa store.ScheduledAction
	// normally sa.ExpiresAt; later when retrying
	due   time.Time
	index int
}

// itemHeap implements heap.Interface, ordered by due time
type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].sa.ID < h[j].sa.ID
	}
	return h[i].due.Before(h[j].due)
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
