package merge

import "container/heap"

// observation is a single in-window daily value for one entity.
type observation struct {
	date  string // date text exactly as supplied
	value int64
}

type pending struct {
	offset int // days from the window start
	seq    int // input order, breaks ties between equal offsets
	obs    observation
}

// pendingQueue is a min-heap of one entity's observations ordered by
// (offset, seq). Only in-window observations are ever pushed.
type pendingQueue []pending

func (q pendingQueue) Len() int { return len(q) }

func (q pendingQueue) Less(i, j int) bool {
	if q[i].offset != q[j].offset {
		return q[i].offset < q[j].offset
	}
	return q[i].seq < q[j].seq
}

func (q pendingQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pendingQueue) Push(x any) { *q = append(*q, x.(pending)) }

func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func (q *pendingQueue) push(offset, seq int, obs observation) {
	heap.Push(q, pending{offset: offset, seq: seq, obs: obs})
}

// peek returns the smallest pending offset, or -1 when the queue is empty.
func (q pendingQueue) peek() int {
	if len(q) == 0 {
		return -1
	}
	return q[0].offset
}

// popDay removes every entry at offset and returns them in input order.
func (q *pendingQueue) popDay(offset int) []observation {
	var out []observation
	for q.Len() > 0 && (*q)[0].offset == offset {
		out = append(out, heap.Pop(q).(pending).obs)
	}
	return out
}
