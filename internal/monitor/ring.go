package monitor

// ring is a fixed-capacity FIFO of snapshots.
type ring struct {
	items []Snapshot
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{items: make([]Snapshot, capacity)}
}

func (r *ring) push(s Snapshot) {
	if len(r.items) == 0 {
		return
	}
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = s
		r.size++
		return
	}
	r.items[r.start] = s
	r.start = (r.start + 1) % len(r.items)
}

func (r *ring) last() (Snapshot, bool) {
	if r.size == 0 {
		return Snapshot{}, false
	}
	return r.items[(r.start+r.size-1)%len(r.items)], true
}

// tail returns up to n of the newest snapshots, oldest first. n <= 0 means all.
func (r *ring) tail(n int) []Snapshot {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]Snapshot, 0, n)
	for i := r.size - n; i < r.size; i++ {
		out = append(out, r.items[(r.start+i)%len(r.items)])
	}
	return out
}

func (r *ring) len() int { return r.size }
