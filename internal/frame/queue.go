package frame

// Queue buffers outbound payloads until the frame is ready. It is
// owned by a Channel and not safe for concurrent use.
type Queue struct {
	items []Payload
}

func (q *Queue) Push(p Payload) {
	q.items = append(q.items, p)
}

// Pop removes and returns the oldest payload.
func (q *Queue) Pop() (Payload, bool) {
	if len(q.items) == 0 {
		return Payload{}, false
	}
	p := q.items[0]
	q.items[0] = Payload{}
	q.items = q.items[1:]
	return p, true
}

func (q *Queue) Len() int { return len(q.items) }
