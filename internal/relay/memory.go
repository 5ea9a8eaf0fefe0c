package relay

import (
	"context"
	"sync"
)

// Memory is an in-process Channel.
type Memory struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*memorySub
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[uint64]*memorySub)}
}

// Send delivers m to every live subscription whose filter accepts it.
// Messages without a matching subscriber are dropped.
func (r *Memory) Send(ctx context.Context, m Message) error {
	if m.Origin == "" {
		return ErrNoOrigin
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.subs {
		if !s.filter.Accepts(m) {
			continue
		}
		s.ch <- m
		delete(r.subs, id)
	}
	return nil
}

func (r *Memory) Subscribe(_ context.Context, f Filter) (Subscription, error) {
	if f.Origin == "" {
		return nil, ErrNoOrigin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s := &memorySub{
		id:     r.nextID,
		filter: f,
		ch:     make(chan Message, 1),
		done:   make(chan struct{}),
		owner:  r,
	}
	r.subs[s.id] = s
	return s, nil
}

// Subscribers returns the number of live subscriptions.
func (r *Memory) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *Memory) remove(id uint64) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

type memorySub struct {
	id     uint64
	filter Filter
	ch     chan Message
	done   chan struct{}
	once   sync.Once
	owner  *Memory
}

func (s *memorySub) Wait(ctx context.Context) (Message, error) {
	defer s.Close()
	select {
	case m := <-s.ch:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-s.done:
		// A message may have been delivered just before Close.
		select {
		case m := <-s.ch:
			return m, nil
		default:
			return Message{}, ErrClosed
		}
	}
}

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.owner.remove(s.id)
		close(s.done)
	})
	return nil
}
