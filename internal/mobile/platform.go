package mobile

import (
	"context"
	"sort"
	"sync"
)

// Platform is the device notification service.
type Platform interface {
	// ChannelExists reports whether a channel with the id was created.
	ChannelExists(ctx context.Context, id string) (bool, error)

	// CreateChannel creates a channel. Creating an existing id is a no-op.
	CreateChannel(ctx context.Context, ch Channel) error

	// Notify displays n, replacing any visible notification with the same ID.
	Notify(ctx context.Context, n LocalNotification) error
}

// Tray is an in-memory Platform.
type Tray struct {
	mu       sync.Mutex
	channels map[string]Channel
	slots    map[Identity]LocalNotification
	creates  int
}

// NewTray creates an empty tray.
func NewTray() *Tray {
	return &Tray{
		channels: make(map[string]Channel),
		slots:    make(map[Identity]LocalNotification),
	}
}

// ChannelExists implements Platform.
func (t *Tray) ChannelExists(_ context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.channels[id]
	return ok, nil
}

// CreateChannel implements Platform.
func (t *Tray) CreateChannel(_ context.Context, ch Channel) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.channels[ch.ID]; ok {
		return nil
	}
	t.channels[ch.ID] = ch
	t.creates++
	return nil
}

// Notify implements Platform.
func (t *Tray) Notify(_ context.Context, n LocalNotification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[n.ID] = n
	return nil
}

// Visible returns the displayed notifications ordered by ID.
func (t *Tray) Visible() []LocalNotification {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]LocalNotification, 0, len(t.slots))
	for _, n := range t.slots {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChannelCreates returns how many channels were actually created.
func (t *Tray) ChannelCreates() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.creates
}

var _ Platform = (*Tray)(nil)
