package client

import (
	"context"
	"sync"
	"time"

	"github.com/justsurfingit/resume-builder/pkg/resume"
)

const (
	// DefaultSyncDelay is how long a draft waits after the last edit
	// before sending it.
	DefaultSyncDelay = 500 * time.Millisecond

	syncTimeout = 30 * time.Second
)

// Draft holds the resume being edited. Edits apply to the local copy at
// once and reach the server after DefaultSyncDelay without further edits.
// Every sync sends the whole current document, so only the latest state is
// ever written.
type Draft struct {
	client *Client
	id     string
	delay  time.Duration
	// OnError receives errors from background syncs. Failed changes stay
	// pending and are retried by the next sync.
	OnError func(error)

	mu    sync.Mutex
	data  *resume.ResumeData
	dirty bool
	timer *time.Timer

	// serializes requests so an older write never lands after a newer one
	sendMu sync.Mutex
}

// NewDraft starts a draft from a resume fetched with GetResume.
func NewDraft(c *Client, r *Resume) *Draft {
	data := r.Data
	if data == nil {
		data = resume.Default()
	}
	return &Draft{client: c, id: r.ID, delay: DefaultSyncDelay, data: data}
}

// SetDelay changes the debounce delay for later edits.
func (d *Draft) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
}

// Data returns a copy of the local document.
func (d *Draft) Data() (*resume.ResumeData, error) {
	d.mu.Lock()
	raw, err := resume.Marshal(d.data)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return resume.Unmarshal(raw)
}

// Pending reports whether there are edits the server has not seen.
func (d *Draft) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// Update applies fn to the local document and schedules a sync.
func (d *Draft) Update(fn func(data *resume.ResumeData)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn(d.data)
	d.dirty = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.background)
}

// Flush cancels the pending timer and sends outstanding edits now.
func (d *Draft) Flush(ctx context.Context) error {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	return d.sync(ctx)
}

func (d *Draft) background() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	if err := d.sync(ctx); err != nil && d.OnError != nil {
		d.OnError(err)
	}
}

func (d *Draft) sync(ctx context.Context) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	d.mu.Lock()
	if !d.dirty {
		d.mu.Unlock()
		return nil
	}
	body, err := resume.Marshal(d.data)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.dirty = false
	d.mu.Unlock()

	if _, err := d.client.putData(ctx, d.id, body); err != nil {
		d.mu.Lock()
		d.dirty = true
		d.mu.Unlock()
		return err
	}
	return nil
}
