package session

import (
	"context"
	"sync"
	"time"
)

// fakeBrowser is an in-memory Browser for exercising the manager without a
// real browser process.
type fakeBrowser struct {
	mu        sync.Mutex
	closed    bool
	navigated []string

	text     map[string]string
	rows     []map[string]string
	navErr   error
	closeErr error

	// opDelay makes operations slow so tests can provoke races.
	opDelay time.Duration
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error {
	if f.opDelay > 0 {
		select {
		case <-time.After(f.opDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.navErr != nil {
		return f.navErr
	}
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeBrowser) Text(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text[selector], nil
}

func (f *fakeBrowser) ExtractStructured(ctx context.Context, rowSelector string, fields FieldQuery) ([]map[string]string, error) {
	if f.opDelay > 0 {
		select {
		case <-time.After(f.opDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, nil
}

func (f *fakeBrowser) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeBrowser) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDriver hands out fakeBrowsers, optionally failing or stalling.
type fakeDriver struct {
	mu          sync.Mutex
	launched    []*fakeBrowser
	launchErr   error
	launchDelay time.Duration

	// next configures the browser the following Launch returns.
	next func() *fakeBrowser
}

func (d *fakeDriver) Launch(ctx context.Context) (Browser, error) {
	if d.launchDelay > 0 {
		select {
		case <-time.After(d.launchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	b := &fakeBrowser{}
	if d.next != nil {
		b = d.next()
	}
	d.launched = append(d.launched, b)
	return b, nil
}
