package session

import "context"

// FieldQuery maps output field names to CSS selectors evaluated relative to
// each row matched by a structured extraction.
type FieldQuery map[string]string

// Browser is one launched browser instance owned by exactly one session.
// Implementations must bound every call with the driver's operation timeout
// so a wedged page surfaces as an error rather than a hang.
type Browser interface {
	// Navigate loads the given URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// Text returns the trimmed text content of the first element matching
	// the selector, or an error if no element is present.
	Text(ctx context.Context, selector string) (string, error)

	// ExtractStructured returns one record per element matching rowSelector,
	// with each field resolved against the row via its selector. Missing
	// fields yield empty strings rather than errors.
	ExtractStructured(ctx context.Context, rowSelector string, fields FieldQuery) ([]map[string]string, error)

	// Close releases the underlying browser process. Safe to call on a
	// browser whose process has already died.
	Close(ctx context.Context) error
}

// Driver launches browser instances. The production implementation drives
// Playwright; tests substitute a fake.
type Driver interface {
	Launch(ctx context.Context) (Browser, error)
}
