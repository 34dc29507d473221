// Package playwright adapts a Playwright-driven Chromium to the session
// layer's Driver contract. One Playwright instance is shared by the process;
// every Launch produces an isolated browser + context + page triple owned by
// exactly one session.
package playwright

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/driftmail/driftmail/pkg/session"
)

// Viewport used for every launched page. The scraped sites render their
// desktop layout at this size, which is what the selectors target.
const (
	viewportWidth  = 1280
	viewportHeight = 720
)

// Options configures the driver.
type Options struct {
	// Headless controls whether browsers run without a visible window.
	Headless bool

	// OperationTimeout bounds every page operation (navigation, query,
	// close). Exceeding it surfaces as session.ErrTimeout.
	OperationTimeout time.Duration
}

// Driver implements session.Driver on top of Playwright.
type Driver struct {
	mu          sync.Mutex
	pw          *pw.Playwright
	opts        Options
	initialized bool
}

// New creates a driver. Start must be called before Launch.
func New(opts Options) *Driver {
	return &Driver{opts: opts}
}

// Start installs the browser binaries if needed and boots the Playwright
// process. Idempotent.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	runOpts := &pw.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := pw.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	instance, err := pw.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	d.pw = instance
	d.initialized = true
	return nil
}

// Stop tears down the Playwright process. Browsers launched from this driver
// must be closed first.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return nil
	}
	d.initialized = false
	if err := d.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// Launch starts one Chromium instance with an isolated context and page.
func (d *Driver) Launch(ctx context.Context) (session.Browser, error) {
	d.mu.Lock()
	instance, initialized := d.pw, d.initialized
	d.mu.Unlock()

	if !initialized {
		return nil, fmt.Errorf("playwright driver not started")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := instance.Chromium.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(d.opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browserCtx, err := browser.NewContext(pw.BrowserNewContextOptions{
		Viewport: &pw.Size{Width: viewportWidth, Height: viewportHeight},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(d.opts.OperationTimeout.Milliseconds()))

	return &handle{
		browser: browser,
		context: browserCtx,
		page:    page,
	}, nil
}

// handle is one launched browser implementing session.Browser.
type handle struct {
	browser pw.Browser
	context pw.BrowserContext
	page    pw.Page
}

func (h *handle) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waitUntil := pw.WaitUntilStateDomcontentloaded
	if _, err := h.page.Goto(url, pw.PageGotoOptions{WaitUntil: waitUntil}); err != nil {
		return wrapTimeout(fmt.Errorf("navigation failed: %w", err))
	}
	return nil
}

func (h *handle) Text(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	element, err := h.page.QuerySelector(selector)
	if err != nil {
		return "", wrapTimeout(fmt.Errorf("selector query failed: %w", err))
	}
	if element == nil {
		return "", fmt.Errorf("no element found matching selector: %s", selector)
	}
	text, err := element.TextContent()
	if err != nil {
		return "", wrapTimeout(fmt.Errorf("text extraction failed: %w", err))
	}
	return strings.TrimSpace(text), nil
}

func (h *handle) ExtractStructured(ctx context.Context, rowSelector string, fields session.FieldQuery) ([]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := h.page.QuerySelectorAll(rowSelector)
	if err != nil {
		return nil, wrapTimeout(fmt.Errorf("row query failed: %w", err))
	}

	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]string, len(fields))
		for field, selector := range fields {
			record[field] = ""
			element, qErr := row.QuerySelector(selector)
			if qErr != nil || element == nil {
				continue
			}
			if text, tErr := element.TextContent(); tErr == nil {
				record[field] = strings.TrimSpace(text)
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (h *handle) Close(ctx context.Context) error {
	// Page and context errors are ignored; a dead browser process makes
	// them fail and the browser close below is what actually matters.
	_ = h.page.Close()
	_ = h.context.Close()
	if err := h.browser.Close(); err != nil {
		return fmt.Errorf("browser close failed: %w", err)
	}
	return nil
}

// wrapTimeout tags Playwright timeout failures with the session layer's
// sentinel so callers can classify them without knowing the driver.
func wrapTimeout(err error) error {
	if err != nil && strings.Contains(err.Error(), "Timeout") {
		return fmt.Errorf("%w: %v", session.ErrTimeout, err)
	}
	return err
}
