package mailbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/driftmail/driftmail/pkg/logging"
	"github.com/driftmail/driftmail/pkg/session"
)

// addressPollInterval is how often the provisioning loop re-reads the
// address element while the site is still generating it.
const addressPollInterval = 500 * time.Millisecond

// Message is one inbox entry as scraped from the webmail site.
type Message struct {
	From    string   `json:"from"`
	Date    string   `json:"date"`
	Subject string   `json:"subject"`
	Snippet string   `json:"snippet"`
	Links   []string `json:"links,omitempty"`
}

// Service provisions disposable inboxes and reads their messages through the
// session manager. It owns no state of its own; every call resolves the
// session from the store.
type Service struct {
	manager  *session.Manager
	provider Provider
	log      *logging.Logger

	// provisionTimeout bounds how long the webmail site may take to
	// materialize an address after navigation.
	provisionTimeout time.Duration
}

// NewService creates a mailbox service over the given manager and provider.
func NewService(manager *session.Manager, provider Provider, log *logging.Logger, provisionTimeout time.Duration) *Service {
	return &Service{
		manager:          manager,
		provider:         provider,
		log:              log,
		provisionTimeout: provisionTimeout,
	}
}

// CreateInbox opens a new session, drives the provider page until it shows a
// generated address, and returns the session id and address. A provisioning
// failure closes the just-opened session so it does not leak against the
// capacity ceiling.
func (svc *Service) CreateInbox(ctx context.Context) (id, email string, err error) {
	s, err := svc.manager.Open(ctx)
	if err != nil {
		return "", "", err
	}

	err = s.Use(ctx, func(ctx context.Context, b session.Browser) error {
		if navErr := b.Navigate(ctx, svc.provider.InboxURL); navErr != nil {
			return fmt.Errorf("navigate to %s: %w", svc.provider.InboxURL, navErr)
		}
		addr, waitErr := svc.waitForAddress(ctx, b)
		if waitErr != nil {
			return waitErr
		}
		email = addr
		return nil
	})
	if err != nil {
		svc.log.Warnf("provisioning failed on %s, closing session %s: %v", svc.provider.Name, s.ID, err)
		if closeErr := svc.manager.Close(ctx, s.ID); closeErr != nil {
			svc.log.Debugf("session %s already gone: %v", s.ID, closeErr)
		}
		return "", "", fmt.Errorf("%w: %v", session.ErrProvisioningFailed, err)
	}

	s.SetEmail(email)
	svc.log.Infof("provisioned %s on %s (session %s)", email, svc.provider.Name, s.ID)
	return s.ID, email, nil
}

// FetchInbox returns the current messages for a session. Unknown ids yield
// session.ErrNotFound untouched so the API layer can map them to 404.
func (svc *Service) FetchInbox(ctx context.Context, id string) ([]Message, error) {
	s, err := svc.manager.Get(id)
	if err != nil {
		return nil, err
	}

	var messages []Message
	err = s.Use(ctx, func(ctx context.Context, b session.Browser) error {
		records, extractErr := b.ExtractStructured(ctx, svc.provider.RowSelector, session.FieldQuery{
			"from":    svc.provider.FromSelector,
			"date":    svc.provider.DateSelector,
			"subject": svc.provider.SubjectSelector,
			"snippet": svc.provider.SnippetSelector,
		})
		if extractErr != nil {
			return fmt.Errorf("extract inbox rows: %w", extractErr)
		}
		messages = make([]Message, 0, len(records))
		for _, rec := range records {
			messages = append(messages, Message{
				From:    rec["from"],
				Date:    rec["date"],
				Subject: rec["subject"],
				Snippet: rec["snippet"],
				Links:   ExtractLinks(rec["snippet"]),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.log.Debugf("session %s: %d message(s) in inbox", id, len(messages))
	return messages, nil
}

// waitForAddress polls the address element until the site fills in a real
// address, bounded by the provisioning timeout.
func (svc *Service) waitForAddress(ctx context.Context, b session.Browser) (string, error) {
	deadline := time.NewTimer(svc.provisionTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(addressPollInterval)
	defer ticker.Stop()

	for {
		addr, err := b.Text(ctx, svc.provider.AddressSelector)
		if err == nil {
			addr = strings.TrimSpace(addr)
			// Sites show placeholder text while the address generates.
			if strings.Contains(addr, "@") {
				return addr, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", fmt.Errorf("address not ready after %s: %w", svc.provisionTimeout, session.ErrTimeout)
		case <-ticker.C:
		}
	}
}
