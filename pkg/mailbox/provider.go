package mailbox

// Provider describes how to drive one webmail site: where the inbox page
// lives and which selectors read the address and message list out of it.
// Selectors are plain data so a markup change on the scraped site is a
// config edit, not a code change.
type Provider struct {
	// Name identifies the provider in logs.
	Name string `yaml:"name" envconfig:"NAME"`

	// InboxURL is the page that materializes a disposable address.
	InboxURL string `yaml:"inbox_url" envconfig:"INBOX_URL"`

	// AddressSelector matches the element carrying the generated address.
	AddressSelector string `yaml:"address_selector" envconfig:"ADDRESS_SELECTOR"`

	// RowSelector matches one inbox message row.
	RowSelector string `yaml:"row_selector" envconfig:"ROW_SELECTOR"`

	// Per-row field selectors.
	FromSelector    string `yaml:"from_selector" envconfig:"FROM_SELECTOR"`
	SubjectSelector string `yaml:"subject_selector" envconfig:"SUBJECT_SELECTOR"`
	DateSelector    string `yaml:"date_selector" envconfig:"DATE_SELECTOR"`
	SnippetSelector string `yaml:"snippet_selector" envconfig:"SNIPPET_SELECTOR"`
}

// DefaultProvider returns the selectors for the default webmail site.
func DefaultProvider() Provider {
	return Provider{
		Name:            "temp-mail",
		InboxURL:        "https://temp-mail.org/en/",
		AddressSelector: "#mail",
		RowSelector:     ".inbox-dataList ul li",
		FromSelector:    ".inboxSenderEmail",
		SubjectSelector: ".inboxSubject",
		DateSelector:    ".inboxDate",
		SnippetSelector: ".inboxSnippet",
	}
}
