package gmail

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/logging"
	"github.com/spachava753/contactsaver/scanner"
)

const (
	// Package is the event package identity of the mailbox surface.
	Package = "imap.gmail.com"
	// DefaultMailbox is the mailbox scanned when none is configured.
	DefaultMailbox = "INBOX"

	defaultMailboxPageSize = 25
	defaultMailboxPoll     = 30 * time.Second
	defaultMaxBodyChars    = 20000
)

// MailboxOptions configures [OpenMailbox].
type MailboxOptions struct {
	// Name is the IMAP mailbox, e.g. "INBOX" or "[Gmail]/All Mail".
	Name string
	// PageSize is how many messages one screen shows.
	PageSize int
	// PollInterval is how often the server is asked for new mail.
	PollInterval time.Duration
	// MaxBodyChars caps the body text kept per message.
	MaxBodyChars int
}

func (o MailboxOptions) withDefaults() MailboxOptions {
	if o.Name == "" {
		o.Name = DefaultMailbox
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultMailboxPageSize
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultMailboxPoll
	}
	if o.MaxBodyChars <= 0 {
		o.MaxBodyChars = defaultMaxBodyChars
	}
	return o
}

// imapSession is the subset of *client.Client a Mailbox drives.
type imapSession interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Noop() error
	Mailbox() *imap.MailboxStatus
	Logout() error
}

// Mailbox is a [scanner.Surface] over an IMAP mailbox, newest mail first.
// One screen is a page of messages; a swipe moves to the next older page.
// Paging is anchored at the message count seen on open (or the last Rewind)
// so new mail does not shift pages mid-scan.
type Mailbox struct {
	opts   MailboxOptions
	logger *zap.Logger

	mu     sync.Mutex
	sess   imapSession
	anchor uint32
	page   uint32

	events chan scanner.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// OpenMailbox logs in to Gmail IMAP and selects the mailbox read-only.
func OpenMailbox(ctx context.Context, creds Credentials, opts MailboxOptions, logger *zap.Logger) (*Mailbox, error) {
	c, err := connectIMAP(creds)
	if err != nil {
		return nil, err
	}
	m, err := newMailbox(ctx, c, opts, logger)
	if err != nil {
		c.Logout()
		return nil, err
	}
	return m, nil
}

func newMailbox(ctx context.Context, sess imapSession, opts MailboxOptions, logger *zap.Logger) (*Mailbox, error) {
	opts = opts.withDefaults()
	logger = logging.OrNop(logger)
	status, err := sess.Select(opts.Name, true)
	if err != nil {
		return nil, fmt.Errorf("gmail: selecting %q failed: %w", opts.Name, err)
	}

	m := &Mailbox{
		opts:   opts,
		logger: logger,
		sess:   sess,
		anchor: status.Messages,
		events: make(chan scanner.Event, 4),
	}
	pollCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.poll(pollCtx, status.Messages)

	logger.Info("mailbox selected", zap.String("mailbox", opts.Name), zap.Uint32("messages", status.Messages))
	return m, nil
}

// Events implements [scanner.EventSource]. The channel closes on Close.
func (m *Mailbox) Events() <-chan scanner.Event {
	return m.events
}

// Root fetches the current page. Each message node carries the subject as
// text and the sender as description, with the sender name and body below.
func (m *Mailbox) Root(ctx context.Context) (*scanner.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	lo, hi, ok := pageRange(m.anchor, m.page, uint32(m.opts.PageSize))
	if !ok {
		return nil, nil
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(lo, hi)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	ch := make(chan *imap.Message, int(hi-lo)+1)
	done := make(chan error, 1)
	go func() {
		done <- m.sess.Fetch(seqSet, items, ch)
	}()

	var fetched []*imap.Message
	for msg := range ch {
		fetched = append(fetched, msg)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("gmail: fetching messages failed: %w", err)
	}

	slices.SortFunc(fetched, func(a, b *imap.Message) int {
		return int(b.SeqNum) - int(a.SeqNum)
	})
	root := &scanner.Node{Children: make([]*scanner.Node, 0, len(fetched))}
	for _, msg := range fetched {
		root.Children = append(root.Children, m.messageNode(msg, section))
	}
	return root, nil
}

// Swipe moves one page back. Past the oldest page the screen stays put.
func (m *Mailbox) Swipe(ctx context.Context) (scanner.Gesture, error) {
	if err := ctx.Err(); err != nil {
		return scanner.GestureCancelled, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, _, ok := pageRange(m.anchor, m.page+1, uint32(m.opts.PageSize)); ok {
		m.page++
	}
	return scanner.GestureCompleted, nil
}

// Rewind re-anchors paging at the newest message.
func (m *Mailbox) Rewind() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.sess.Noop(); err != nil {
		return fmt.Errorf("gmail: refreshing mailbox failed: %w", err)
	}
	if status := m.sess.Mailbox(); status != nil {
		m.anchor = status.Messages
	}
	m.page = 0
	return nil
}

// Close stops polling and logs out.
func (m *Mailbox) Close() error {
	var err error
	m.once.Do(func() {
		m.cancel()
		m.wg.Wait()
		close(m.events)
		m.mu.Lock()
		err = m.sess.Logout()
		m.mu.Unlock()
	})
	return err
}

func (m *Mailbox) poll(ctx context.Context, last uint32) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		err := m.sess.Noop()
		var n uint32
		if status := m.sess.Mailbox(); status != nil {
			n = status.Messages
		}
		m.mu.Unlock()
		if err != nil {
			m.logger.Debug("mailbox noop failed", zap.Error(err))
			continue
		}
		if n <= last {
			last = n
			continue
		}
		last = n
		select {
		case m.events <- scanner.Event{Package: Package, Kind: scanner.EventContentChanged}:
		default:
		}
	}
}

func (m *Mailbox) messageNode(msg *imap.Message, section *imap.BodySectionName) *scanner.Node {
	n := &scanner.Node{}
	if env := msg.Envelope; env != nil {
		n.Text = env.Subject
		if len(env.From) > 0 && env.From[0] != nil {
			from := env.From[0]
			n.Description = formatAddress(from)
			if from.PersonalName != "" {
				n.Children = append(n.Children, &scanner.Node{Text: from.PersonalName})
			}
		}
	}
	if literal := msg.GetBody(section); literal != nil {
		raw, err := io.ReadAll(literal)
		if err != nil {
			m.logger.Debug("reading message body failed", zap.Uint32("seq", msg.SeqNum), zap.Error(err))
			return n
		}
		text, html, err := extractBodiesFromRaw(raw)
		if err != nil {
			m.logger.Debug("parsing message body failed", zap.Uint32("seq", msg.SeqNum), zap.Error(err))
			return n
		}
		if body := truncateString(firstNonEmpty(text, html), m.opts.MaxBodyChars); body != "" {
			n.Children = append(n.Children, &scanner.Node{Text: body})
		}
	}
	return n
}

// pageRange returns the sequence numbers of page (0 is newest) in a mailbox
// of total messages.
func pageRange(total uint32, page uint32, size uint32) (lo uint32, hi uint32, ok bool) {
	if size == 0 || uint64(page)*uint64(size) >= uint64(total) {
		return 0, 0, false
	}
	hi = total - page*size
	lo = 1
	if hi > size {
		lo = hi - size + 1
	}
	return lo, hi, true
}

func formatAddress(addr *imap.Address) string {
	if addr.MailboxName == "" {
		return ""
	}
	if addr.HostName == "" {
		return addr.MailboxName
	}
	return addr.MailboxName + "@" + addr.HostName
}
