package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/logging"
	"github.com/spachava753/contactsaver/scanner"
)

const (
	// Package is the event package identity of the Messages surface.
	Package = "com.apple.MobileSMS"

	messagesDBRelativePath = "Library/Messages/chat.db"
	appleReferenceUnix     = int64(978307200) // 2001-01-01T00:00:00Z

	defaultPageSize     = 50
	maxPageSize         = 500
	defaultPollInterval = 2 * time.Second
)

var errClosed = errors.New("messages: surface is closed")

// Options configures [Open].
type Options struct {
	// DBPath overrides ~/Library/Messages/chat.db.
	DBPath string
	// Chat limits the surface to one conversation, by chat id
	// ("any;-;+15551234567") or chat identifier.
	Chat string
	// PageSize is how many messages one screen shows.
	PageSize int
	// PollInterval is how often the database is checked for new messages.
	PollInterval time.Duration
}

// Message is one message row from the local Messages database.
type Message struct {
	RowID          int64
	Text           string
	Handle         string
	ChatIdentifier string
	ChatName       string
	IsFromMe       bool
	SentAt         time.Time
}

// Surface pages through the Messages history newest first. Each screen is a
// page of messages; a swipe moves to the next older page.
type Surface struct {
	db     *sql.DB
	opts   Options
	chat   string
	logger *zap.Logger

	mu     sync.Mutex
	offset int

	events chan scanner.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Open opens chat.db read-only and starts polling it for new messages.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Surface, error) {
	logger = logging.OrNop(logger)
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	opts.PageSize = min(opts.PageSize, maxPageSize)
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	path := opts.DBPath
	if path == "" {
		p, err := messagesDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	db, err := openMessagesDB(ctx, path)
	if err != nil {
		return nil, err
	}

	s := &Surface{
		db:     db,
		opts:   opts,
		chat:   parseChatIdentifier(opts.Chat),
		logger: logger,
		events: make(chan scanner.Event, 4),
	}

	last, err := s.maxRowID(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.poll(pollCtx, last)
	return s, nil
}

// Events implements [scanner.EventSource]. The channel closes on Close.
func (s *Surface) Events() <-chan scanner.Event {
	return s.events
}

// Root returns the current page. Each message is a node whose text is the
// message body and whose description is the sender handle; the chat name
// hangs below it.
func (s *Surface) Root(ctx context.Context) (*scanner.Node, error) {
	s.mu.Lock()
	offset := s.offset
	s.mu.Unlock()

	msgs, err := s.ListMessages(ctx, offset, s.opts.PageSize)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return pageTree(msgs), nil
}

// Swipe advances to the next older page. At the oldest page the swipe still
// completes, leaving the screen unchanged.
func (s *Surface) Swipe(ctx context.Context) (scanner.Gesture, error) {
	total, err := s.count(ctx)
	if err != nil {
		return scanner.GestureCancelled, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offset+s.opts.PageSize < total {
		s.offset += s.opts.PageSize
	}
	return scanner.GestureCompleted, nil
}

// Rewind moves back to the newest page.
func (s *Surface) Rewind() {
	s.mu.Lock()
	s.offset = 0
	s.mu.Unlock()
}

// ListMessages returns non-empty messages newest first.
func (s *Surface) ListMessages(ctx context.Context, offset int, limit int) ([]Message, error) {
	if s.db == nil {
		return nil, errClosed
	}
	rows, err := s.db.QueryContext(ctx, `
WITH chat_for_message AS (
	SELECT message_id, MIN(chat_id) AS chat_id
	FROM chat_message_join
	GROUP BY message_id
)
SELECT
	m.ROWID,
	COALESCE(m.text, ''),
	COALESCE(h.id, ''),
	COALESCE(h.uncanonicalized_id, ''),
	COALESCE(c.chat_identifier, ''),
	COALESCE(c.display_name, ''),
	COALESCE(m.is_from_me, 0),
	COALESCE(m.date, 0)
FROM message m
LEFT JOIN handle h ON h.ROWID = m.handle_id
LEFT JOIN chat_for_message cfm ON cfm.message_id = m.ROWID
LEFT JOIN chat c ON c.ROWID = cfm.chat_id
WHERE COALESCE(m.is_empty, 0) = 0
	AND (? = '' OR c.chat_identifier = ?)
ORDER BY m.date DESC, m.ROWID DESC
LIMIT ? OFFSET ?`, s.chat, s.chat, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("messages: sqlite query failed: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var (
			m                       Message
			handle, uncanonicalized string
			fromMe                  int
			date                    int64
		)
		if err := rows.Scan(&m.RowID, &m.Text, &handle, &uncanonicalized, &m.ChatIdentifier, &m.ChatName, &fromMe, &date); err != nil {
			return nil, fmt.Errorf("messages: scanning sqlite row failed: %w", err)
		}
		m.Handle = firstNonEmpty(uncanonicalized, handle)
		m.IsFromMe = fromMe != 0
		m.SentAt = appleNanoToTime(strconv.FormatInt(date, 10))
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: iterating sqlite rows failed: %w", err)
	}
	return out, nil
}

// Close stops polling and closes the database.
func (s *Surface) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		close(s.events)
		err = s.db.Close()
	})
	return err
}

func (s *Surface) count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM message m
LEFT JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
	AND cmj.chat_id = (SELECT MIN(chat_id) FROM chat_message_join WHERE message_id = m.ROWID)
LEFT JOIN chat c ON c.ROWID = cmj.chat_id
WHERE COALESCE(m.is_empty, 0) = 0
	AND (? = '' OR c.chat_identifier = ?)`, s.chat, s.chat).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("messages: counting messages failed: %w", err)
	}
	return n, nil
}

func (s *Surface) maxRowID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ROWID), 0) FROM message`).Scan(&id); err != nil {
		return 0, fmt.Errorf("messages: reading latest message failed: %w", err)
	}
	return id, nil
}

func (s *Surface) poll(ctx context.Context, last int64) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		id, err := s.maxRowID(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("polling messages database failed", zap.Error(err))
			}
			continue
		}
		if id == last {
			continue
		}
		last = id
		select {
		case s.events <- scanner.Event{Package: Package, Kind: scanner.EventContentChanged}:
		default:
		}
	}
}

func pageTree(msgs []Message) *scanner.Node {
	root := &scanner.Node{Children: make([]*scanner.Node, 0, len(msgs))}
	for _, m := range msgs {
		n := &scanner.Node{Text: m.Text, Description: m.Handle}
		if name := firstNonEmpty(m.ChatName, m.ChatIdentifier); name != "" {
			n.Children = []*scanner.Node{{Text: name}}
		}
		root.Children = append(root.Children, n)
	}
	return root
}

func openMessagesDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", strings.ReplaceAll(path, " ", "%20"))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("messages: opening sqlite database failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("messages: connecting to sqlite database failed: %w", err)
	}
	return db, nil
}

func messagesDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("messages: unable to resolve home directory: %w", err)
	}
	path := filepath.Join(home, messagesDBRelativePath)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("messages: chat database unavailable at %s: %w", path, err)
	}
	return path, nil
}

func appleNanoToTime(raw string) time.Time {
	nanos, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || nanos <= 0 {
		return time.Time{}
	}
	sec := nanos / int64(time.Second)
	nsec := nanos % int64(time.Second)
	return time.Unix(appleReferenceUnix+sec, nsec).UTC()
}

func parseChatIdentifier(chatID string) string {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return ""
	}
	parts := strings.Split(chatID, ";")
	return parts[len(parts)-1]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
