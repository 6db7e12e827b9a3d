package gmail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/nalgeon/be"

	"github.com/spachava753/contactsaver/scanner"
)

type fakeMail struct {
	subject string
	from    *imap.Address
	raw     string
}

type fakeSession struct {
	mu      sync.Mutex
	mail    []fakeMail
	fetches int
	logout  bool
}

func (s *fakeSession) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	if name != DefaultMailbox || !readOnly {
		return nil, fmt.Errorf("unexpected select %q readOnly=%v", name, readOnly)
	}
	return s.Mailbox(), nil
}

func (s *fakeSession) Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	for i, m := range s.mail {
		seq := uint32(i + 1)
		if !seqset.Contains(seq) {
			continue
		}
		msg := imap.NewMessage(seq, items)
		msg.Envelope = &imap.Envelope{Subject: m.subject, From: []*imap.Address{m.from}}
		msg.Body[&imap.BodySectionName{}] = bytes.NewBufferString(m.raw)
		ch <- msg
	}
	return nil
}

func (s *fakeSession) Noop() error { return nil }

func (s *fakeSession) Mailbox() *imap.MailboxStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &imap.MailboxStatus{Name: DefaultMailbox, Messages: uint32(len(s.mail))}
}

func (s *fakeSession) Logout() error {
	s.logout = true
	return nil
}

func (s *fakeSession) deliver(m fakeMail) {
	s.mu.Lock()
	s.mail = append(s.mail, m)
	s.mu.Unlock()
}

func plainMail(n int) fakeMail {
	return fakeMail{
		subject: fmt.Sprintf("message %d", n),
		from:    &imap.Address{PersonalName: "Alice Doe", MailboxName: "alice", HostName: "example.com"},
		raw:     fmt.Sprintf("Subject: message %d\r\nContent-Type: text/plain\r\n\r\nCall me at +1 415 555 %04d\r\n", n, n),
	}
}

func TestPageRange(t *testing.T) {
	lo, hi, ok := pageRange(7, 0, 3)
	be.True(t, ok)
	be.Equal(t, []uint32{lo, hi}, []uint32{5, 7})

	lo, hi, ok = pageRange(7, 2, 3)
	be.True(t, ok)
	be.Equal(t, []uint32{lo, hi}, []uint32{1, 1})

	_, _, ok = pageRange(7, 3, 3)
	be.True(t, !ok)
	_, _, ok = pageRange(0, 0, 3)
	be.True(t, !ok)
}

func TestMailboxPages(t *testing.T) {
	sess := &fakeSession{}
	for i := 1; i <= 5; i++ {
		sess.deliver(plainMail(i))
	}
	m, err := newMailbox(context.Background(), sess, MailboxOptions{PageSize: 2}, nil)
	be.Err(t, err, nil)
	defer m.Close()

	ctx := context.Background()
	root, err := m.Root(ctx)
	be.Err(t, err, nil)
	be.Equal(t, len(root.Children), 2)
	newest := root.Children[0]
	be.Equal(t, newest.Text, "message 5")
	be.Equal(t, newest.Description, "alice@example.com")
	be.Equal(t, newest.Children[0].Text, "Alice Doe")
	be.Equal(t, newest.Children[1].Text, "Call me at +1 415 555 0005")

	for range 3 {
		g, err := m.Swipe(ctx)
		be.Err(t, err, nil)
		be.Equal(t, g, scanner.GestureCompleted)
	}
	root, err = m.Root(ctx)
	be.Err(t, err, nil)
	be.Equal(t, len(root.Children), 1)
	be.Equal(t, root.Children[0].Text, "message 1")

	// New mail does not shift pages until Rewind.
	sess.deliver(plainMail(6))
	root, err = m.Root(ctx)
	be.Err(t, err, nil)
	be.Equal(t, root.Children[0].Text, "message 1")

	be.Err(t, m.Rewind(), nil)
	root, err = m.Root(ctx)
	be.Err(t, err, nil)
	be.Equal(t, root.Children[0].Text, "message 6")

	be.Err(t, m.Close(), nil)
	be.True(t, sess.logout)
}

func TestMailboxEmpty(t *testing.T) {
	m, err := newMailbox(context.Background(), &fakeSession{}, MailboxOptions{}, nil)
	be.Err(t, err, nil)
	defer m.Close()

	root, err := m.Root(context.Background())
	be.Err(t, err, nil)
	be.True(t, root == nil)
}

func TestMailboxEventsOnNewMail(t *testing.T) {
	sess := &fakeSession{}
	sess.deliver(plainMail(1))
	m, err := newMailbox(context.Background(), sess, MailboxOptions{PollInterval: 5 * time.Millisecond}, nil)
	be.Err(t, err, nil)
	defer m.Close()

	sess.deliver(plainMail(2))
	select {
	case ev := <-m.Events():
		be.Equal(t, ev, scanner.Event{Package: Package, Kind: scanner.EventContentChanged})
	case <-time.After(5 * time.Second):
		t.Fatal("no event for new mail")
	}
}

func TestExtractBodiesFromRaw(t *testing.T) {
	raw := strings.Join([]string{
		"Subject: hi",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Reach me on +44 20 7946 0=",
		"958",
		"--b1",
		"Content-Type: text/html",
		"",
		"<p>html</p>",
		"--b1--",
		"",
	}, "\r\n")

	text, html, err := extractBodiesFromRaw([]byte(raw))
	be.Err(t, err, nil)
	be.Equal(t, text, "Reach me on +44 20 7946 0958")
	be.Equal(t, html, "<p>html</p>")
}

func TestNotifierBuildsMessage(t *testing.T) {
	n, err := NewNotifier(Credentials{Address: "me@example.com", AppPassword: "pw"}, "ops@example.com", "ops@example.com")
	be.Err(t, err, nil)

	var (
		gotFrom string
		gotTo   []string
		gotRaw  string
	)
	n.send = func(_ context.Context, _ Credentials, from string, to []string, raw []byte) error {
		gotFrom, gotTo, gotRaw = from, to, string(raw)
		return nil
	}
	n.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	be.Err(t, n.Notify(context.Background(), "Contact sync complete", "2 contacts saved, 0 failed"), nil)
	be.Equal(t, gotFrom, "me@example.com")
	be.Equal(t, gotTo, []string{"ops@example.com"})
	be.True(t, strings.Contains(gotRaw, "Subject: Contact sync complete\r\n"))
	be.True(t, strings.Contains(gotRaw, "Message-ID: <1700000000000000000.example.com>\r\n"))
	be.True(t, strings.HasSuffix(gotRaw, "\r\n\r\n2 contacts saved, 0 failed\r\n"))
}

func TestNotifierSanitizesSubjectAndRejectsEmptyBody(t *testing.T) {
	n, err := NewNotifier(Credentials{Address: "me@example.com", AppPassword: "pw"})
	be.Err(t, err, nil)
	var gotRaw string
	n.send = func(_ context.Context, _ Credentials, _ string, _ []string, raw []byte) error {
		gotRaw = string(raw)
		return nil
	}
	n.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	be.Err(t, n.Notify(context.Background(), "Sync\r\nBcc: x@example.com", "line one\nline two"), nil)
	be.True(t, !strings.Contains(gotRaw, "\r\nBcc:"))
	be.True(t, strings.Contains(gotRaw, "Content-Type: text/plain; charset=UTF-8\r\n"))
	be.True(t, strings.HasSuffix(gotRaw, "\r\n\r\nline one\r\nline two\r\n"))

	be.Err(t, n.Notify(context.Background(), "", "body"), nil)
	be.True(t, strings.Contains(gotRaw, "Subject: (no subject)\r\n"))

	gotRaw = ""
	be.Err(t, n.Notify(context.Background(), "Contact sync complete", "  "))
	be.Equal(t, gotRaw, "")
}

func TestNotifierDefaultsToSender(t *testing.T) {
	n, err := NewNotifier(Credentials{Address: "me@example.com", AppPassword: "pw"})
	be.Err(t, err, nil)
	be.Equal(t, n.to, []string{"me@example.com"})

	_, err = NewNotifier(Credentials{})
	be.Err(t, err)
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv(envGmailAddress, " me@example.com ")
	t.Setenv(envGmailAppPassword, "abcd efgh ijkl mnop")
	creds, err := LoadCredentials()
	be.Err(t, err, nil)
	be.Equal(t, creds, Credentials{Address: "me@example.com", AppPassword: "abcdefghijklmnop"})

	t.Setenv(envGmailAppPassword, "")
	_, err = LoadCredentials()
	be.Err(t, err)
}
