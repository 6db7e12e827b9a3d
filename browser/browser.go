package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/logging"
	"github.com/spachava753/contactsaver/scanner"
)

const (
	// WhatsAppWebURL is the page opened by default.
	WhatsAppWebURL = "https://web.whatsapp.com/"
	// Package is the event package identity of the web surface. Add it to
	// the scanner's package filter.
	Package = "web.whatsapp.com"

	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxNodes       = 20000
	defaultScrollSelector = "#main [role='application'], #pane-side, [data-testid='chat-list']"
	scrollStepPixels      = 600
	scrollSteps           = 4
	settleDelay           = 150 * time.Millisecond
)

var errClosed = errors.New("browser: surface is closed")

// Options configures [Open].
type Options struct {
	// ControlURL connects to an already running Chrome DevTools endpoint.
	// When empty a browser is launched.
	ControlURL string
	// Headless launches without a window. WhatsApp Web needs a logged-in
	// profile, so headless launches usually pair with UserDataDir.
	Headless bool
	// UserDataDir is the Chrome profile directory for launched browsers.
	UserDataDir string
	// URL overrides [WhatsAppWebURL].
	URL string
	// ScrollSelector is the CSS selector list of the pane to scroll. The
	// first match wins; the document scrolls when nothing matches.
	ScrollSelector string
	// PollInterval is how often the DOM change counters are checked.
	PollInterval time.Duration
	// MaxNodes caps a content snapshot.
	MaxNodes int
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = WhatsAppWebURL
	}
	if o.ScrollSelector == "" {
		o.ScrollSelector = defaultScrollSelector
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = defaultMaxNodes
	}
	return o
}

// WhatsAppWeb is a [scanner.Surface] and [scanner.EventSource] over a
// WhatsApp Web tab.
type WhatsAppWeb struct {
	opts     Options
	logger   *zap.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	events chan scanner.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Open connects to (or launches) Chrome, opens WhatsApp Web, and starts
// watching the page for changes. ctx bounds the whole session; call Close to
// release the browser.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*WhatsAppWeb, error) {
	opts = opts.withDefaults()
	logger = logging.OrNop(logger)
	w := &WhatsAppWeb{opts: opts, logger: logger, events: make(chan scanner.Event, 16)}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launching chrome failed: %w", err)
		}
		w.launcher = l
		controlURL = u
	}

	w.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := w.browser.Connect(); err != nil {
		w.killLauncher()
		return nil, fmt.Errorf("browser: connecting to chrome failed: %w", err)
	}

	page, err := w.browser.Page(proto.TargetCreateTarget{URL: opts.URL})
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("browser: opening %s failed: %w", opts.URL, err)
	}
	w.page = page
	if err := page.WaitLoad(); err != nil {
		w.Close()
		return nil, fmt.Errorf("browser: waiting for %s failed: %w", opts.URL, err)
	}
	if _, err := page.Evaluate(&rod.EvalOptions{JS: installObserverJS}); err != nil {
		w.Close()
		return nil, fmt.Errorf("browser: installing change observer failed: %w", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.poll(pollCtx)

	logger.Info("whatsapp web surface ready", zap.String("url", opts.URL))
	return w, nil
}

// Events implements [scanner.EventSource]. The channel closes on Close.
func (w *WhatsAppWeb) Events() <-chan scanner.Event {
	return w.events
}

// Root snapshots visible text and accessible labels as a content tree.
func (w *WhatsAppWeb) Root(ctx context.Context) (*scanner.Node, error) {
	if w.page == nil {
		return nil, errClosed
	}
	res, err := w.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      snapshotJS,
		JSArgs:  []interface{}{w.opts.MaxNodes},
		ByValue: true,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot failed: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot encoding failed: %w", err)
	}
	var flat []flatNode
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("browser: snapshot decoding failed: %w", err)
	}
	return buildTree(flat), nil
}

// Swipe scrolls the chat pane down with the mouse wheel. It reports
// [scanner.GestureCancelled] when the pane did not move although it had more
// content below.
func (w *WhatsAppWeb) Swipe(ctx context.Context) (scanner.Gesture, error) {
	if w.page == nil {
		return scanner.GestureCancelled, errClosed
	}
	page := w.page.Context(ctx)

	before, err := w.scrollState(page)
	if err != nil {
		return scanner.GestureCancelled, err
	}
	if before.atEnd() {
		return scanner.GestureCompleted, nil
	}
	if err := page.Mouse.MoveTo(proto.Point{X: before.X, Y: before.Y}); err != nil {
		return scanner.GestureCancelled, fmt.Errorf("browser: moving pointer failed: %w", err)
	}
	if err := page.Mouse.Scroll(0, scrollStepPixels, scrollSteps); err != nil {
		return scanner.GestureCancelled, fmt.Errorf("browser: scrolling failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return scanner.GestureCancelled, ctx.Err()
	case <-time.After(settleDelay):
	}

	after, err := w.scrollState(page)
	if err != nil {
		return scanner.GestureCancelled, err
	}
	return gestureFor(before, after), nil
}

// Close stops change polling and releases the page and browser.
func (w *WhatsAppWeb) Close() error {
	var err error
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		close(w.events)
		if w.page != nil {
			_ = w.page.Close()
		}
		if w.browser != nil {
			err = w.browser.Close()
		}
		w.killLauncher()
	})
	return err
}

func (w *WhatsAppWeb) killLauncher() {
	if w.launcher != nil {
		w.launcher.Kill()
	}
}

func (w *WhatsAppWeb) scrollState(page *rod.Page) (scrollState, error) {
	res, err := page.Evaluate(&rod.EvalOptions{
		JS:      scrollStateJS,
		JSArgs:  []interface{}{w.opts.ScrollSelector},
		ByValue: true,
	})
	if err != nil {
		return scrollState{}, fmt.Errorf("browser: reading scroll position failed: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return scrollState{}, err
	}
	var st scrollState
	if err := json.Unmarshal(raw, &st); err != nil {
		return scrollState{}, fmt.Errorf("browser: decoding scroll position failed: %w", err)
	}
	return st, nil
}

func (w *WhatsAppWeb) poll(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	var last counters
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		res, err := w.page.Context(ctx).Evaluate(&rod.EvalOptions{JS: countersJS, ByValue: true})
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Debug("polling change counters failed", zap.Error(err))
			}
			continue
		}
		raw, err := res.Value.MarshalJSON()
		if err != nil {
			continue
		}
		var cur counters
		if err := json.Unmarshal(raw, &cur); err != nil {
			continue
		}
		for _, ev := range diffCounters(last, cur) {
			select {
			case w.events <- ev:
			default:
				// The scanner rescans on the next event anyway.
			}
		}
		last = cur
	}
}

type flatNode struct {
	Text        string `json:"t"`
	Description string `json:"d"`
	Parent      int    `json:"p"`
}

// buildTree links a flat pre-order node list into a tree. Parent is the index
// of an earlier node, or -1 for roots; roots hang off a synthetic top node.
func buildTree(flat []flatNode) *scanner.Node {
	top := &scanner.Node{}
	nodes := make([]*scanner.Node, len(flat))
	for i, f := range flat {
		n := &scanner.Node{Text: f.Text, Description: f.Description}
		nodes[i] = n
		parent := top
		if f.Parent >= 0 && f.Parent < i {
			parent = nodes[f.Parent]
		}
		parent.Children = append(parent.Children, n)
	}
	return top
}

type counters struct {
	Mutations int64 `json:"mutations"`
	Scrolls   int64 `json:"scrolls"`
}

func diffCounters(prev counters, cur counters) []scanner.Event {
	var out []scanner.Event
	if cur.Mutations != prev.Mutations {
		out = append(out, scanner.Event{Package: Package, Kind: scanner.EventContentChanged})
	}
	if cur.Scrolls != prev.Scrolls {
		out = append(out, scanner.Event{Package: Package, Kind: scanner.EventScrolled})
	}
	return out
}

type scrollState struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Top float64 `json:"top"`
	Max float64 `json:"max"`
}

func (s scrollState) atEnd() bool {
	return s.Top >= s.Max-1
}

func gestureFor(before scrollState, after scrollState) scanner.Gesture {
	if after.Top > before.Top || after.atEnd() {
		return scanner.GestureCompleted
	}
	return scanner.GestureCancelled
}

const installObserverJS = `() => {
	if (window.__contactsaver) return;
	window.__contactsaver = { mutations: 0, scrolls: 0 };
	new MutationObserver(() => { window.__contactsaver.mutations++; })
		.observe(document.body, { subtree: true, childList: true, characterData: true });
	document.addEventListener('scroll', () => { window.__contactsaver.scrolls++; }, true);
}`

const countersJS = `() => window.__contactsaver || { mutations: 0, scrolls: 0 }`

const snapshotJS = `(maxNodes) => {
	const out = [];
	const stack = [{ el: document.body, parent: -1 }];
	while (stack.length > 0 && out.length < maxNodes) {
		const { el, parent } = stack.pop();
		if (!el || el.nodeType !== Node.ELEMENT_NODE) continue;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') continue;
		let text = '';
		for (const child of el.childNodes) {
			if (child.nodeType === Node.TEXT_NODE) text += child.nodeValue;
		}
		const desc = el.getAttribute('aria-label') || el.getAttribute('title') || '';
		const index = out.length;
		out.push({ t: text.trim(), d: desc.trim(), p: parent });
		for (let i = el.children.length - 1; i >= 0; i--) {
			stack.push({ el: el.children[i], parent: index });
		}
	}
	return out;
}`

const scrollStateJS = `(selector) => {
	const el = document.querySelector(selector) || document.scrollingElement || document.body;
	const r = el.getBoundingClientRect();
	return {
		x: r.left + r.width / 2,
		y: r.top + Math.min(r.height, window.innerHeight) / 2,
		top: el.scrollTop,
		max: el.scrollHeight - el.clientHeight,
	};
}`
