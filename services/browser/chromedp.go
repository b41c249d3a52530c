// Package browser drives a real Chrome through the DevTools protocol.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"

	"github.com/trezcool/diemdanh/core"
	"github.com/trezcool/diemdanh/core/attendance"
)

const (
	aliveTimeout      = 3 * time.Second
	screenshotQuality = 90
)

type (
	element struct {
		xpath string
	}

	Launcher struct {
		navTimeout    time.Duration
		logger        core.Logger
		allocatorOpts []chromedp.ExecAllocatorOption
	}

	session struct {
		ctx        context.Context // browser tab; lives until Close
		cancel     context.CancelFunc
		navTimeout time.Duration
		closeOnce  sync.Once
	}
)

var (
	_ attendance.Launcher = (*Launcher)(nil)
	_ attendance.Session  = (*session)(nil)
)

func (e element) Locator() string { return e.xpath }

func NewLauncher(conf *core.Config, logger core.Logger) *Launcher {
	return &Launcher{
		navTimeout:    conf.Timing.ElementTimeout,
		logger:        logger,
		allocatorOpts: allocatorOptions(conf.Browser),
	}
}

func allocatorOptions(conf core.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", conf.Headless),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-first-run", true),
	)
	if conf.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(conf.ExecPath))
	}
	return opts
}

// Launch starts a new browser window. The browser outlives ctx: only Session.Close stops it.
func (l *Launcher) Launch(ctx context.Context) (attendance.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(func(format string, args ...interface{}) {
		l.logger.Debug("chromedp: " + fmt.Sprintf(format, args...))
	}))
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// abort the start (not the browser) when ctx is done
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "starting chrome")
	}
	return &session{ctx: tabCtx, cancel: cancel, navTimeout: l.navTimeout}, nil
}

// run runs actions on the tab until ctx is done or timeout (if > 0) expires.
func (s *session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		rctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		rctx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		rctx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, s.navTimeout, chromedp.Navigate(url))
}

func (s *session) find(ctx context.Context, locator string, timeout time.Duration) ([]attendance.Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, timeout, chromedp.Nodes(locator, &nodes, chromedp.BySearch)); err != nil {
		return nil, errors.Wrapf(err, "finding %s", locator)
	}
	return elements(nodes), nil
}

func (s *session) FindElement(ctx context.Context, locator string, timeout time.Duration) (attendance.Element, error) {
	els, err := s.find(ctx, locator, timeout)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, errors.Errorf("no node matches %s", locator)
	}
	return els[0], nil
}

func (s *session) FindElements(ctx context.Context, locator string, timeout time.Duration) ([]attendance.Element, error) {
	return s.find(ctx, locator, timeout)
}

func (s *session) FindWithin(ctx context.Context, parent attendance.Element, locator string) ([]attendance.Element, error) {
	var nodes []*cdp.Node
	xpath := withinXPath(parent.Locator(), locator)
	if err := s.run(ctx, s.navTimeout, chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return nil, errors.Wrapf(err, "finding %s", xpath)
	}
	return elements(nodes), nil
}

func (s *session) Click(ctx context.Context, el attendance.Element) error {
	var found bool
	if err := s.run(ctx, s.navTimeout, chromedp.Evaluate(clickScript(el.Locator()), &found)); err != nil {
		return err
	}
	if !found {
		return errors.Errorf("node %s is gone", el.Locator())
	}
	return nil
}

func (s *session) ClearAndType(ctx context.Context, el attendance.Element, text string) error {
	return s.run(ctx, s.navTimeout,
		chromedp.Clear(el.Locator(), chromedp.BySearch),
		chromedp.SendKeys(el.Locator(), text, chromedp.BySearch),
	)
}

func (s *session) RunScript(ctx context.Context, script string, res interface{}) error {
	return s.run(ctx, s.navTimeout, chromedp.Evaluate(script, res))
}

func (s *session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, s.navTimeout, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return errors.Wrap(err, "taking screenshot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating screenshot directory")
	}
	return errors.Wrap(os.WriteFile(path, buf, 0o644), "writing screenshot")
}

// Close closes the browser. Calling it more than once is a no-op.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = chromedp.Cancel(s.ctx)
		s.cancel()
	})
	if err != nil && errors.Cause(err) != context.Canceled {
		return errors.Wrap(err, "closing chrome")
	}
	return nil
}

func (s *session) IsAlive(ctx context.Context) bool {
	if s.ctx.Err() != nil {
		return false
	}
	var title string
	return s.run(ctx, aliveTimeout, chromedp.Title(&title)) == nil
}

func elements(nodes []*cdp.Node) []attendance.Element {
	els := make([]attendance.Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, element{xpath: n.FullXPath()})
	}
	return els
}

// withinXPath roots the relative xpath `rel` at the node `parent`.
// Both "//x" and ".//x" select the descendants of parent.
func withinXPath(parent, rel string) string {
	switch {
	case strings.HasPrefix(rel, ".//"):
		return parent + rel[1:]
	case strings.HasPrefix(rel, "//"):
		return parent + rel
	case strings.HasPrefix(rel, "./"):
		return parent + rel[1:]
	default:
		return parent + "/" + rel
	}
}

// clickScript clicks the node at xpath. Clicking an <option> does not select it in Chrome:
// the owning <select> is set and notified instead.
func clickScript(xpath string) string {
	quoted, _ := json.Marshal(xpath)
	return fmt.Sprintf(`(function (xp) {
	var el = document.evaluate(xp, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!el) { return false; }
	if (el.tagName === 'OPTION') {
		var sel = el.closest('select');
		if (sel) {
			sel.value = el.value;
			el.selected = true;
			sel.dispatchEvent(new Event('input', { bubbles: true }));
			sel.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		}
	}
	el.scrollIntoView({ block: 'center' });
	el.click();
	return true;
})(%s)`, quoted)
}
