package pagedriver

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"
)

// Fake is a scripted in-memory page. Elements are registered against the
// same Selector values the suite uses and can be made to appear, disappear
// or react to clicks and fills. Fake also implements Session so a test can
// hand it straight to the code under test.
type Fake struct {
	mu       sync.Mutex
	url      string
	elements map[string]*FakeElement
	actions  []string
	onGoto   func(url string)
	interval time.Duration

	record      bool
	options     SessionOptions
	strict      bool
	closed      bool
	closes      int
	videoStops  int
	screenshots int
	video       []byte
}

// NewFake returns an empty page at about:blank.
func NewFake() *Fake {
	return &Fake{
		url:      "about:blank",
		elements: make(map[string]*FakeElement),
		interval: 5 * time.Millisecond,
		video:    []byte("fake-webm"),
	}
}

// FakeElement is the scripted state behind one selector.
type FakeElement struct {
	fake    *Fake
	key     string
	count   int
	text    string
	value   string
	clicks  int
	showAt  time.Time
	hideAt  time.Time
	onClick func()
	onFill  func(value string)
}

// Element returns the element registered for sel, creating an absent one.
func (f *Fake) Element(sel Selector) *FakeElement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elementLocked(sel.String())
}

func (f *Fake) elementLocked(key string) *FakeElement {
	el, ok := f.elements[key]
	if !ok {
		el = &FakeElement{fake: f, key: key}
		f.elements[key] = el
	}
	return el
}

// SessionOptions returns the options the session was created with.
func (f *Fake) SessionOptions() SessionOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.options
}

// Strict makes waits on locators matching several elements fail with
// ErrStrictMode, as a real browser page does.
func (f *Fake) Strict() *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strict = true
	return f
}

// Show makes sel visible with a single match.
func (f *Fake) Show(sel Selector) *FakeElement {
	return f.Element(sel).Visible()
}

// Hide removes every match of sel.
func (f *Fake) Hide(sel Selector) *FakeElement {
	return f.Element(sel).Hidden()
}

// SetURL moves the page to url without recording a navigation.
func (f *Fake) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
}

// OnGoto runs fn after every navigation.
func (f *Fake) OnGoto(fn func(url string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onGoto = fn
}

// SetVideo replaces the bytes returned when a recording stops.
func (f *Fake) SetVideo(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = data
}

// Actions returns the journal of navigations, clicks and fills.
func (f *Fake) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.actions))
	copy(out, f.actions)
	return out
}

// Closed reports whether the session was closed.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Closes returns how many times Close was called.
func (f *Fake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// VideoStops returns how many times the recording was stopped.
func (f *Fake) VideoStops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.videoStops
}

// Screenshots returns how many screenshots were taken.
func (f *Fake) Screenshots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screenshots
}

func (f *Fake) logLocked(format string, args ...interface{}) {
	f.actions = append(f.actions, fmt.Sprintf(format, args...))
}

// Visible sets the element to a single visible match.
func (e *FakeElement) Visible() *FakeElement {
	return e.Count(1)
}

// Hidden removes every match.
func (e *FakeElement) Hidden() *FakeElement {
	return e.Count(0)
}

// Count sets the number of visible matches and clears pending transitions.
func (e *FakeElement) Count(n int) *FakeElement {
	e.fake.mu.Lock()
	defer e.fake.mu.Unlock()
	e.count = n
	e.showAt = time.Time{}
	e.hideAt = time.Time{}
	return e
}

// Text sets the element's text content.
func (e *FakeElement) Text(text string) *FakeElement {
	e.fake.mu.Lock()
	defer e.fake.mu.Unlock()
	e.text = text
	return e
}

// AppearAfter makes the element visible once d has passed.
func (e *FakeElement) AppearAfter(d time.Duration) *FakeElement {
	e.fake.mu.Lock()
	defer e.fake.mu.Unlock()
	if e.count == 0 {
		e.count = 1
	}
	e.showAt = time.Now().Add(d)
	e.hideAt = time.Time{}
	return e
}

// DisappearAfter hides the element once d has passed.
func (e *FakeElement) DisappearAfter(d time.Duration) *FakeElement {
	e.fake.mu.Lock()
	defer e.fake.mu.Unlock()
	e.hideAt = time.Now().Add(d)
	return e
}

// OnClick runs fn after every click on the element.
func (e *FakeElement) OnClick(fn func()) *FakeElement {
	e.fake.mu.Lock()
	defer e.fake.mu.Unlock()
	e.onClick = fn
	return e
}

// OnFill runs fn after every fill of the element.
func (e *FakeElement) OnFill(fn func(value string)) *FakeElement {
	e.fake.mu.Lock()
	defer e.fake.mu.Unlock()
	e.onFill = fn
	return e
}

// Clicks returns how many times the element was clicked.
func (e *FakeElement) Clicks() int {
	e.fake.mu.Lock()
	defer e.fake.mu.Unlock()
	return e.clicks
}

// Value returns the last filled value.
func (e *FakeElement) Value() string {
	e.fake.mu.Lock()
	defer e.fake.mu.Unlock()
	return e.value
}

func (e *FakeElement) visibleCount(now time.Time) int {
	if !e.showAt.IsZero() && now.Before(e.showAt) {
		return 0
	}
	if !e.hideAt.IsZero() && !now.Before(e.hideAt) {
		return 0
	}
	return e.count
}

// Goto records the navigation and runs the OnGoto hook.
func (f *Fake) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.url = url
	f.logLocked("goto %s", url)
	hook := f.onGoto
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	return nil
}

func (f *Fake) WaitForLoadState(ctx context.Context, state LoadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.logLocked("load %s", state)
	return nil
}

func (f *Fake) WaitForURL(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error {
	return f.poll(ctx, timeout, fmt.Sprintf("url %s", pattern), func() bool {
		return pattern.MatchString(f.url)
	})
}

func (f *Fake) URL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

func (f *Fake) Locate(sel Selector) Locator {
	return &fakeLocator{fake: f, sel: sel, nth: -1}
}

func (f *Fake) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	f.screenshots++
	return []byte(fmt.Sprintf("png-%d", f.screenshots)), nil
}

// Page implements Session.
func (f *Fake) Page() Page {
	return f
}

// Recording implements Session.
func (f *Fake) Recording() (Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.record {
		return nil, ErrNotRecording
	}
	return fakeRecording{fake: f}, nil
}

// Close implements Session.
func (f *Fake) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.closed = true
	return nil
}

// poll checks cond until it holds, timeout passes or ctx ends.
func (f *Fake) poll(ctx context.Context, timeout time.Duration, what string, cond func() bool) error {
	deadline := time.Now().Add(boundedTimeout(ctx, timeout))
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return ErrClosed
		}
		ok := cond()
		f.mu.Unlock()
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: waiting for %s after %s", ErrTimeout, what, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.interval):
		}
	}
}

// resolveLocked returns the elements sel matches, in selector order.
func (f *Fake) resolveLocked(sel Selector) []*FakeElement {
	if el, ok := f.elements[sel.String()]; ok {
		return []*FakeElement{el}
	}
	if sel.Pick != PickAll {
		base := sel
		base.Pick = PickAll
		return f.resolveLocked(base)
	}
	if sel.Alt != nil {
		primary := sel
		primary.Alt = nil
		return append(f.resolveLocked(primary), f.resolveLocked(*sel.Alt)...)
	}
	return nil
}

type fakeLocator struct {
	fake *Fake
	sel  Selector
	nth  int
}

// countLocked returns the visible match count and the element actions land on.
func (l *fakeLocator) countLocked() (int, *FakeElement) {
	now := time.Now()
	total := 0
	var target *FakeElement
	for _, el := range l.fake.resolveLocked(l.sel) {
		n := el.visibleCount(now)
		if n > 0 {
			if target == nil || l.sel.Pick == PickLast {
				target = el
			}
			total += n
		}
	}
	if l.sel.Pick != PickAll && total > 1 {
		total = 1
	}
	if l.nth >= 0 {
		if l.nth < total {
			return 1, target
		}
		return 0, nil
	}
	return total, target
}

func (l *fakeLocator) WaitFor(ctx context.Context, state ElementState, timeout time.Duration) error {
	var strictErr error
	err := l.fake.poll(ctx, timeout, fmt.Sprintf("%s to be %s", l, state), func() bool {
		n, _ := l.countLocked()
		if l.fake.strict && n > 1 {
			strictErr = fmt.Errorf("%w: %s matched %d", ErrStrictMode, l, n)
			return true
		}
		switch state {
		case StateHidden, StateDetached:
			return n == 0
		default:
			return n > 0
		}
	})
	if strictErr != nil {
		return strictErr
	}
	return err
}

func (l *fakeLocator) target(ctx context.Context) (*FakeElement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.fake.closed {
		return nil, ErrClosed
	}
	n, el := l.countLocked()
	if n == 0 || el == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, l)
	}
	return el, nil
}

func (l *fakeLocator) Click(ctx context.Context) error {
	l.fake.mu.Lock()
	el, err := l.target(ctx)
	if err != nil {
		l.fake.mu.Unlock()
		return err
	}
	el.clicks++
	l.fake.logLocked("click %s", l)
	hook := el.onClick
	l.fake.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (l *fakeLocator) Fill(ctx context.Context, value string) error {
	l.fake.mu.Lock()
	el, err := l.target(ctx)
	if err != nil {
		l.fake.mu.Unlock()
		return err
	}
	el.value = value
	l.fake.logLocked("fill %s = %q", l, value)
	hook := el.onFill
	l.fake.mu.Unlock()

	if hook != nil {
		hook(value)
	}
	return nil
}

func (l *fakeLocator) Clear(ctx context.Context) error {
	return l.Fill(ctx, "")
}

func (l *fakeLocator) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.fake.mu.Lock()
	defer l.fake.mu.Unlock()
	if l.fake.closed {
		return 0, ErrClosed
	}
	n, _ := l.countLocked()
	return n, nil
}

func (l *fakeLocator) TextContent(ctx context.Context) (string, error) {
	l.fake.mu.Lock()
	defer l.fake.mu.Unlock()
	el, err := l.target(ctx)
	if err != nil {
		return "", err
	}
	return el.text, nil
}

func (l *fakeLocator) First() Locator {
	return l.Nth(0)
}

func (l *fakeLocator) Nth(index int) Locator {
	return &fakeLocator{fake: l.fake, sel: l.sel, nth: index}
}

func (l *fakeLocator) String() string {
	if l.nth >= 0 {
		return fmt.Sprintf("%s >> nth=%d", l.sel, l.nth)
	}
	return l.sel.String()
}

type fakeRecording struct {
	fake *Fake
}

func (r fakeRecording) Stop(ctx context.Context) (Video, error) {
	r.fake.mu.Lock()
	defer r.fake.mu.Unlock()
	r.fake.videoStops++
	r.fake.closed = true
	return Video{Name: "video.webm", ContentType: "video/webm", Data: r.fake.video}, nil
}

// FakeLauncher hands out Fake sessions. NewPage, when set, builds the page
// for each session so a test can script the application up front.
type FakeLauncher struct {
	NewPage func(engine Engine) *Fake

	mu       sync.Mutex
	launched []Engine
	sessions []*Fake
	browsers int
	closed   int
}

func (l *FakeLauncher) Launch(ctx context.Context, engine Engine) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, engine)
	l.browsers++
	return &fakeBrowser{launcher: l, engine: engine}, nil
}

// Launched returns the engines launched so far.
func (l *FakeLauncher) Launched() []Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Engine(nil), l.launched...)
}

// Sessions returns every session created so far.
func (l *FakeLauncher) Sessions() []*Fake {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Fake(nil), l.sessions...)
}

// OpenBrowsers returns launched browsers that were not closed.
func (l *FakeLauncher) OpenBrowsers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.browsers - l.closed
}

type fakeBrowser struct {
	launcher *FakeLauncher
	engine   Engine
}

func (b *fakeBrowser) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var f *Fake
	if b.launcher.NewPage != nil {
		f = b.launcher.NewPage(b.engine)
	}
	if f == nil {
		f = NewFake()
	}
	f.mu.Lock()
	f.record = opts.Record
	f.options = opts
	f.mu.Unlock()

	b.launcher.mu.Lock()
	b.launcher.sessions = append(b.launcher.sessions, f)
	b.launcher.mu.Unlock()
	return f, nil
}

func (b *fakeBrowser) Close() error {
	b.launcher.mu.Lock()
	defer b.launcher.mu.Unlock()
	b.launcher.closed++
	return nil
}
