package pagedriver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher starts browser engines through a playwright driver process.
type PlaywrightLauncher struct {
	pw     *playwright.Playwright
	logger logger.Logger
}

// NewPlaywrightLauncher starts the playwright driver, installing the driver
// and browsers first when install is true.
func NewPlaywrightLauncher(install bool, log logger.Logger) (*PlaywrightLauncher, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if install {
		if err := playwright.Install(opts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	return &PlaywrightLauncher{pw: pw, logger: log}, nil
}

// Stop shuts the playwright driver down.
func (l *PlaywrightLauncher) Stop() error {
	return l.pw.Stop()
}

// Launch starts the engine described by engine.
func (l *PlaywrightLauncher) Launch(ctx context.Context, engine Engine) (Browser, error) {
	var browserType playwright.BrowserType
	switch engine.BrowserName {
	case "firefox":
		browserType = l.pw.Firefox
	case "webkit":
		browserType = l.pw.WebKit
	default:
		browserType = l.pw.Chromium
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(engine.Headless),
	}
	if engine.Channel != "" {
		opts.Channel = playwright.String(engine.Channel)
	}
	if engine.SlowMo > 0 {
		opts.SlowMo = playwright.Float(millis(engine.SlowMo))
	}

	browser, err := browserType.Launch(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", engine.Name, err)
	}

	l.logger.Info(ctx, "browser launched", logger.Fields{
		"project": engine.Name,
		"browser": engine.BrowserName,
		"channel": engine.Channel,
		"version": browser.Version(),
	})

	return &playwrightBrowser{browser: browser, engine: engine, logger: l.logger}, nil
}

type playwrightBrowser struct {
	browser playwright.Browser
	engine  Engine
	logger  logger.Logger
}

func (b *playwrightBrowser) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	size := &playwright.Size{Width: b.engine.ViewportWidth, Height: b.engine.ViewportHeight}
	contextOpts := playwright.BrowserNewContextOptions{
		Viewport:          size,
		IgnoreHttpsErrors: playwright.Bool(b.engine.IgnoreHTTPSErrors),
	}
	if opts.Record {
		if err := os.MkdirAll(opts.VideoDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create video directory: %w", err)
		}
		contextOpts.RecordVideo = &playwright.RecordVideo{Dir: opts.VideoDir, Size: size}
	}

	bctx, err := b.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	actionTimeout := b.engine.ActionTimeout
	if opts.DefaultTimeout > 0 {
		actionTimeout = opts.DefaultTimeout
	}
	if actionTimeout > 0 {
		bctx.SetDefaultTimeout(millis(actionTimeout))
	}
	if b.engine.NavigationTimeout > 0 {
		bctx.SetDefaultNavigationTimeout(millis(b.engine.NavigationTimeout))
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &playwrightSession{
		bctx:   bctx,
		page:   &playwrightPage{page: page},
		record: opts.Record,
	}, nil
}

func (b *playwrightBrowser) Close() error {
	return b.browser.Close()
}

type playwrightSession struct {
	bctx   playwright.BrowserContext
	page   *playwrightPage
	record bool

	closeOnce sync.Once
	closeErr  error
}

func (s *playwrightSession) Page() Page {
	return s.page
}

func (s *playwrightSession) Recording() (Recording, error) {
	if !s.record {
		return nil, ErrNotRecording
	}
	video := s.page.page.Video()
	if video == nil {
		return nil, ErrNotRecording
	}
	return &playwrightRecording{page: s.page.page, video: video}, nil
}

func (s *playwrightSession) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		if !s.page.page.IsClosed() {
			if err := s.page.page.Close(); err != nil {
				s.closeErr = fmt.Errorf("failed to close page: %w", err)
			}
		}
		if err := s.bctx.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("failed to close browser context: %w", err)
		}
	})
	return s.closeErr
}

type playwrightRecording struct {
	page  playwright.Page
	video playwright.Video
}

// Stop closes the page, which is when playwright finishes writing the file.
func (r *playwrightRecording) Stop(ctx context.Context) (Video, error) {
	if !r.page.IsClosed() {
		if err := r.page.Close(); err != nil {
			return Video{}, fmt.Errorf("failed to close recorded page: %w", err)
		}
	}
	path, err := r.video.Path()
	if err != nil {
		return Video{}, fmt.Errorf("failed to resolve video path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Video{}, fmt.Errorf("failed to read video: %w", err)
	}
	return Video{
		Name:        filepath.Base(path),
		ContentType: "video/webm",
		Data:        data,
	}, nil
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := playwright.PageGotoOptions{}
	if d, ok := ctxTimeout(ctx); ok {
		opts.Timeout = playwright.Float(millis(d))
	}
	if _, err := p.page.Goto(url, opts); err != nil {
		return translate(fmt.Errorf("navigation to %s failed: %w", url, err))
	}
	return nil
}

func (p *playwrightPage) WaitForLoadState(ctx context.Context, state LoadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st := playwright.LoadState(state)
	opts := playwright.PageWaitForLoadStateOptions{State: &st}
	if d, ok := ctxTimeout(ctx); ok {
		opts.Timeout = playwright.Float(millis(d))
	}
	return translate(p.page.WaitForLoadState(opts))
}

func (p *playwrightPage) WaitForURL(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(p.page.WaitForURL(pattern, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(millis(boundedTimeout(ctx, timeout))),
	}))
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Locate(sel Selector) Locator {
	loc, err := p.resolve(sel)
	return &playwrightLocator{loc: loc, err: err, desc: sel.String()}
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
}

func (p *playwrightPage) resolve(sel Selector) (playwright.Locator, error) {
	root := p.page.Locator(":root")
	if sel.Scope != nil {
		scope, err := p.resolve(*sel.Scope)
		if err != nil {
			return nil, err
		}
		root = scope
	}

	var loc playwright.Locator
	switch sel.Strategy {
	case ByCSS:
		loc = root.Locator(sel.Value)
	case ByRole:
		opts := playwright.LocatorGetByRoleOptions{}
		if sel.Name != "" {
			name, err := textArg(sel.Name, sel.Exact)
			if err != nil {
				return nil, err
			}
			opts.Name = name
			opts.Exact = playwright.Bool(sel.Exact)
		}
		loc = root.GetByRole(playwright.AriaRole(sel.Value), opts)
	case ByPlaceholder:
		text, err := textArg(sel.Value, sel.Exact)
		if err != nil {
			return nil, err
		}
		loc = root.GetByPlaceholder(text, playwright.LocatorGetByPlaceholderOptions{Exact: playwright.Bool(sel.Exact)})
	case ByText:
		text, err := textArg(sel.Value, sel.Exact)
		if err != nil {
			return nil, err
		}
		loc = root.GetByText(text, playwright.LocatorGetByTextOptions{Exact: playwright.Bool(sel.Exact)})
	case ByLabel:
		text, err := textArg(sel.Value, sel.Exact)
		if err != nil {
			return nil, err
		}
		loc = root.GetByLabel(text, playwright.LocatorGetByLabelOptions{Exact: playwright.Bool(sel.Exact)})
	default:
		return nil, fmt.Errorf("unsupported selector strategy %q", sel.Strategy)
	}

	if sel.Alt != nil {
		alt, err := p.resolve(*sel.Alt)
		if err != nil {
			return nil, err
		}
		loc = loc.Or(alt)
	}

	switch sel.Pick {
	case PickFirst:
		loc = loc.First()
	case PickLast:
		loc = loc.Last()
	}
	return loc, nil
}

// textArg returns a literal string for exact matches and a
// case-insensitive regexp otherwise.
func textArg(value string, exact bool) (interface{}, error) {
	if exact {
		return value, nil
	}
	return Pattern(value)
}

type playwrightLocator struct {
	loc  playwright.Locator
	err  error
	desc string
}

func (l *playwrightLocator) ready(ctx context.Context) error {
	if l.err != nil {
		return l.err
	}
	return ctx.Err()
}

func (l *playwrightLocator) WaitFor(ctx context.Context, state ElementState, timeout time.Duration) error {
	if err := l.ready(ctx); err != nil {
		return err
	}
	st := playwright.WaitForSelectorState(state)
	return translate(l.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   &st,
		Timeout: playwright.Float(millis(boundedTimeout(ctx, timeout))),
	}))
}

func (l *playwrightLocator) Click(ctx context.Context) error {
	if err := l.ready(ctx); err != nil {
		return err
	}
	opts := playwright.LocatorClickOptions{}
	if d, ok := ctxTimeout(ctx); ok {
		opts.Timeout = playwright.Float(millis(d))
	}
	return translate(l.loc.Click(opts))
}

func (l *playwrightLocator) Fill(ctx context.Context, value string) error {
	if err := l.ready(ctx); err != nil {
		return err
	}
	opts := playwright.LocatorFillOptions{}
	if d, ok := ctxTimeout(ctx); ok {
		opts.Timeout = playwright.Float(millis(d))
	}
	return translate(l.loc.Fill(value, opts))
}

func (l *playwrightLocator) Clear(ctx context.Context) error {
	if err := l.ready(ctx); err != nil {
		return err
	}
	opts := playwright.LocatorClearOptions{}
	if d, ok := ctxTimeout(ctx); ok {
		opts.Timeout = playwright.Float(millis(d))
	}
	return translate(l.loc.Clear(opts))
}

func (l *playwrightLocator) Count(ctx context.Context) (int, error) {
	if err := l.ready(ctx); err != nil {
		return 0, err
	}
	n, err := l.loc.Count()
	return n, translate(err)
}

func (l *playwrightLocator) TextContent(ctx context.Context) (string, error) {
	if err := l.ready(ctx); err != nil {
		return "", err
	}
	opts := playwright.LocatorTextContentOptions{}
	if d, ok := ctxTimeout(ctx); ok {
		opts.Timeout = playwright.Float(millis(d))
	}
	text, err := l.loc.TextContent(opts)
	return text, translate(err)
}

func (l *playwrightLocator) First() Locator {
	if l.err != nil {
		return l
	}
	return &playwrightLocator{loc: l.loc.First(), desc: l.desc + " >> first"}
}

func (l *playwrightLocator) Nth(index int) Locator {
	if l.err != nil {
		return l
	}
	return &playwrightLocator{loc: l.loc.Nth(index), desc: fmt.Sprintf("%s >> nth=%d", l.desc, index)}
}

func (l *playwrightLocator) String() string {
	return l.desc
}

// translate maps playwright timeouts onto ErrTimeout so callers can stay
// driver-agnostic.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func ctxTimeout(ctx context.Context) (time.Duration, bool) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0, false
	}
	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	return remaining, true
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
