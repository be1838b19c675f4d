package portal

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	perr "processo/internal/platform/errors"
)

// driver is the thin browser seam the session logic runs against.
// Production uses chromedp; tests swap in a scripted fake
type driver interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	Click(ctx context.Context, sel string) error
	SetValue(ctx context.Context, sel, value string) error
	Submit(ctx context.Context, sel string) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// chromedpDriver owns one exec allocator and one browser tab
type chromedpDriver struct {
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context
	navTimeout  time.Duration
}

// newChromedpDriver spawns a browser. The tab context survives until Close;
// per-operation deadlines come from navTimeout
func newChromedpDriver(ctx context.Context, o Options) (driver, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(o.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	// force browser start now so session open failures surface here,
	// not in the middle of the first lookup
	if err := chromedp.Run(tab); err != nil {
		tabCancel()
		allocCancel()
		return nil, perr.Wrap(err, perr.ErrorCodeNetworkFailure, "portal: browser start")
	}
	return &chromedpDriver{
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		tab:         tab,
		navTimeout:  o.NavTimeout,
	}, nil
}

func (d *chromedpDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(d.tab, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(opCtx, actions...) }()
	select {
	case <-ctx.Done():
		cancel()
		<-done
		return perr.Classify(ctx.Err())
	case err := <-done:
		if err != nil {
			return perr.Classify(err)
		}
		return nil
	}
}

func (d *chromedpDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, d.navTimeout, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (d *chromedpDriver) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (d *chromedpDriver) Click(ctx context.Context, sel string) error {
	return d.run(ctx, d.navTimeout, chromedp.Click(sel, chromedp.ByQuery))
}

func (d *chromedpDriver) SetValue(ctx context.Context, sel, value string) error {
	return d.run(ctx, d.navTimeout, chromedp.SetValue(sel, value, chromedp.ByQuery))
}

func (d *chromedpDriver) Submit(ctx context.Context, sel string) error {
	return d.run(ctx, d.navTimeout, chromedp.Submit(sel, chromedp.ByQuery))
}

func (d *chromedpDriver) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, d.navTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (d *chromedpDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, d.navTimeout, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func (d *chromedpDriver) Close() error {
	d.tabCancel()
	d.allocCancel()
	return nil
}
