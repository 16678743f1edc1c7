package resimg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromeEnv answers media queries with a headless Chrome tab emulating the
// requested viewport.
type ChromeEnv struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	log     *zap.Logger
}

// NewChromeEnv starts a browser and sizes its tab to vp. Close releases it.
func NewChromeEnv(ctx context.Context, vp Viewport, log *zap.Logger) (*ChromeEnv, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if vp.Width <= 0 || vp.Height <= 0 {
		return nil, fmt.Errorf("chrome env: invalid viewport %dx%d", vp.Width, vp.Height)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	env := &ChromeEnv{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		timeout: 10 * time.Second,
		log:     log,
	}

	media := vp.Type
	if media == "" {
		media = "screen"
	}
	emulated := emulation.SetEmulatedMedia().WithMedia(media)
	if vp.Scheme != "" {
		emulated = emulated.WithFeatures([]*emulation.MediaFeature{
			{Name: "prefers-color-scheme", Value: vp.Scheme},
		})
	}
	// the first Run allocates the browser and must not carry a deadline
	if err := chromedp.Run(tabCtx); err != nil {
		env.Close()
		return nil, fmt.Errorf("chrome env: unable to start browser: %w", err)
	}
	if err := env.run(
		emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), 1, false),
		emulated,
		chromedp.Navigate("about:blank"),
	); err != nil {
		env.Close()
		return nil, fmt.Errorf("chrome env: unable to prepare tab: %w", err)
	}
	return env, nil
}

// Close shuts the browser down.
func (c *ChromeEnv) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

// MatchMedia implements MediaMatcher with window.matchMedia. Failures are
// logged and reported as a mismatch.
func (c *ChromeEnv) MatchMedia(query string) bool {
	q, err := json.Marshal(query)
	if err != nil {
		return false
	}
	var matches bool
	if err := c.run(chromedp.Evaluate(fmt.Sprintf("window.matchMedia(%s).matches", q), &matches)); err != nil {
		c.log.Warn("Unable to evaluate media query", zap.String("query", query), zap.Error(err))
		return false
	}
	return matches
}

// ViewportWidth implements Env with the document width as a browser reports it.
func (c *ChromeEnv) ViewportWidth() int {
	var width int
	const script = `Math.max(document.documentElement.scrollWidth, document.documentElement.clientWidth)`
	if err := c.run(chromedp.Evaluate(script, &width)); err != nil {
		c.log.Warn("Unable to measure document width", zap.Error(err))
		return 0
	}
	return width
}

func (c *ChromeEnv) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}
