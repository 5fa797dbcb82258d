package websearch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"omnichat/internal/logging"
)

// RodRenderer loads pages in a headless Chrome so JS-rendered sites
// produce real content. The browser is launched per call and torn
// down afterwards; rendering is the exception path, not the rule.
type RodRenderer struct {
	navTimeout time.Duration
}

// NewRodRenderer creates a renderer with a 30s navigation timeout.
func NewRodRenderer() *RodRenderer {
	return &RodRenderer{navTimeout: 30 * time.Second}
}

// Render fetches a page through headless Chrome and returns the
// rendered HTML.
func (r *RodRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return "", fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(r.navTimeout)
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("load %s: %w", pageURL, err)
	}

	res, err := page.Evaluate(&rod.EvalOptions{
		JS:           `() => document.documentElement.outerHTML`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return "", fmt.Errorf("capture html: %w", err)
	}

	htmlSrc := res.Value.Str()
	logging.SearchDebug("rendered %s (%d bytes)", pageURL, len(htmlSrc))
	return htmlSrc, nil
}
