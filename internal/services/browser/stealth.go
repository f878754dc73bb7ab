package browser

import (
	"context"
	"math/rand"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// defaultUserAgents is the rotation pool used when no pool is configured.
// Current desktop Chrome strings only; mixing browsers or mobile strings is
// an easy fingerprint.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

// stealthScript masks the most common automation tells before any page
// script runs: the webdriver flag, the empty plugin list headless Chrome
// ships with, and the missing window.chrome object.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });

Object.defineProperty(navigator, 'plugins', {
	get: () => [1, 2, 3, 4, 5],
});

Object.defineProperty(navigator, 'languages', {
	get: () => ['en-US', 'en'],
});

window.chrome = window.chrome || { runtime: {} };

const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications'
		? Promise.resolve({ state: Notification.permission })
		: originalQuery(parameters)
);
`

// pickUserAgent returns a random agent from the configured pool, falling
// back to the built-in pool when none is configured.
func pickUserAgent(pool []string) string {
	if len(pool) == 0 {
		pool = defaultUserAgents
	}
	return pool[rand.Intn(len(pool))]
}

// injectStealth registers the stealth script to run in every new document
// created in this browser context, covering navigations and new tabs alike.
func injectStealth(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
}
