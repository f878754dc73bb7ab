package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/common"
	"github.com/venatordev/venator/internal/interfaces"
	"github.com/venatordev/venator/internal/models"
)

const (
	feedURL  = "https://www.linkedin.com/feed/"
	loginURL = "https://www.linkedin.com/login"

	// Grace after navigation so client-side redirects settle before the
	// landed URL is read.
	settleDelay = 2 * time.Second
)

// Service classifies and advances the session's authentication state. The
// session lives in the browser profile, not in this process, so every
// classification is a fresh observation of where the site actually sends us.
type Service struct {
	config *common.Config
	logger arbor.ILogger

	// Seams for tests; production code never overrides these.
	navigate     func(ctx context.Context, handle *interfaces.BrowserHandle, url string) (string, error)
	submitLogin  func(ctx context.Context, handle *interfaces.BrowserHandle) error
	pollInterval time.Duration
}

// NewService creates an auth service.
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	s := &Service{
		config:       config,
		logger:       logger,
		pollInterval: config.Service.VerificationInterval,
	}
	s.navigate = s.navigateAndLocate
	s.submitLogin = s.submitLoginForm
	return s
}

// Classify determines the current authentication state by navigating to the
// feed and observing where the site sends us. The redirect target is the
// signal the site cannot dress up: an authenticated session stays on the
// feed, an anonymous one lands on a login or auth wall, and a flagged one
// lands on a challenge page.
func (s *Service) Classify(ctx context.Context, handle *interfaces.BrowserHandle) (models.AuthState, error) {
	landed, err := s.navigate(ctx, handle, feedURL)
	if err != nil {
		return models.AuthStateAnonymous, fmt.Errorf("classification navigation failed: %w", err)
	}

	state := classifyURL(landed)
	s.logger.Debug().Str("landed", landed).Str("state", state.String()).Msg("Session classified")
	return state, nil
}

// classifyURL maps a landed URL to an auth state. Unknown destinations are
// treated as anonymous, the safe direction, since it only costs a login
// attempt.
func classifyURL(landed string) models.AuthState {
	lower := strings.ToLower(landed)
	switch {
	case strings.Contains(lower, "/checkpoint") || strings.Contains(lower, "/challenge"):
		return models.AuthStateVerificationRequired
	case strings.Contains(lower, "/feed"):
		return models.AuthStateAuthenticated
	default:
		return models.AuthStateAnonymous
	}
}

// EnsureAuthenticated drives the session to the authenticated state. An
// already-authenticated session returns after the single classification
// navigation with no login-page traffic at all.
func (s *Service) EnsureAuthenticated(ctx context.Context, handle *interfaces.BrowserHandle) (models.AuthState, error) {
	state, err := s.Classify(ctx, handle)
	if err != nil {
		return state, err
	}

	switch state {
	case models.AuthStateAuthenticated:
		return state, nil
	case models.AuthStateVerificationRequired:
		return s.AwaitManualVerification(ctx, handle, s.config.Service.VerificationTimeout)
	}

	if !s.config.HasCredentials() {
		return models.AuthStateAnonymous, models.ErrNoCredentials
	}

	s.logger.Info().Str("email", s.config.Credentials.Email).Msg("Logging in")
	if err := s.submitLogin(ctx, handle); err != nil {
		return models.AuthStateAnonymous, fmt.Errorf("login submission failed: %w", err)
	}

	state, err = s.Classify(ctx, handle)
	if err != nil {
		return state, err
	}

	switch state {
	case models.AuthStateAuthenticated:
		s.logger.Info().Msg("Login succeeded")
		return state, nil
	case models.AuthStateVerificationRequired:
		return s.AwaitManualVerification(ctx, handle, s.config.Service.VerificationTimeout)
	default:
		return models.AuthStateAnonymous, models.ErrLoginRejected
	}
}

// AwaitManualVerification polls the session state while a human completes
// the security challenge in the visible browser window. A headless browser
// fails immediately: nobody can click through a window that does not exist.
func (s *Service) AwaitManualVerification(ctx context.Context, handle *interfaces.BrowserHandle, timeout time.Duration) (models.AuthState, error) {
	if handle.Headless {
		return models.AuthStateVerificationRequired,
			fmt.Errorf("headless browser cannot complete a challenge: %w", models.ErrVerificationTimeout)
	}

	s.logger.Warn().
		Dur("timeout", timeout).
		Msg("Security challenge detected; complete it in the browser window")

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return models.AuthStateVerificationRequired, ctx.Err()
		case <-ticker.C:
		}

		state, err := s.Classify(ctx, handle)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Classification failed during verification wait, retrying")
		} else if state == models.AuthStateAuthenticated {
			s.logger.Info().Msg("Verification completed")
			return state, nil
		}

		if time.Now().After(deadline) {
			return models.AuthStateVerificationRequired, models.ErrVerificationTimeout
		}
	}
}

// navigateAndLocate navigates and returns the URL the browser actually
// landed on after redirects settle.
func (s *Service) navigateAndLocate(ctx context.Context, handle *interfaces.BrowserHandle, url string) (string, error) {
	navCtx, cancel := context.WithTimeout(handle.Ctx, s.config.Browser.NavigationTimeout)
	defer cancel()

	var landed string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(settleDelay),
		chromedp.Location(&landed),
	)
	return landed, err
}

// submitLoginForm fills and submits the login form.
func (s *Service) submitLoginForm(ctx context.Context, handle *interfaces.BrowserHandle) error {
	navCtx, cancel := context.WithTimeout(handle.Ctx, s.config.Browser.NavigationTimeout)
	defer cancel()

	return chromedp.Run(navCtx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible("#username", chromedp.ByID),
		chromedp.SendKeys("#username", s.config.Credentials.Email, chromedp.ByID),
		chromedp.SendKeys("#password", s.config.Credentials.Password, chromedp.ByID),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.Sleep(3*time.Second),
	)
}
