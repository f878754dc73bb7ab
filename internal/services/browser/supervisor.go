package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/common"
	"github.com/venatordev/venator/internal/interfaces"
	"github.com/venatordev/venator/internal/models"
)

// browserSession bundles a live browser context with the cancel functions
// that tear it down.
type browserSession struct {
	handle        *interfaces.BrowserHandle
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// Supervisor owns the single shared browser process. Acquire prefers
// attaching to a process recorded in the session registry over launching a
// new one, so repeated CLI invocations reuse one authenticated browser.
type Supervisor struct {
	config   *common.Config
	logger   arbor.ILogger
	registry *SessionRegistry

	mu      sync.Mutex
	session *browserSession

	// Seams for tests; production code never overrides these.
	probeSocket   func(addr string, timeout time.Duration) bool
	probeEndpoint func(ctx context.Context, port int, timeout time.Duration) (string, error)
	attach        func(ctx context.Context, wsURL string) (*browserSession, error)
	launch        func(ctx context.Context, port int) (*browserSession, error)
	verify        func(ctx context.Context) error
	closeBrowser  func(ctx context.Context) error
	stealth       func(ctx context.Context) error
}

// NewSupervisor creates a browser supervisor backed by the session registry
// in the configured state directory.
func NewSupervisor(config *common.Config, logger arbor.ILogger) *Supervisor {
	s := &Supervisor{
		config:   config,
		logger:   logger,
		registry: NewSessionRegistry(config.Browser.StateDir, logger),
	}
	s.probeSocket = probeSocket
	s.probeEndpoint = probeDebugEndpoint
	s.attach = s.attachRemote
	s.launch = s.launchProcess
	s.verify = s.verifyContext
	s.closeBrowser = chromedp.Cancel
	s.stealth = injectStealth
	return s
}

// Registry exposes the session registry for status reporting.
func (s *Supervisor) Registry() *SessionRegistry {
	return s.registry
}

// Acquire returns a handle on a verified-alive browser. Resolution order:
// the handle already held by this process, then the registry record, then a
// fresh launch. A registry record that fails any probe is discarded before
// falling through to launch.
func (s *Supervisor) Acquire(ctx context.Context) (*interfaces.BrowserHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		if err := s.verify(s.session.handle.Ctx); err == nil {
			return s.session.handle, nil
		}
		s.logger.Warn().Msg("Held browser context is dead, discarding")
		s.teardownLocked()
	}

	if record, err := s.registry.Load(); err != nil {
		return nil, err
	} else if record != nil {
		session, err := s.attachRecorded(ctx, record)
		if err == nil {
			s.session = session
			s.logger.Info().
				Str("endpoint", record.Endpoint).
				Int("port", record.Port).
				Msg("Reattached to existing browser")
			return session.handle, nil
		}
		s.logger.Warn().Err(err).Int("port", record.Port).Msg("Recorded browser unreachable, clearing registry")
		if err := s.registry.Clear(); err != nil {
			return nil, err
		}
	}

	session, err := s.launchVerified(ctx)
	if err != nil {
		return nil, err
	}
	s.session = session
	return session.handle, nil
}

// attachRecorded verifies a registry record layer by layer: TCP socket,
// protocol endpoint, then a trivial script in the attached context. Failing
// any layer rejects the record.
func (s *Supervisor) attachRecorded(ctx context.Context, record *models.SessionRecord) (*browserSession, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(record.Port))
	if !s.probeSocket(addr, s.config.Browser.ProbeTimeout) {
		return nil, fmt.Errorf("socket %s closed", addr)
	}

	wsURL, err := s.probeEndpoint(ctx, record.Port, s.config.Browser.ProbeTimeout)
	if err != nil {
		return nil, fmt.Errorf("debug endpoint probe failed: %w", err)
	}

	session, err := s.attach(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("attach failed: %w", err)
	}

	if err := s.verify(session.handle.Ctx); err != nil {
		session.browserCancel()
		session.allocCancel()
		return nil, fmt.Errorf("attached context unresponsive: %w", err)
	}

	// Script registrations do not survive across sessions, so a reattached
	// context needs the stealth script installed again.
	if err := s.stealth(session.handle.Ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to install stealth script")
	}

	session.handle.Endpoint = wsURL
	session.handle.Port = record.Port
	return session, nil
}

// launchVerified launches a new process, scanning forward from the
// configured debug port through debug_port+port_scan_range inclusive when
// it is already taken, then records the result in the registry.
func (s *Supervisor) launchVerified(ctx context.Context) (*browserSession, error) {
	base := s.config.Browser.DebugPort
	scanRange := s.config.Browser.PortScanRange

	port := -1
	for candidate := base; candidate <= base+scanRange; candidate++ {
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(candidate))
		if s.probeSocket(addr, s.config.Browser.ProbeTimeout) {
			s.logger.Debug().Int("port", candidate).Msg("Port occupied, trying next")
			continue
		}
		port = candidate
		break
	}
	if port < 0 {
		return nil, fmt.Errorf("scanned ports %d-%d: %w", base, base+scanRange, models.ErrPortExhausted)
	}

	s.logger.Info().Int("port", port).Bool("headless", s.config.Browser.Headless).Msg("Launching browser")

	session, err := s.launch(ctx, port)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrLaunchFailed, err)
	}

	wsURL, err := s.probeEndpoint(ctx, port, s.config.Browser.ProbeTimeout)
	if err != nil {
		session.browserCancel()
		session.allocCancel()
		return nil, fmt.Errorf("port %d: %w", port, models.ErrHandshakeStalled)
	}

	session.handle.Endpoint = wsURL
	session.handle.Port = port

	if err := s.registry.Save(&models.SessionRecord{
		Endpoint:  wsURL,
		Port:      port,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record browser session; attach on next run will not work")
	}

	return session, nil
}

// Release marks the handle as no longer in use by the caller. The browser
// process itself stays up for the next operation.
func (s *Supervisor) Release(handle *interfaces.BrowserHandle) {
	s.logger.Debug().Msg("Browser handle released")
}

// Terminate shuts the browser process down best-effort and clears the
// registry. Teardown problems are logged, not propagated: the caller asked
// for the browser to be gone and there is nothing useful to do with a
// failure report.
func (s *Supervisor) Terminate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		// Not held by this process; a recorded browser may still be running.
		if record, err := s.registry.Load(); err == nil && record != nil {
			if session, err := s.attachRecorded(ctx, record); err == nil {
				s.session = session
			}
		}
	}

	if s.session != nil {
		// The graceful protocol close is what actually ends a process
		// another invocation launched; cancelling a remote-allocated
		// context only drops the connection and leaves it running.
		if err := s.closeBrowser(s.session.handle.Ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Graceful browser close failed")
		}
	}

	s.teardownLocked()
	if err := s.registry.Clear(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear session registry on terminate")
	}
}

// Alive reports whether a browser is reachable, via the held context or the
// registry record.
func (s *Supervisor) Alive(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return s.verify(s.session.handle.Ctx) == nil
	}

	record, err := s.registry.Load()
	if err != nil || record == nil {
		return false
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(record.Port))
	if !s.probeSocket(addr, s.config.Browser.ProbeTimeout) {
		return false
	}
	_, err = s.probeEndpoint(ctx, record.Port, s.config.Browser.ProbeTimeout)
	return err == nil
}

// Status reports browser-level health. The authentication flag is filled in
// by the caller, which owns the auth service.
func (s *Supervisor) Status(ctx context.Context) models.ServiceStatus {
	return models.ServiceStatus{
		Running:      true,
		BrowserAlive: s.Alive(ctx),
		Timestamp:    time.Now().UTC(),
	}
}

func (s *Supervisor) teardownLocked() {
	if s.session == nil {
		return
	}
	s.session.browserCancel()
	s.session.allocCancel()
	s.session = nil
}

// attachRemote connects to an already-running browser over its websocket
// debug URL, reusing an existing page target. A fresh context per
// invocation would leak one tab per reattach into the shared process.
func (s *Supervisor) attachRemote(ctx context.Context, wsURL string) (*browserSession, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), wsURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	tabCtx := browserCtx
	tabCancel := context.CancelFunc(func() {})
	if targets, err := chromedp.Targets(browserCtx); err == nil {
		for _, t := range targets {
			if t.Type == "page" {
				tabCtx, tabCancel = chromedp.NewContext(browserCtx, chromedp.WithTargetID(t.TargetID))
				break
			}
		}
	}

	return &browserSession{
		handle: &interfaces.BrowserHandle{
			Ctx:      tabCtx,
			Headless: s.config.Browser.Headless,
		},
		browserCancel: func() {
			tabCancel()
			browserCancel()
		},
		allocCancel: allocCancel,
	}, nil
}

// launchProcess starts a new browser with the debug port pinned and the
// stealth script installed. The contexts derive from context.Background()
// so the process outlives the CLI invocation that started it.
func (s *Supervisor) launchProcess(ctx context.Context, port int) (*browserSession, error) {
	cfg := s.config.Browser

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("remote-debugging-port", strconv.Itoa(port)),
		chromedp.Flag("remote-debugging-address", "127.0.0.1"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(pickUserAgent(cfg.UserAgents)),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.UserDataDir(filepath.Join(cfg.StateDir, "profile")),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	startCtx, cancel := context.WithTimeout(browserCtx, cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("startup navigation failed: %w", err)
	}

	if err := s.stealth(browserCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to install stealth script")
	}

	return &browserSession{
		handle: &interfaces.BrowserHandle{
			Ctx:      browserCtx,
			Headless: cfg.Headless,
		},
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// verifyContext runs a trivial script to prove the target still answers the
// protocol. Liveness at the socket level is not enough: a wedged renderer
// keeps the port open while every command times out.
func (s *Supervisor) verifyContext(ctx context.Context) error {
	verifyCtx, cancel := context.WithTimeout(ctx, s.config.Browser.ProbeTimeout)
	defer cancel()

	var result int
	return chromedp.Run(verifyCtx, chromedp.Evaluate("1 + 1", &result))
}

// probeSocket reports whether anything is listening at addr.
func probeSocket(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// probeDebugEndpoint fetches the browser's version document and returns its
// websocket debugger URL. A listener that does not speak the protocol fails
// here rather than at attach time.
func probeDebugEndpoint(ctx context.Context, port int, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("http://127.0.0.1:%d/json/version", port)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("version probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version probe returned %d", resp.StatusCode)
	}

	var payload struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("version probe returned malformed payload: %w", err)
	}
	if payload.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("version probe payload missing debugger url")
	}

	return payload.WebSocketDebuggerURL, nil
}
