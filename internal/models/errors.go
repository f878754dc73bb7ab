package models

import "errors"

// Operational failures carry a remediation hint in the message because they
// surface directly on the CLI.
var (
	// ErrLaunchFailed means the browser process could not be started at all.
	ErrLaunchFailed = errors.New("browser launch failed: verify Chrome is installed or set browser.exec_path")

	// ErrPortExhausted means every port in the configured scan range was occupied.
	ErrPortExhausted = errors.New("no usable debug port: close stray browser processes or widen browser.port_scan_range")

	// ErrHandshakeStalled means the process started but its debug endpoint never
	// answered the protocol handshake.
	ErrHandshakeStalled = errors.New("debug endpoint handshake stalled: terminate the browser process and retry")

	// ErrVerificationTimeout means a security challenge was shown and nobody
	// completed it within the configured window.
	ErrVerificationTimeout = errors.New("manual verification timed out: rerun with a visible browser and complete the challenge")

	// ErrLoginRejected means submitted credentials did not produce an
	// authenticated session.
	ErrLoginRejected = errors.New("login rejected: check VENATOR_EMAIL and VENATOR_PASSWORD")

	// ErrNoCredentials means a login was required but none were configured.
	ErrNoCredentials = errors.New("credentials not configured: set VENATOR_EMAIL and VENATOR_PASSWORD or add them to .env")

	// ErrSelectorFailure means the page loaded but none of the known result
	// selectors matched, which usually indicates a site layout change.
	ErrSelectorFailure = errors.New("result markup not recognized: the site layout may have changed")
)
