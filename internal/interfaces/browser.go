package interfaces

import (
	"context"

	"github.com/venatordev/venator/internal/models"
)

// BrowserHandle is an opaque reference to a live, controllable browser
// process. Ctx is a chromedp browser context; all navigation and script
// execution against one handle is serialized by the remote protocol itself,
// so callers need no additional locking.
type BrowserHandle struct {
	Ctx      context.Context
	Endpoint string
	Port     int
	Headless bool
}

// BrowserService owns the lifecycle of exactly one browser process shared
// across independent invocations via the session registry.
type BrowserService interface {
	// Acquire returns a handle to a live, responsive browser, attaching to
	// an existing process when the registry record validates, launching a
	// new one otherwise.
	Acquire(ctx context.Context) (*BrowserHandle, error)

	// Release is a no-op for the shared process; the supervisor is designed
	// to outlive any single caller.
	Release(handle *BrowserHandle)

	// Terminate tears the process down best-effort. Teardown errors are
	// logged, never propagated.
	Terminate(ctx context.Context)

	// Alive reports whether the current handle answers a trivial protocol
	// command.
	Alive(ctx context.Context) bool

	// Status snapshots the supervisor's view of the browser for the
	// heartbeat file.
	Status(ctx context.Context) models.ServiceStatus
}
