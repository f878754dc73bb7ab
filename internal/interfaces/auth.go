package interfaces

import (
	"context"
	"time"

	"github.com/venatordev/venator/internal/models"
)

// AuthService decides whether the current session is authenticated,
// anonymous-but-usable, or blocked pending human verification, and drives
// login only when a navigation proves it is required.
type AuthService interface {
	// Classify inspects the session read-only: a single navigation to an
	// authenticated-only landing resource, never a login submission.
	Classify(ctx context.Context, handle *BrowserHandle) (models.AuthState, error)

	// EnsureAuthenticated is a no-op when already authenticated. When
	// anonymous it submits stored credentials once and reclassifies; a
	// still-anonymous result is a rejected login, never a blind retry.
	EnsureAuthenticated(ctx context.Context, handle *BrowserHandle) (models.AuthState, error)

	// AwaitManualVerification polls classification until the session turns
	// authenticated or the deadline elapses. Timeout is a normal reportable
	// outcome. Must only be used with a visibly-running browser.
	AwaitManualVerification(ctx context.Context, handle *BrowserHandle, timeout time.Duration) (models.AuthState, error)
}
