package models

// AuthState describes the session's standing against the target site.
// It is derived transiently from URL and DOM signals on each classification
// and is never persisted.
type AuthState string

const (
	// AuthStateAnonymous means the session is not logged in. Guest access
	// may still be sufficient for some searches.
	AuthStateAnonymous AuthState = "anonymous"

	// AuthStateAuthenticated means an active logged-in session exists.
	AuthStateAuthenticated AuthState = "authenticated"

	// AuthStateVerificationRequired means the site is holding the session
	// at a human-verification step (CAPTCHA, 2FA, checkpoint page).
	AuthStateVerificationRequired AuthState = "verification_required"
)

func (s AuthState) String() string {
	return string(s)
}

// IsAuthenticated reports whether the state allows authenticated operations.
func (s AuthState) IsAuthenticated() bool {
	return s == AuthStateAuthenticated
}
