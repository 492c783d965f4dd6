package identity

import "fmt"

// AuthError is an identity failure that may be shown to the user.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	// ErrInvalidCredentials is the only provider error surfaced verbatim.
	ErrInvalidCredentials = &AuthError{Code: "invalid_credentials", Message: "Correo electrónico o contraseña incorrectos"}
	ErrSessionExpired     = &AuthError{Code: "session_expired", Message: "Session expired, please sign in again"}
	ErrUnauthenticated    = &AuthError{Code: "unauthenticated", Message: "Insufficient authorization"}
	ErrEmailTaken         = &AuthError{Code: "email_taken", Message: "An account with this email already exists"}
	ErrInvalidSignUp      = &AuthError{Code: "invalid_sign_up", Message: "A valid email, a name and a password of at least 6 characters are required"}
)
