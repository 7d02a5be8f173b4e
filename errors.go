package activation

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeActivationNotFound = "ACTIVATION_TOKEN_NOT_FOUND"
	TextCodeRoleMisconfigured  = "ACTIVATION_ROLE_MISCONFIGURED"
	TextCodeInvalidInput       = "ACTIVATION_INVALID_INPUT"
	TextCodeAccountExists      = "ACTIVATION_ACCOUNT_EXISTS"
)

// ErrActivationNotFound is returned when a token or digest does not resolve
// to a user of the provider. It signals a broken or forged link.
func ErrActivationNotFound(provider string) *goerrors.Error {
	return goerrors.New("activation link is invalid or has been tampered with", goerrors.CategoryNotFound).
		WithTextCode(TextCodeActivationNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{
			"provider": provider,
		})
}

// ErrRoleConfiguration is returned when a mapped role, or the default
// "user" role, does not exist for the provider.
func ErrRoleConfiguration(provider, role string) *goerrors.Error {
	return goerrors.New("role mapping references a role that does not exist", goerrors.CategoryInternal).
		WithTextCode(TextCodeRoleMisconfigured).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{
			"provider": provider,
			"role":     role,
		})
}

// ErrInvalidActivationInput wraps validation failures of incoming messages.
func ErrInvalidActivationInput(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid activation input").
		WithTextCode(TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest)
}

// ErrAccountExists is returned when the email is already registered for
// the provider.
func ErrAccountExists(provider string) *goerrors.Error {
	return goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
		WithTextCode(TextCodeAccountExists).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{
			"provider": provider,
		})
}

// IsActivationNotFound will check for unknown activation tokens
func IsActivationNotFound(err error) bool {
	return hasTextCode(err, TextCodeActivationNotFound)
}

// IsRoleConfigurationError will check for role mapping misconfiguration
func IsRoleConfigurationError(err error) bool {
	return hasTextCode(err, TextCodeRoleMisconfigured)
}

// IsInvalidActivationInput will check for rejected messages or params
func IsInvalidActivationInput(err error) bool {
	return hasTextCode(err, TextCodeInvalidInput)
}

// IsAccountExists will check for duplicate registrations
func IsAccountExists(err error) bool {
	return hasTextCode(err, TextCodeAccountExists)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// surface keeps rich errors intact and wraps everything else.
func surface(err error, msg string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
