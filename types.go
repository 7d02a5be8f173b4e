package activation

import (
	"context"
	"fmt"
	"strings"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds activation options
type Config interface {
	// GetActivationBaseURL is the prefix used to build emailed links,
	// the provider and raw token are appended as path segments.
	GetActivationBaseURL() string
	// GetDigestKey is an optional pepper for token digests. Changing it
	// invalidates every outstanding activation link.
	GetDigestKey() string
	GetRoleMappingCaseInsensitive() bool
	GetVerificationBypassProviders() []string
	GetSignInRoute() string
	GetPendingRoute() string
	GetLandingRoute() string
	GetSignedInRoute() string
	GetResendRoute() string
}

// MappingSource returns the raw role mapping string for a provider,
// format `key1=role1,key2=role2`.
type MappingSource interface {
	RoleMapping(ctx context.Context, provider string) (string, error)
}

// MappingSourceFunc adapts a function to the MappingSource interface.
type MappingSourceFunc func(ctx context.Context, provider string) (string, error)

// RoleMapping implements MappingSource.
func (f MappingSourceFunc) RoleMapping(ctx context.Context, provider string) (string, error) {
	if f == nil {
		return "", nil
	}
	return f(ctx, provider)
}

// StaticMappings is a MappingSource backed by a provider keyed map.
type StaticMappings map[string]string

// RoleMapping implements MappingSource.
func (s StaticMappings) RoleMapping(_ context.Context, provider string) (string, error) {
	return s[provider], nil
}

// LandingResolver decides where a visitor of the activation landing page
// should go. Session handling lives outside this package.
type LandingResolver interface {
	Landing(ctx context.Context, userID string) string
}

// LandingResolverFunc adapts a function to the LandingResolver interface.
type LandingResolverFunc func(ctx context.Context, userID string) string

// Landing implements LandingResolver.
func (f LandingResolverFunc) Landing(ctx context.Context, userID string) string {
	return f(ctx, userID)
}

type defaultLanding struct {
	cfg Config
}

func (d defaultLanding) Landing(_ context.Context, userID string) string {
	if strings.TrimSpace(userID) != "" {
		return d.cfg.GetSignedInRoute()
	}
	return d.cfg.GetLandingRoute()
}

// BaseConfig is a plain Config implementation with sensible defaults.
type BaseConfig struct {
	ActivationBaseURL           string
	DigestKey                   string
	RoleMappingCaseInsensitive  bool
	VerificationBypassProviders []string
	SignInRoute                 string
	PendingRoute                string
	LandingRoute                string
	SignedInRoute               string
	ResendRoute                 string
}

// DefaultConfig returns the defaults used by the package
func DefaultConfig() BaseConfig {
	return BaseConfig{
		ActivationBaseURL: "http://localhost:8080/activation",
		SignInRoute:       "/login",
		PendingRoute:      "/activation/pending",
		LandingRoute:      "/",
		SignedInRoute:     "/dashboard",
		ResendRoute:       "/activation/resend",
	}
}

func (c BaseConfig) GetActivationBaseURL() string { return c.ActivationBaseURL }
func (c BaseConfig) GetDigestKey() string { return c.DigestKey }
func (c BaseConfig) GetRoleMappingCaseInsensitive() bool { return c.RoleMappingCaseInsensitive }
func (c BaseConfig) GetVerificationBypassProviders() []string { return c.VerificationBypassProviders }
func (c BaseConfig) GetSignInRoute() string { return c.SignInRoute }
func (c BaseConfig) GetPendingRoute() string { return c.PendingRoute }
func (c BaseConfig) GetLandingRoute() string { return c.LandingRoute }
func (c BaseConfig) GetSignedInRoute() string { return c.SignedInRoute }
func (c BaseConfig) GetResendRoute() string { return c.ResendRoute }

func bypassesVerification(cfg Config, provider string) bool {
	for _, p := range cfg.GetVerificationBypassProviders() {
		if strings.TrimSpace(p) == provider {
			return true
		}
	}
	return false
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACTIVATION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACTIVATION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACTIVATION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
