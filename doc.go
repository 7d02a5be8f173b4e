// Package activation implements email based account activation and role
// assignment for multi provider (tenant) deployments.
//
// Registration:
//   - Register creates an unverified User and issues an activation token. Only
//     the keyed digest of the token is persisted; the raw token travels in the
//     emailed link and is never stored.
//   - Providers listed in VerificationBypassProviders skip the email step and
//     get their mapped role assigned right away.
//
// Verification:
//   - Verify digests the token from the link, looks the user up within the
//     provider, and resolves a role from the provider's mapping string
//     (see the rolemap package). Verification uses a compare and set update
//     so concurrent clicks activate the account exactly once.
//   - Resend rotates the token of an unverified user and mails a new link. The
//     previous link stops working immediately.
//
// Activity sinks:
//   - ActivitySink is a best effort emitter for registered, issued, activated
//     and resent events. Sink errors are logged and never fail a workflow. The
//     activitymap package normalizes events into flat records.
package activation
