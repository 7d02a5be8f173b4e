// Package rolemap parses role mapping strings and matches emails against
// the resulting rules.
//
// A mapping string is a comma separated list of `key=role` entries, for
// example `@acme.com=staff,-ops@=operator`. Entries are evaluated in the
// order they appear and the first key found inside the email wins. Keys are
// literal substrings, never patterns.
package rolemap

import (
	"strings"
)

const (
	entrySeparator = ","
	pairSeparator  = "="
)

// Rule is a single mapping entry
type Rule struct {
	MatchKey string `json:"match_key"`
	RoleName string `json:"role_name"`
}

// Rules is an ordered rule set
type Rules []Rule

// Option customizes matching behavior.
type Option func(*matchOptions)

type matchOptions struct {
	caseInsensitive bool
}

// WithCaseInsensitive compares keys and emails after lower casing both.
func WithCaseInsensitive(enabled bool) Option {
	return func(opts *matchOptions) {
		opts.caseInsensitive = enabled
	}
}

// Parse splits config into ordered rules. Entries without a separator, or
// with an empty key or role after trimming, are skipped.
func Parse(config string) Rules {
	entries := strings.Split(config, entrySeparator)
	rules := make(Rules, 0, len(entries))

	for _, entry := range entries {
		key, role, found := strings.Cut(entry, pairSeparator)
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		role = strings.TrimSpace(role)
		if key == "" || role == "" {
			continue
		}

		rules = append(rules, Rule{
			MatchKey: key,
			RoleName: role,
		})
	}

	return rules
}

// Match returns the first rule whose key is contained in email.
func (r Rules) Match(email string, opts ...Option) (Rule, bool) {
	options := matchOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	subject := strings.TrimSpace(email)
	if options.caseInsensitive {
		subject = strings.ToLower(subject)
	}

	for _, rule := range r {
		key := rule.MatchKey
		if options.caseInsensitive {
			key = strings.ToLower(key)
		}
		if strings.Contains(subject, key) {
			return rule, true
		}
	}

	return Rule{}, false
}

// RoleFor returns the role name for email, or fallback when nothing matches.
func RoleFor(config, email, fallback string, opts ...Option) string {
	if rule, ok := Parse(config).Match(email, opts...); ok {
		return rule.RoleName
	}
	return fallback
}
