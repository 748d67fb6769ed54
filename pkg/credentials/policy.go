package credentials

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultPasswordHelp is the default policy description, returned verbatim
// when a password fails the default strength checks.
const DefaultPasswordHelp = "Password must be between 8 and 50 characters long and contain at least one uppercase letter, one lowercase letter, one number and one special character from @$!%*?&"

const passwordSpecials = "@$!%*?&"

// Policy validates password strength. The default policy requires 8-50
// characters with at least one uppercase letter, one lowercase letter, one
// digit and one special character from @$!%*?&, drawn only from that
// alphabet. A custom pattern (RE2) with matching help text can override it.
type Policy struct {
	pattern *regexp.Regexp
	help    string
}

// DefaultPolicy returns the built-in strength policy
func DefaultPolicy() *Policy {
	return &Policy{help: DefaultPasswordHelp}
}

// NewPolicy compiles a custom pattern with its help text. An empty pattern
// yields the default policy with the given help text (or the default help).
func NewPolicy(pattern, help string) (*Policy, error) {
	if help == "" {
		help = DefaultPasswordHelp
	}
	if pattern == "" {
		return &Policy{help: help}, nil
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Policy{pattern: compiled, help: help}, nil
}

// Help returns the human-readable policy description
func (p *Policy) Help() string {
	return p.help
}

// Validate checks the password against the policy, returning the help text
// as the error message on failure.
func (p *Policy) Validate(password string) error {
	if p.pattern != nil {
		if !p.pattern.MatchString(password) {
			return errors.New(p.help)
		}
		return nil
	}

	if len(password) < 8 || len(password) > 50 {
		return errors.New(p.help)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		default:
			// outside the allowed alphabet
			return errors.New(p.help)
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return errors.New(p.help)
	}

	return nil
}
