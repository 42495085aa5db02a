// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Package password enforces password strength policy and hashes accepted
// passwords with argon2id.
package password

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/bazaarcore/identity/internal/errkind"
)

// Rule identifies one policy rule a password can violate.
type Rule string

// Rules, in the order they are reported.
const (
	RuleTooShort         Rule = "too_short"
	RuleTooLong          Rule = "too_long"
	RuleMissingLowercase Rule = "missing_lowercase"
	RuleMissingUppercase Rule = "missing_uppercase"
	RuleMissingDigit     Rule = "missing_digit"
	RuleMissingSymbol    Rule = "missing_symbol"
	RuleForbiddenPattern Rule = "forbidden_pattern"
	RulePersonalInfo     Rule = "personal_info"
)

// Policy configures the strength rules.
type Policy struct {
	MinLength     int
	MaxLength     int
	RequireLower  bool
	RequireUpper  bool
	RequireDigit  bool
	RequireSymbol bool

	// ForbiddenPatterns are case-insensitive glob patterns, e.g. "*password*".
	ForbiddenPatterns []string

	// MinPersonalLength is the shortest name or email fragment checked for
	// leakage. Fragments shorter than this are skipped, so with the default
	// of 3 a first name like "Al" or "Jo" never triggers personal_info: a
	// one- or two-letter substring occurs in too many unrelated passwords
	// and would reject them for no gain. Set it to 1 to check every fragment.
	MinPersonalLength int

	// PhoneDigitRun is the length of phone digit runs that count as leakage.
	PhoneDigitRun int
}

// DefaultPolicy returns the platform default policy.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:         10,
		MaxLength:         128,
		RequireLower:      true,
		RequireUpper:      true,
		RequireDigit:      true,
		RequireSymbol:     true,
		ForbiddenPatterns: []string{"*password*", "*qwerty*", "*123456*"},
		MinPersonalLength: 3,
		PhoneDigitRun:     4,
	}
}

// PersonalInfo is what the user told us about themselves.
type PersonalInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Result is the outcome of ValidateStrength.
type Result struct {
	Valid      bool
	Violations []Rule
}

// Has reports whether rule is among the violations.
func (r Result) Has(rule Rule) bool {
	for _, v := range r.Violations {
		if v == rule {
			return true
		}
	}
	return false
}

// Err returns nil for a valid result and a validation error listing every
// violation otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	names := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		names[i] = string(v)
	}
	return oops.Code(errkind.CodePasswordTooWeak).
		In("password").
		With("violations", names).
		Wrapf(errkind.ErrValidation, "password violates %s", strings.Join(names, ", "))
}

// Engine validates passwords against one policy. It is safe for concurrent use.
type Engine struct {
	policy    Policy
	forbidden []glob.Glob
}

// NewEngine compiles the policy.
func NewEngine(policy Policy) (*Engine, error) {
	errb := oops.Code(errkind.CodeConfigInvalid).In("password")

	if policy.MinLength < 1 {
		return nil, errb.With("min_length", policy.MinLength).Wrapf(errkind.ErrConfig, "minimum length must be positive")
	}
	if policy.MaxLength < policy.MinLength {
		return nil, errb.
			With("min_length", policy.MinLength).
			With("max_length", policy.MaxLength).
			Wrapf(errkind.ErrConfig, "maximum length is below minimum length")
	}
	if policy.PhoneDigitRun < 1 {
		return nil, errb.With("phone_digit_run", policy.PhoneDigitRun).Wrapf(errkind.ErrConfig, "phone digit run must be positive")
	}
	if policy.MinPersonalLength < 1 {
		return nil, errb.With("min_personal_length", policy.MinPersonalLength).Wrapf(errkind.ErrConfig, "personal info length must be positive")
	}

	e := &Engine{policy: policy}
	for _, pattern := range policy.ForbiddenPatterns {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, errb.With("pattern", pattern).Wrapf(errkind.ErrConfig, "invalid forbidden pattern: %v", err)
		}
		e.forbidden = append(e.forbidden, g)
	}
	return e, nil
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// ValidateStrength checks password against the policy.
//
// A length violation is reported alone. Otherwise every failing character
// class, forbidden pattern and personal-info rule is reported together.
func (e *Engine) ValidateStrength(password string, info PersonalInfo) Result {
	length := utf8.RuneCountInString(password)
	if length < e.policy.MinLength {
		return Result{Violations: []Rule{RuleTooShort}}
	}
	if length > e.policy.MaxLength {
		return Result{Violations: []Rule{RuleTooLong}}
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r):
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	var violations []Rule
	if e.policy.RequireLower && !hasLower {
		violations = append(violations, RuleMissingLowercase)
	}
	if e.policy.RequireUpper && !hasUpper {
		violations = append(violations, RuleMissingUppercase)
	}
	if e.policy.RequireDigit && !hasDigit {
		violations = append(violations, RuleMissingDigit)
	}
	if e.policy.RequireSymbol && !hasSymbol {
		violations = append(violations, RuleMissingSymbol)
	}

	lower := strings.ToLower(password)
	for _, g := range e.forbidden {
		if g.Match(lower) {
			violations = append(violations, RuleForbiddenPattern)
			break
		}
	}

	if e.leaksPersonalInfo(lower, info) {
		violations = append(violations, RulePersonalInfo)
	}

	return Result{Valid: len(violations) == 0, Violations: violations}
}

// leaksPersonalInfo reports whether the lower-cased password contains a
// name, the email local part or a run of phone digits.
func (e *Engine) leaksPersonalInfo(lower string, info PersonalInfo) bool {
	local := info.Email
	if at := strings.LastIndex(local, "@"); at >= 0 {
		local = local[:at]
	}

	for _, fragment := range []string{info.FirstName, info.LastName, local} {
		fragment = strings.ToLower(strings.TrimSpace(fragment))
		if utf8.RuneCountInString(fragment) < e.policy.MinPersonalLength {
			continue
		}
		if strings.Contains(lower, fragment) {
			return true
		}
	}

	digits := digitsOf(info.Phone)
	run := e.policy.PhoneDigitRun
	for i := 0; i+run <= len(digits); i++ {
		if strings.Contains(lower, digits[i:i+run]) {
			return true
		}
	}
	return false
}

func digitsOf(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
