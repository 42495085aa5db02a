// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Package phone normalizes and classifies national phone numbers.
//
// A Validator is built once from a Plan and is safe for concurrent use; every
// method is a pure function of its input and the plan.
package phone

import (
	"strings"
	"unicode"

	"github.com/samber/oops"

	"github.com/bazaarcore/identity/internal/errkind"
)

// Class is the classification of a national number.
type Class int

// Classes.
const (
	Invalid Class = iota
	Mobile
	Landline
)

// String returns the lower-case class name.
func (c Class) String() string {
	switch c {
	case Mobile:
		return "mobile"
	case Landline:
		return "landline"
	default:
		return "invalid"
	}
}

// ParseClass parses a class name as produced by String.
func ParseClass(s string) (Class, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mobile":
		return Mobile, true
	case "landline":
		return Landline, true
	default:
		return Invalid, false
	}
}

// Reason explains why a number was rejected. The empty Reason means accepted.
type Reason string

// Rejection reasons.
const (
	NotANumber             Reason = "NotANumber"
	UnrecognizedAreaCode   Reason = "UnrecognizedAreaCode"
	WrongLengthForAreaCode Reason = "WrongLengthForAreaCode"
	DisallowedForUseCase   Reason = "DisallowedForUseCase"
)

// Code returns the errkind code for the reason.
func (r Reason) Code() string {
	switch r {
	case NotANumber:
		return errkind.CodePhoneNotANumber
	case UnrecognizedAreaCode:
		return errkind.CodePhoneUnrecognizedArea
	case WrongLengthForAreaCode:
		return errkind.CodePhoneWrongLength
	case DisallowedForUseCase:
		return errkind.CodePhoneDisallowed
	default:
		return ""
	}
}

// Number is a normalized phone number.
type Number struct {
	Raw        string
	National   string // exactly NationalLength digits
	Normalized string // "+" + country code + National
	Class      Class
	AreaCode   string // landlines only
	Subscriber string // landlines only
	Region     string // landlines only
}

// Classification is the result of Classify.
type Classification struct {
	Class      Class
	AreaCode   string
	Subscriber string
	Region     string
	Reason     Reason
}

// Outcome is the result of ValidateForUseCase.
type Outcome struct {
	UseCase UseCase
	Number  Number
	Reason  Reason
}

// OK reports whether the number is acceptable for the use case.
func (o Outcome) OK() bool {
	return o.Reason == ""
}

// Label returns "ok" or the lower-cased rejection code, for metrics.
func (o Outcome) Label() string {
	if o.OK() {
		return OutcomeOK
	}
	return strings.ToLower(o.Reason.Code())
}

// Err returns nil for an accepted outcome and a validation error otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return oops.Code(o.Reason.Code()).
		In("phone").
		With("use_case", string(o.UseCase)).
		With("class", o.Number.Class.String()).
		Wrapf(errkind.ErrValidation, "phone number rejected: %s", o.Reason)
}

// separators are the punctuation characters users type inside phone numbers.
const separators = "-.()/"

// OutcomeOK labels an accepted number.
const OutcomeOK = "ok"

// Recorder receives use-case validation outcomes. *observability.Metrics
// implements it.
type Recorder interface {
	RecordPhoneValidation(useCase, outcome string)
}

// Option configures a Validator.
type Option func(*Validator)

// WithRecorder reports every ValidateForUseCase outcome to r.
func WithRecorder(r Recorder) Option {
	return func(v *Validator) {
		v.recorder = r
	}
}

// Validator normalizes and classifies numbers for one numbering plan.
type Validator struct {
	plan      Plan
	areaCodes [4]map[string]string // indexed by code length, 2 and 3 used
	allowed   map[UseCase]map[Class]bool
	recorder  Recorder
}

// NewValidator creates a Validator for the plan.
func NewValidator(plan Plan, opts ...Option) (*Validator, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	v := &Validator{
		plan:    plan,
		allowed: make(map[UseCase]map[Class]bool, len(plan.UseCases)),
	}
	v.areaCodes[2] = make(map[string]string)
	v.areaCodes[3] = make(map[string]string)
	for code, region := range plan.AreaCodes {
		v.areaCodes[len(code)][code] = region
	}
	for useCase, classes := range plan.UseCases {
		set := make(map[Class]bool, len(classes))
		for _, c := range classes {
			set[c] = true
		}
		v.allowed[useCase] = set
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Plan returns the numbering plan the validator was built with.
func (v *Validator) Plan() Plan {
	return v.plan
}

// Normalize reduces raw input to its canonical form. The returned Number has
// Class Invalid until classified.
func (v *Validator) Normalize(raw string) (Number, error) {
	national, ok := v.national(raw)
	if !ok {
		return Number{Raw: raw}, oops.Code(errkind.CodePhoneNotANumber).
			In("phone").
			Wrapf(errkind.ErrValidation, "not a %d-digit national number", NationalLength)
	}
	return Number{
		Raw:        raw,
		National:   national,
		Normalized: "+" + v.plan.CountryCode + national,
	}, nil
}

// national strips separators and recognized prefixes and returns the
// national digits.
func (v *Validator) national(raw string) (string, bool) {
	var b strings.Builder
	plus := false
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && !plus && b.Len() == 0:
			plus = true
		case unicode.IsSpace(r) || strings.ContainsRune(separators, r):
		default:
			return "", false
		}
	}
	digits := b.String()
	cc := v.plan.CountryCode
	trunk := v.plan.TrunkPrefix

	var rest string
	international := false
	switch {
	case plus:
		if !strings.HasPrefix(digits, cc) {
			return "", false
		}
		rest, international = digits[len(cc):], true
	case strings.HasPrefix(digits, v.plan.InternationalPrefix+cc) && len(digits) > NationalLength+len(trunk):
		rest, international = digits[len(v.plan.InternationalPrefix)+len(cc):], true
	case len(digits) == len(cc)+NationalLength && strings.HasPrefix(digits, cc):
		rest, international = digits[len(cc):], true
	case len(digits) == len(trunk)+NationalLength && strings.HasPrefix(digits, trunk):
		rest = digits[len(trunk):]
	default:
		rest = digits
	}

	// "+92 0300 ..." carries a redundant trunk prefix after the country code.
	if international && len(rest) == len(trunk)+NationalLength && strings.HasPrefix(rest, trunk) {
		rest = rest[len(trunk):]
	}
	if len(rest) != NationalLength || strings.HasPrefix(rest, trunk) {
		return "", false
	}
	return rest, true
}

// Classify classifies a national number produced by Normalize.
func (v *Validator) Classify(national string) Classification {
	if len(national) != NationalLength || !isDigits(national) {
		return Classification{Class: Invalid, Reason: NotANumber}
	}

	if national[0] == v.plan.MobileTrunkDigit &&
		national[1] >= v.plan.MobileOperatorMin && national[1] <= v.plan.MobileOperatorMax {
		return Classification{Class: Mobile}
	}

	// Shortest code first. A 2-digit match only stands if its subscriber
	// part is valid; otherwise the 3-digit reading gets a chance.
	matched := false
	for n := 2; n <= 3; n++ {
		code := national[:n]
		region, ok := v.areaCodes[n][code]
		if !ok {
			continue
		}
		matched = true
		subscriber := national[n:]
		if len(subscriber) == NationalLength-n && subscriber[0] != '0' {
			return Classification{
				Class:      Landline,
				AreaCode:   code,
				Subscriber: subscriber,
				Region:     region,
			}
		}
	}
	if matched {
		return Classification{Class: Invalid, Reason: WrongLengthForAreaCode}
	}
	return Classification{Class: Invalid, Reason: UnrecognizedAreaCode}
}

// Parse normalizes and classifies raw. The error is non-nil when the number
// is not a valid mobile or landline number.
func (v *Validator) Parse(raw string) (Number, error) {
	num, err := v.Normalize(raw)
	if err != nil {
		return num, err
	}
	c := v.Classify(num.National)
	num.Class = c.Class
	num.AreaCode = c.AreaCode
	num.Subscriber = c.Subscriber
	num.Region = c.Region
	if c.Reason != "" {
		return num, oops.Code(c.Reason.Code()).
			In("phone").
			Wrapf(errkind.ErrValidation, "phone number rejected: %s", c.Reason)
	}
	return num, nil
}

// ValidateForUseCase normalizes, classifies and applies the use-case policy.
func (v *Validator) ValidateForUseCase(raw string, useCase UseCase) Outcome {
	out := v.validateForUseCase(raw, useCase)
	if v.recorder != nil {
		v.recorder.RecordPhoneValidation(string(useCase), out.Label())
	}
	return out
}

func (v *Validator) validateForUseCase(raw string, useCase UseCase) Outcome {
	out := Outcome{UseCase: useCase, Number: Number{Raw: raw}}

	num, err := v.Normalize(raw)
	if err != nil {
		out.Reason = NotANumber
		return out
	}
	c := v.Classify(num.National)
	num.Class = c.Class
	num.AreaCode = c.AreaCode
	num.Subscriber = c.Subscriber
	num.Region = c.Region
	out.Number = num

	if c.Reason != "" {
		out.Reason = c.Reason
		return out
	}
	if !v.allowed[useCase][c.Class] {
		out.Reason = DisallowedForUseCase
	}
	return out
}

// Accepts reports whether the use case accepts the class.
func (v *Validator) Accepts(useCase UseCase, class Class) bool {
	return v.allowed[useCase][class]
}
