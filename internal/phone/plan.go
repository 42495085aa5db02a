// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package phone

import (
	"strings"

	"github.com/samber/oops"

	"github.com/bazaarcore/identity/internal/errkind"
)

// NationalLength is the digit count of a national number after the country code.
const NationalLength = 10

// UseCase names a context in which a phone number is presented.
type UseCase string

// Known use cases.
const (
	UseCaseRegistration UseCase = "registration"
	UseCaseLogin        UseCase = "login"
	UseCaseContact      UseCase = "contact"
)

// Plan describes a national numbering plan. It is supplied once at construction.
type Plan struct {
	// CountryCode is the international dialing code without "+", e.g. "92".
	CountryCode string
	// TrunkPrefix is the domestic dialing prefix, e.g. "0".
	TrunkPrefix string
	// InternationalPrefix is the digits-only exit code, e.g. "00".
	InternationalPrefix string
	// MobileTrunkDigit is the first national digit of every mobile number.
	MobileTrunkDigit byte
	// MobileOperatorMin and MobileOperatorMax bound the second national digit of a mobile number.
	MobileOperatorMin byte
	MobileOperatorMax byte
	// AreaCodes maps 2- and 3-digit landline area codes to region names.
	AreaCodes map[string]string
	// UseCases lists the classes accepted per use case.
	UseCases map[UseCase][]Class
}

// DefaultPlan returns Pakistan's national numbering plan (+92).
func DefaultPlan() Plan {
	return Plan{
		CountryCode:         "92",
		TrunkPrefix:         "0",
		InternationalPrefix: "00",
		MobileTrunkDigit:    '3',
		MobileOperatorMin:   '0',
		MobileOperatorMax:   '4',
		AreaCodes: map[string]string{
			"21":  "Karachi",
			"22":  "Hyderabad",
			"41":  "Faisalabad",
			"42":  "Lahore",
			"51":  "Islamabad",
			"52":  "Sialkot",
			"55":  "Gujranwala",
			"61":  "Multan",
			"71":  "Sukkur",
			"81":  "Quetta",
			"91":  "Peshawar",
			"232": "Tharparkar",
			"244": "Nawabshah",
			"297": "Badin",
			"443": "Okara",
			"457": "Pakpattan",
			"544": "Jhelum",
			"622": "Bahawalnagar",
			"642": "Dera Ghazi Khan",
			"722": "Jacobabad",
			"838": "Sibi",
			"937": "Mardan",
			"992": "Abbottabad",
		},
		UseCases: map[UseCase][]Class{
			UseCaseRegistration: {Mobile},
			UseCaseLogin:        {Mobile, Landline},
			UseCaseContact:      {Mobile, Landline},
		},
	}
}

// Validate reports whether the plan can drive a Validator.
func (p Plan) Validate() error {
	errb := oops.Code(errkind.CodeConfigInvalid).In("phone")

	if !isDigits(p.CountryCode) || len(p.CountryCode) > 3 {
		return errb.With("country_code", p.CountryCode).Wrapf(errkind.ErrConfig, "country code must be 1-3 digits")
	}
	if !isDigits(p.TrunkPrefix) {
		return errb.With("trunk_prefix", p.TrunkPrefix).Wrapf(errkind.ErrConfig, "trunk prefix must be digits")
	}
	if !isDigits(p.InternationalPrefix) {
		return errb.With("international_prefix", p.InternationalPrefix).Wrapf(errkind.ErrConfig, "international prefix must be digits")
	}
	if !isDigit(p.MobileTrunkDigit) || !isDigit(p.MobileOperatorMin) || !isDigit(p.MobileOperatorMax) {
		return errb.Wrapf(errkind.ErrConfig, "mobile trunk and operator digits must be 0-9")
	}
	if p.MobileOperatorMin > p.MobileOperatorMax {
		return errb.Wrapf(errkind.ErrConfig, "mobile operator range is empty")
	}
	if len(p.AreaCodes) == 0 {
		return errb.Wrapf(errkind.ErrConfig, "area code table is empty")
	}
	for code := range p.AreaCodes {
		if !isDigits(code) || len(code) < 2 || len(code) > 3 {
			return errb.With("area_code", code).Wrapf(errkind.ErrConfig, "area codes must be 2 or 3 digits")
		}
		if strings.HasPrefix(code, "0") {
			return errb.With("area_code", code).Wrapf(errkind.ErrConfig, "area codes cannot start with 0")
		}
	}
	if len(p.UseCases) == 0 {
		return errb.Wrapf(errkind.ErrConfig, "no use cases configured")
	}
	for useCase, classes := range p.UseCases {
		if len(classes) == 0 {
			return errb.With("use_case", string(useCase)).Wrapf(errkind.ErrConfig, "use case accepts no classes")
		}
		for _, c := range classes {
			if c != Mobile && c != Landline {
				return errb.With("use_case", string(useCase)).Wrapf(errkind.ErrConfig, "use case lists unknown class %d", c)
			}
		}
	}
	return nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
