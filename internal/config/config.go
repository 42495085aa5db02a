// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Package config resolves the identity service configuration.
//
// Sources are layered in order: built-in defaults, an optional YAML file and
// command-line flags. The result is a Snapshot, validated once at startup and
// then passed by value into each component constructor.
package config

import (
	"time"

	"github.com/invopop/jsonschema"

	"github.com/bazaarcore/identity/internal/password"
	"github.com/bazaarcore/identity/internal/phone"
	"github.com/bazaarcore/identity/internal/session"
	"github.com/bazaarcore/identity/internal/session/redisstore"
	"github.com/bazaarcore/identity/internal/token"
)

// CurrentVersion is the config file version this build writes.
const CurrentVersion = "1.0.0"

// SupportedVersions is the semver constraint a config file version must meet.
const SupportedVersions = ">=1.0.0, <2.0.0"

// Duration is a time.Duration written as a Go duration string, e.g. "15m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// JSONSchema describes Duration as a string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration, e.g. 15m or 720h",
	}
}

// File is the on-disk configuration document.
type File struct {
	Version  string          `json:"version" yaml:"version" koanf:"version" jsonschema:"required,description=Config format version (semver)"`
	Token    TokenSection    `json:"token,omitempty" yaml:"token" koanf:"token"`
	Session  SessionSection  `json:"session,omitempty" yaml:"session" koanf:"session"`
	Password PasswordSection `json:"password,omitempty" yaml:"password" koanf:"password"`
	Phone    PhoneSection    `json:"phone,omitempty" yaml:"phone" koanf:"phone"`
	Redis    RedisSection    `json:"redis,omitempty" yaml:"redis" koanf:"redis"`
	Log      LogSection      `json:"log,omitempty" yaml:"log" koanf:"log"`
	Metrics  MetricsSection  `json:"metrics,omitempty" yaml:"metrics" koanf:"metrics"`
}

// TokenSection configures access tokens.
type TokenSection struct {
	Secret     string   `json:"secret,omitempty" yaml:"secret" koanf:"secret" jsonschema:"description=HMAC signing secret; at least 32 bytes"`
	SecretFile string   `json:"secret_file,omitempty" yaml:"secret_file" koanf:"secret_file" jsonschema:"description=File holding the signing secret; overrides secret"`
	Issuer     string   `json:"issuer,omitempty" yaml:"issuer" koanf:"issuer"`
	Audience   string   `json:"audience,omitempty" yaml:"audience" koanf:"audience"`
	AccessTTL  Duration `json:"access_ttl,omitempty" yaml:"access_ttl" koanf:"access_ttl"`
}

// SessionSection configures remember-me credentials.
type SessionSection struct {
	Lifetime          Duration `json:"lifetime,omitempty" yaml:"lifetime" koanf:"lifetime"`
	OpTimeout         Duration `json:"op_timeout,omitempty" yaml:"op_timeout" koanf:"op_timeout"`
	FingerprintPolicy string   `json:"fingerprint_policy,omitempty" yaml:"fingerprint_policy" koanf:"fingerprint_policy" jsonschema:"enum=strict,enum=lenient,enum=off"`
	SweepInterval     Duration `json:"sweep_interval,omitempty" yaml:"sweep_interval" koanf:"sweep_interval"`
}

// PasswordSection configures the strength policy.
type PasswordSection struct {
	MinLength         int      `json:"min_length,omitempty" yaml:"min_length" koanf:"min_length" jsonschema:"minimum=1"`
	MaxLength         int      `json:"max_length,omitempty" yaml:"max_length" koanf:"max_length" jsonschema:"minimum=1"`
	RequireLower      bool     `json:"require_lower,omitempty" yaml:"require_lower" koanf:"require_lower"`
	RequireUpper      bool     `json:"require_upper,omitempty" yaml:"require_upper" koanf:"require_upper"`
	RequireDigit      bool     `json:"require_digit,omitempty" yaml:"require_digit" koanf:"require_digit"`
	RequireSymbol     bool     `json:"require_symbol,omitempty" yaml:"require_symbol" koanf:"require_symbol"`
	ForbiddenPatterns []string `json:"forbidden_patterns,omitempty" yaml:"forbidden_patterns" koanf:"forbidden_patterns"`
	MinPersonalLength int      `json:"min_personal_length,omitempty" yaml:"min_personal_length" koanf:"min_personal_length" jsonschema:"minimum=1"`
	PhoneDigitRun     int      `json:"phone_digit_run,omitempty" yaml:"phone_digit_run" koanf:"phone_digit_run" jsonschema:"minimum=1"`
}

// PhoneSection configures the numbering plan.
type PhoneSection struct {
	CountryCode         string              `json:"country_code,omitempty" yaml:"country_code" koanf:"country_code" jsonschema:"pattern=^[0-9][0-9]?[0-9]?$"`
	TrunkPrefix         string              `json:"trunk_prefix,omitempty" yaml:"trunk_prefix" koanf:"trunk_prefix"`
	InternationalPrefix string              `json:"international_prefix,omitempty" yaml:"international_prefix" koanf:"international_prefix"`
	MobileTrunkDigit    string              `json:"mobile_trunk_digit,omitempty" yaml:"mobile_trunk_digit" koanf:"mobile_trunk_digit" jsonschema:"pattern=^[0-9]$"`
	MobileOperatorMin   string              `json:"mobile_operator_min,omitempty" yaml:"mobile_operator_min" koanf:"mobile_operator_min" jsonschema:"pattern=^[0-9]$"`
	MobileOperatorMax   string              `json:"mobile_operator_max,omitempty" yaml:"mobile_operator_max" koanf:"mobile_operator_max" jsonschema:"pattern=^[0-9]$"`
	AreaCodes           map[string]string   `json:"area_codes,omitempty" yaml:"area_codes" koanf:"area_codes"`
	UseCases            map[string][]string `json:"use_cases,omitempty" yaml:"use_cases" koanf:"use_cases"`
}

// RedisSection configures the session store connection.
type RedisSection struct {
	Addr            string   `json:"addr,omitempty" yaml:"addr" koanf:"addr"`
	Username        string   `json:"username,omitempty" yaml:"username" koanf:"username"`
	Password        string   `json:"password,omitempty" yaml:"password" koanf:"password"`
	DB              int      `json:"db,omitempty" yaml:"db" koanf:"db" jsonschema:"minimum=0"`
	KeyPrefix       string   `json:"key_prefix,omitempty" yaml:"key_prefix" koanf:"key_prefix"`
	DialTimeout     Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout" koanf:"dial_timeout"`
	ConnectAttempts int      `json:"connect_attempts,omitempty" yaml:"connect_attempts" koanf:"connect_attempts" jsonschema:"minimum=1"`
}

// LogSection configures logging.
type LogSection struct {
	Format string `json:"format,omitempty" yaml:"format" koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `json:"level,omitempty" yaml:"level" koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsSection configures the observability listener.
type MetricsSection struct {
	Addr string `json:"addr,omitempty" yaml:"addr" koanf:"addr" jsonschema:"description=Metrics and health listen address; empty disables"`
}

// Defaults returns the built-in configuration. It has no signing secret, so
// it does not validate on its own.
func Defaults() File {
	plan := phone.DefaultPlan()
	areaCodes := make(map[string]string, len(plan.AreaCodes))
	for code, region := range plan.AreaCodes {
		areaCodes[code] = region
	}
	useCases := make(map[string][]string, len(plan.UseCases))
	for useCase, classes := range plan.UseCases {
		names := make([]string, len(classes))
		for i, c := range classes {
			names[i] = c.String()
		}
		useCases[string(useCase)] = names
	}

	policy := password.DefaultPolicy()
	return File{
		Version: CurrentVersion,
		Token: TokenSection{
			Issuer:    "identity",
			Audience:  "storefront",
			AccessTTL: Duration(token.DefaultTTL),
		},
		Session: SessionSection{
			Lifetime:          Duration(session.DefaultLifetime),
			OpTimeout:         Duration(session.DefaultOpTimeout),
			FingerprintPolicy: string(session.PolicyLenient),
			SweepInterval:     Duration(redisstore.DefaultSweepInterval),
		},
		Password: PasswordSection{
			MinLength:         policy.MinLength,
			MaxLength:         policy.MaxLength,
			RequireLower:      policy.RequireLower,
			RequireUpper:      policy.RequireUpper,
			RequireDigit:      policy.RequireDigit,
			RequireSymbol:     policy.RequireSymbol,
			ForbiddenPatterns: append([]string(nil), policy.ForbiddenPatterns...),
			MinPersonalLength: policy.MinPersonalLength,
			PhoneDigitRun:     policy.PhoneDigitRun,
		},
		Phone: PhoneSection{
			CountryCode:         plan.CountryCode,
			TrunkPrefix:         plan.TrunkPrefix,
			InternationalPrefix: plan.InternationalPrefix,
			MobileTrunkDigit:    string(plan.MobileTrunkDigit),
			MobileOperatorMin:   string(plan.MobileOperatorMin),
			MobileOperatorMax:   string(plan.MobileOperatorMax),
			AreaCodes:           areaCodes,
			UseCases:            useCases,
		},
		Redis: RedisSection{
			Addr:            "127.0.0.1:6379",
			KeyPrefix:       redisstore.DefaultPrefix,
			DialTimeout:     Duration(5 * time.Second),
			ConnectAttempts: 5,
		},
		Log: LogSection{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsSection{
			Addr: "127.0.0.1:9100",
		},
	}
}
