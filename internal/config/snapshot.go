// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/bazaarcore/identity/internal/errkind"
	"github.com/bazaarcore/identity/internal/password"
	"github.com/bazaarcore/identity/internal/phone"
	"github.com/bazaarcore/identity/internal/session"
	"github.com/bazaarcore/identity/internal/session/redisstore"
	"github.com/bazaarcore/identity/internal/token"
)

// Snapshot is the resolved, validated configuration. It is immutable by
// convention; components receive the parts they need by value.
type Snapshot struct {
	Version       string
	Token         token.Config
	Session       session.Config
	SweepInterval time.Duration
	Password      password.Policy
	Phone         phone.Plan
	Redis         redisstore.Options
	LogFormat     string
	LogLevel      slog.Level
	MetricsAddr   string
}

// Snapshot converts f into a Snapshot and validates it.
func (f File) Snapshot() (Snapshot, error) {
	var problems []string
	addf := func(msg string) { problems = append(problems, msg) }

	plan, planProblems := f.phonePlan()
	problems = append(problems, planProblems...)

	level, ok := parseLevel(f.Log.Level)
	if !ok {
		addf("log.level: must be debug, info, warn or error")
	}

	snap := Snapshot{
		Version: f.Version,
		Token: token.Config{
			Secret:   []byte(f.Token.Secret),
			Issuer:   strings.TrimSpace(f.Token.Issuer),
			Audience: strings.TrimSpace(f.Token.Audience),
			TTL:      f.Token.AccessTTL.std(),
		},
		Session: session.Config{
			Lifetime:          f.Session.Lifetime.std(),
			OpTimeout:         f.Session.OpTimeout.std(),
			FingerprintPolicy: session.FingerprintPolicy(f.Session.FingerprintPolicy),
		},
		SweepInterval: f.Session.SweepInterval.std(),
		Password:      f.PasswordPolicy(),
		Phone:         plan,
		Redis: redisstore.Options{
			Addr:            strings.TrimSpace(f.Redis.Addr),
			Username:        f.Redis.Username,
			Password:        f.Redis.Password,
			DB:              f.Redis.DB,
			KeyPrefix:       f.Redis.KeyPrefix,
			DialTimeout:     f.Redis.DialTimeout.std(),
			ConnectAttempts: uint64(max(f.Redis.ConnectAttempts, 0)),
		},
		LogFormat:   f.Log.Format,
		LogLevel:    level,
		MetricsAddr: strings.TrimSpace(f.Metrics.Addr),
	}

	problems = append(problems, snap.problems()...)
	if len(problems) > 0 {
		return Snapshot{}, oops.Code(errkind.CodeConfigInvalid).
			In("config").
			With("problems", problems).
			Wrapf(errkind.ErrConfig, "invalid configuration: %s", strings.Join(problems, "; "))
	}
	return snap, nil
}

// Validate re-checks a Snapshot built by hand.
func (s Snapshot) Validate() error {
	problems := s.problems()
	if len(problems) == 0 {
		return nil
	}
	return oops.Code(errkind.CodeConfigInvalid).
		In("config").
		With("problems", problems).
		Wrapf(errkind.ErrConfig, "invalid configuration: %s", strings.Join(problems, "; "))
}

func (s Snapshot) problems() []string {
	var problems []string
	addf := func(msg string) { problems = append(problems, msg) }

	if err := CheckVersion(s.Version); err != nil {
		addf("version: " + s.Version + " does not satisfy " + SupportedVersions)
	}

	if len(s.Token.Secret) == 0 {
		addf("token.secret: required")
	} else if len(s.Token.Secret) < token.MinSecretLen {
		addf("token.secret: must be at least 32 bytes")
	}
	if s.Token.Issuer == "" {
		addf("token.issuer: required")
	}
	if s.Token.Audience == "" {
		addf("token.audience: required")
	}
	if s.Token.TTL <= 0 {
		addf("token.access_ttl: must be positive")
	}

	if s.Session.Lifetime <= 0 {
		addf("session.lifetime: must be positive")
	} else if s.Token.TTL >= s.Session.Lifetime {
		addf("token.access_ttl: must be shorter than session.lifetime")
	}
	if s.Session.OpTimeout <= 0 {
		addf("session.op_timeout: must be positive")
	}
	if !s.Session.FingerprintPolicy.Valid() {
		addf("session.fingerprint_policy: must be strict, lenient or off")
	}
	if s.SweepInterval <= 0 {
		addf("session.sweep_interval: must be positive")
	}

	if _, err := password.NewEngine(s.Password); err != nil {
		addf("password: " + err.Error())
	}
	if err := s.Phone.Validate(); err != nil {
		addf("phone: " + err.Error())
	}

	if s.Redis.Addr == "" {
		addf("redis.addr: required")
	}
	if s.LogFormat != "json" && s.LogFormat != "text" {
		addf("log.format: must be json or text")
	}
	return problems
}

// PasswordPolicy returns the password section as a policy. It is not
// validated; password.NewEngine does that.
func (f File) PasswordPolicy() password.Policy {
	return password.Policy{
		MinLength:         f.Password.MinLength,
		MaxLength:         f.Password.MaxLength,
		RequireLower:      f.Password.RequireLower,
		RequireUpper:      f.Password.RequireUpper,
		RequireDigit:      f.Password.RequireDigit,
		RequireSymbol:     f.Password.RequireSymbol,
		ForbiddenPatterns: f.Password.ForbiddenPatterns,
		MinPersonalLength: f.Password.MinPersonalLength,
		PhoneDigitRun:     f.Password.PhoneDigitRun,
	}
}

// PhonePlan returns the phone section as a validated numbering plan. Unlike
// Snapshot it does not need the rest of the file to be valid.
func (f File) PhonePlan() (phone.Plan, error) {
	plan, problems := f.phonePlan()
	if len(problems) == 0 {
		if err := plan.Validate(); err != nil {
			problems = append(problems, "phone: "+err.Error())
		}
	}
	if len(problems) > 0 {
		return phone.Plan{}, oops.Code(errkind.CodeConfigInvalid).
			In("config").
			With("problems", problems).
			Wrapf(errkind.ErrConfig, "invalid phone configuration: %s", strings.Join(problems, "; "))
	}
	return plan, nil
}

func (f File) phonePlan() (phone.Plan, []string) {
	var problems []string
	plan := phone.Plan{
		CountryCode:         f.Phone.CountryCode,
		TrunkPrefix:         f.Phone.TrunkPrefix,
		InternationalPrefix: f.Phone.InternationalPrefix,
		MobileTrunkDigit:    digit(f.Phone.MobileTrunkDigit),
		MobileOperatorMin:   digit(f.Phone.MobileOperatorMin),
		MobileOperatorMax:   digit(f.Phone.MobileOperatorMax),
		AreaCodes:           f.Phone.AreaCodes,
		UseCases:            make(map[phone.UseCase][]phone.Class, len(f.Phone.UseCases)),
	}
	for useCase, names := range f.Phone.UseCases {
		classes := make([]phone.Class, 0, len(names))
		for _, name := range names {
			c, ok := phone.ParseClass(name)
			if !ok {
				problems = append(problems, "phone.use_cases."+useCase+": unknown class "+name)
				continue
			}
			classes = append(classes, c)
		}
		plan.UseCases[phone.UseCase(useCase)] = classes
	}
	return plan, problems
}

func digit(s string) byte {
	if len(s) != 1 {
		return 0
	}
	return s[0]
}

func parseLevel(s string) (slog.Level, bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, false
	}
	return level, true
}
