// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Package token issues and verifies short-lived signed bearer tokens.
//
// Tokens are HS256 JWTs. Verification is stateless: an access token cannot be
// revoked before it expires, so lifetimes should stay short. Long-lived,
// revocable credentials live in package session.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/bazaarcore/identity/internal/errkind"
)

// MinSecretLen is the minimum signing secret length in bytes.
const MinSecretLen = 32

// DefaultTTL is the access-token lifetime used when Config.TTL is zero.
const DefaultTTL = 15 * time.Minute

// Verification outcomes reported to a Recorder.
const (
	OutcomeOK = "ok"
)

// Config holds the verification parameters supplied at startup.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// Principal identifies the authenticated caller.
type Principal struct {
	UserID    string
	Role      string
	SessionID string
}

// Claims is a verified token payload.
type Claims struct {
	Principal
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Recorder receives verification outcomes. *observability.Metrics implements it.
type Recorder interface {
	RecordTokenVerification(outcome string)
}

// wireClaims is the JSON payload.
type wireClaims struct {
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// Service issues and verifies tokens. It is safe for concurrent use.
type Service struct {
	cfg      Config
	parser   *jwt.Parser
	recorder Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder reports every verification outcome to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// New validates cfg and creates a Service.
func New(cfg Config, opts ...Option) (*Service, error) {
	errb := oops.Code(errkind.CodeConfigInvalid).In("token")
	if len(cfg.Secret) < MinSecretLen {
		return nil, errb.With("secret_len", len(cfg.Secret)).
			Wrapf(errkind.ErrConfig, "signing secret must be at least %d bytes", MinSecretLen)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errb.Wrapf(errkind.ErrConfig, "issuer is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errb.Wrapf(errkind.ErrConfig, "audience is required")
	}
	if cfg.TTL < 0 {
		return nil, errb.With("ttl", cfg.TTL).Wrapf(errkind.ErrConfig, "ttl must not be negative")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Service{
		cfg: cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the default access-token lifetime.
func (s *Service) TTL() time.Duration {
	return s.cfg.TTL
}

// Issue signs a token for principal. A ttl <= 0 uses the configured default.
// The expiry is rounded up to the next whole second, so the token never lives
// shorter than ttl.
func (s *Service) Issue(principal Principal, ttl time.Duration) (string, Claims, error) {
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	now := s.cfg.Now()
	exp := now.Add(ttl)
	expSec := exp.Unix()
	if exp.Nanosecond() > 0 {
		expSec++
	}

	wc := wireClaims{
		UserID:    principal.UserID,
		Role:      principal.Role,
		SessionID: principal.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(time.Unix(now.Unix(), 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(expSec, 0)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wc).SignedString(s.cfg.Secret)
	if err != nil {
		return "", Claims{}, oops.Code(errkind.CodeTokenGenerateFailed).
			In("token").
			With("user_id", principal.UserID).
			Wrap(err)
	}
	return signed, s.claimsOf(wc), nil
}

// Verify checks raw and returns its claims. Checks run in a fixed order and the
// first failure wins:
//
//  1. TOKEN_MALFORMED: structure, encoding, algorithm or a missing exp.
//  2. TOKEN_EXPIRED: now is after exp, read from the unverified payload.
//  3. TOKEN_INVALID_SIGNATURE: HMAC mismatch.
//  4. TOKEN_WRONG_AUDIENCE: issuer or audience mismatch.
//
// An expired token therefore reports TOKEN_EXPIRED even if it was tampered with.
func (s *Service) Verify(raw string) (Claims, error) {
	claims, err := s.verify(raw)
	if s.recorder != nil {
		outcome := OutcomeOK
		if err != nil {
			outcome = strings.ToLower(errkind.Code(err))
		}
		s.recorder.RecordTokenVerification(outcome)
	}
	return claims, err
}

func (s *Service) verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)

	var unverified wireClaims
	tok, parts, err := s.parser.ParseUnverified(raw, &unverified)
	if err != nil {
		return Claims{}, authError(errkind.CodeTokenMalformed, "token is malformed: %v", err)
	}
	if tok.Method == nil || tok.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return Claims{}, authError(errkind.CodeTokenMalformed, "unsupported signing algorithm %v", tok.Header["alg"])
	}
	if _, err := s.parser.DecodeSegment(parts[2]); err != nil || parts[2] == "" {
		return Claims{}, authError(errkind.CodeTokenMalformed, "token signature is not decodable")
	}
	if unverified.ExpiresAt == nil {
		return Claims{}, authError(errkind.CodeTokenMalformed, "token has no exp claim")
	}

	now := s.cfg.Now()
	if now.After(unverified.ExpiresAt.Time) {
		return Claims{}, oops.Code(errkind.CodeTokenExpired).
			In("token").
			With("expired_at", unverified.ExpiresAt.Time.UTC()).
			Wrapf(errkind.ErrAuth, "token is expired")
	}

	var verified wireClaims
	_, err = s.parser.ParseWithClaims(raw, &verified, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Claims{}, authError(errkind.CodeTokenMalformed, "token is malformed: %v", err)
		}
		return Claims{}, authError(errkind.CodeTokenInvalidSignature, "token signature is invalid")
	}

	if verified.Issuer != s.cfg.Issuer || !audienceContains(verified.Audience, s.cfg.Audience) {
		return Claims{}, oops.Code(errkind.CodeTokenWrongAudience).
			In("token").
			With("issuer", verified.Issuer).
			With("audience", []string(verified.Audience)).
			Wrapf(errkind.ErrAuth, "token issuer or audience mismatch")
	}

	return s.claimsOf(verified), nil
}

func (s *Service) claimsOf(wc wireClaims) Claims {
	c := Claims{
		Principal: Principal{
			UserID:    wc.UserID,
			Role:      wc.Role,
			SessionID: wc.SessionID,
		},
		Issuer:   wc.Issuer,
		Audience: s.cfg.Audience,
	}
	if wc.IssuedAt != nil {
		c.IssuedAt = unixUTC(wc.IssuedAt)
	}
	if wc.ExpiresAt != nil {
		c.ExpiresAt = unixUTC(wc.ExpiresAt)
	}
	return c
}

func unixUTC(d *jwt.NumericDate) time.Time {
	return time.Unix(d.Unix(), 0).UTC()
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

func authError(code, format string, args ...any) error {
	return oops.Code(code).In("token").Wrapf(errkind.ErrAuth, format, args...)
}
