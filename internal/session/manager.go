// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bazaarcore/identity/internal/errkind"
	"github.com/bazaarcore/identity/internal/token"
)

var tracer = otel.Tracer("identity/session")

// Defaults.
const (
	DefaultLifetime  = 30 * 24 * time.Hour
	DefaultOpTimeout = 2 * time.Second
)

// Operation names used for spans and metrics.
const (
	OpCreate    = "create"
	OpRedeem    = "redeem"
	OpRevoke    = "revoke"
	OpRevokeAll = "revoke_all"
)

// OutcomeOK is the metric outcome of a successful operation.
const OutcomeOK = "ok"

// Config holds the manager's settings.
type Config struct {
	Lifetime          time.Duration
	OpTimeout         time.Duration
	FingerprintPolicy FingerprintPolicy
	Now               func() time.Time
}

// Recorder receives operation outcomes. *observability.Metrics implements it.
type Recorder interface {
	RecordSessionOperation(op, outcome string)
}

// Issued is the result of Create. Token is the raw secret; it cannot be
// retrieved again.
type Issued struct {
	Token     string
	ExpiresAt time.Time
	LineageID string
}

// Claims describes the principal behind a redeemed credential.
type Claims struct {
	UserID     string
	LineageID  string
	Generation int
	CreatedAt  time.Time
}

// Redeemed is the result of Redeem. Token replaces the presented secret.
type Redeemed struct {
	Token     string
	ExpiresAt time.Time
	Claims    Claims
}

// Manager creates, redeems and revokes remember-me credentials. It holds no
// mutable state of its own; the Store is the only source of truth.
type Manager struct {
	store    Store
	cfg      Config
	recorder Recorder
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder reports every operation outcome to r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager validates cfg and creates a Manager over store.
func NewManager(store Store, cfg Config, opts ...Option) (*Manager, error) {
	errb := oops.Code(errkind.CodeConfigInvalid).In("session")
	if store == nil {
		return nil, errb.Wrapf(errkind.ErrConfig, "session store is required")
	}
	if cfg.Lifetime < 0 || cfg.OpTimeout < 0 {
		return nil, errb.With("lifetime", cfg.Lifetime).With("op_timeout", cfg.OpTimeout).
			Wrapf(errkind.ErrConfig, "durations must not be negative")
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.OpTimeout == 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	if cfg.FingerprintPolicy == "" {
		cfg.FingerprintPolicy = PolicyLenient
	}
	if !cfg.FingerprintPolicy.Valid() {
		return nil, errb.With("fingerprint_policy", cfg.FingerprintPolicy).
			Wrapf(errkind.ErrConfig, "unknown fingerprint policy")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{store: store, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create issues a new credential for userID on the device described by dc.
func (m *Manager) Create(ctx context.Context, userID string, dc DeviceContext) (issued Issued, err error) {
	ctx, span := m.start(ctx, OpCreate, attribute.String("user.id", userID))
	defer func() { m.finish(span, OpCreate, err) }()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Issued{}, oops.Code(errkind.CodeSessionInvalidContext).
			In("session").
			With("field", "user_id").
			Wrapf(errkind.ErrValidation, "user id is required")
	}
	fp, err := NewFingerprint(dc)
	if err != nil {
		return Issued{}, err
	}
	secret, err := token.GenerateSecret()
	if err != nil {
		return Issued{}, err
	}

	now := m.cfg.Now().UTC()
	rec := Record{
		Hash:        token.HashSecret(secret),
		LineageID:   ulid.Make().String(),
		UserID:      userID,
		Fingerprint: fp,
		CreatedAt:   now,
		RotatedAt:   now,
		ExpiresAt:   now.Add(m.cfg.Lifetime),
		Generation:  1,
	}
	span.SetAttributes(attribute.String("session.lineage_id", rec.LineageID))

	if err := m.call(ctx, func(ctx context.Context) error {
		return m.store.Create(ctx, rec, m.cfg.Lifetime)
	}); err != nil {
		return Issued{}, oops.In("session").With("operation", OpCreate).With("user_id", userID).Wrap(err)
	}

	return Issued{Token: secret, ExpiresAt: rec.ExpiresAt, LineageID: rec.LineageID}, nil
}

// Redeem exchanges a credential for a fresh one. The presented secret is
// consumed: of two concurrent redemptions of the same secret exactly one
// succeeds and the other gets SESSION_NOT_FOUND.
func (m *Manager) Redeem(ctx context.Context, secret string, dc DeviceContext) (redeemed Redeemed, err error) {
	ctx, span := m.start(ctx, OpRedeem)
	defer func() { m.finish(span, OpRedeem, err) }()

	presented, err := NewFingerprint(dc)
	if err != nil {
		return Redeemed{}, err
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return Redeemed{}, notFound()
	}
	hash := token.HashSecret(secret)

	var rec Record
	err = m.call(ctx, func(ctx context.Context) error {
		var getErr error
		rec, getErr = m.store.Get(ctx, hash)
		return getErr
	})
	if errors.Is(err, ErrNotFound) {
		return Redeemed{}, notFound()
	}
	if err != nil {
		return Redeemed{}, oops.In("session").With("operation", OpRedeem).Wrap(err)
	}
	span.SetAttributes(
		attribute.String("user.id", rec.UserID),
		attribute.String("session.lineage_id", rec.LineageID),
		attribute.Int("session.generation", rec.Generation),
	)

	now := m.cfg.Now().UTC()
	if !now.Before(rec.ExpiresAt) {
		if delErr := m.call(ctx, func(ctx context.Context) error {
			return m.store.Delete(ctx, hash)
		}); delErr != nil {
			m.logger.WarnContext(ctx, "evict expired session failed",
				"lineage_id", rec.LineageID, "error", delErr)
		}
		return Redeemed{}, oops.Code(errkind.CodeSessionExpired).
			In("session").
			With("lineage_id", rec.LineageID).
			With("expired_at", rec.ExpiresAt).
			Wrapf(errkind.ErrAuth, "remember-me credential has expired")
	}

	if !m.cfg.FingerprintPolicy.Matches(rec.Fingerprint, presented) {
		m.logger.WarnContext(ctx, "session device mismatch",
			"lineage_id", rec.LineageID,
			"user_id", rec.UserID,
			"policy", string(m.cfg.FingerprintPolicy),
			"stored_family", rec.Fingerprint.UserAgentFamily,
			"presented_family", presented.UserAgentFamily)
		return Redeemed{}, oops.Code(errkind.CodeSessionDeviceMismatch).
			In("session").
			With("lineage_id", rec.LineageID).
			With("policy", string(m.cfg.FingerprintPolicy)).
			Wrapf(errkind.ErrAuth, "presenting device does not match the issuing device")
	}

	nextSecret, err := token.GenerateSecret()
	if err != nil {
		return Redeemed{}, err
	}
	next := rec
	next.Hash = token.HashSecret(nextSecret)
	next.Fingerprint = presented
	next.RotatedAt = now
	next.ExpiresAt = now.Add(m.cfg.Lifetime)
	next.Generation = rec.Generation + 1

	err = m.call(ctx, func(ctx context.Context) error {
		return m.store.Rotate(ctx, hash, rec, next, m.cfg.Lifetime)
	})
	if errors.Is(err, ErrNotFound) {
		return Redeemed{}, notFound()
	}
	if err != nil {
		return Redeemed{}, oops.In("session").With("operation", OpRedeem).Wrap(err)
	}

	return Redeemed{
		Token:     nextSecret,
		ExpiresAt: next.ExpiresAt,
		Claims: Claims{
			UserID:     next.UserID,
			LineageID:  next.LineageID,
			Generation: next.Generation,
			CreatedAt:  next.CreatedAt,
		},
	}, nil
}

// Revoke deletes the credential. Revoking an unknown or already revoked
// credential succeeds.
func (m *Manager) Revoke(ctx context.Context, secret string) (err error) {
	ctx, span := m.start(ctx, OpRevoke)
	defer func() { m.finish(span, OpRevoke, err) }()

	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	hash := token.HashSecret(secret)
	err = m.call(ctx, func(ctx context.Context) error {
		return m.store.Delete(ctx, hash)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.In("session").With("operation", OpRevoke).Wrap(err)
	}
	return nil
}

// RevokeAll deletes every credential of userID, e.g. on password change. It
// returns the number of credentials removed.
func (m *Manager) RevokeAll(ctx context.Context, userID string) (n int, err error) {
	ctx, span := m.start(ctx, OpRevokeAll, attribute.String("user.id", userID))
	defer func() {
		span.SetAttributes(attribute.Int("session.revoked", n))
		m.finish(span, OpRevokeAll, err)
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, oops.Code(errkind.CodeSessionInvalidContext).
			In("session").
			With("field", "user_id").
			Wrapf(errkind.ErrValidation, "user id is required")
	}
	err = m.call(ctx, func(ctx context.Context) error {
		var delErr error
		n, delErr = m.store.DeleteUser(ctx, userID)
		return delErr
	})
	if err != nil {
		return 0, oops.In("session").With("operation", OpRevokeAll).With("user_id", userID).Wrap(err)
	}
	if n > 0 {
		m.logger.InfoContext(ctx, "revoked all sessions", "user_id", userID, "count", n)
	}
	return n, nil
}

// Ping checks that the store is reachable within the operation timeout.
func (m *Manager) Ping(ctx context.Context) error {
	return m.call(ctx, m.store.Ping)
}

// call runs fn with the per-operation timeout. Errors the store already
// classified pass through; anything else, a deadline included, becomes
// STORE_UNAVAILABLE.
func (m *Manager) call(ctx context.Context, fn func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, m.cfg.OpTimeout)
	defer cancel()

	err := fn(opCtx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errkind.Of(err) != nil:
		return err
	case opCtx.Err() != nil:
		return Unavailable("store call", opCtx.Err())
	default:
		return Unavailable("store call", err)
	}
}

func (m *Manager) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "session."+op, trace.WithAttributes(attrs...))
}

func (m *Manager) finish(span trace.Span, op string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = strings.ToLower(errkind.Code(err))
		if outcome == "" {
			outcome = errkind.Name(err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if m.recorder != nil {
		m.recorder.RecordSessionOperation(op, outcome)
	}
	span.End()
}

func notFound() error {
	return oops.Code(errkind.CodeSessionNotFound).
		In("session").
		Wrapf(errkind.ErrAuth, "remember-me credential not found")
}
