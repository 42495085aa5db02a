// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bazaarcore/identity/internal/errkind"
	"github.com/bazaarcore/identity/internal/password"
	"github.com/bazaarcore/identity/internal/phone"
	"github.com/bazaarcore/identity/internal/session"
	"github.com/bazaarcore/identity/internal/session/redisstore"
	"github.com/bazaarcore/identity/internal/token"
	"github.com/bazaarcore/identity/pkg/errutil"
)

// testEnv holds the resources shared by the login flow specs.
type testEnv struct {
	ctx       context.Context
	container testcontainers.Container
	store     *redisstore.Store
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

func setupTestEnv() (*testEnv, error) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	store, err := redisstore.Connect(ctx, redisstore.Options{Addr: opts.Addr, KeyPrefix: "e2e"})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return &testEnv{ctx: ctx, container: container, store: store}, nil
}

func (e *testEnv) cleanup() {
	_ = e.store.Close()
	_ = e.container.Terminate(e.ctx)
}

var _ = Describe("Login flow", func() {
	var (
		ctx      context.Context
		phones   *phone.Validator
		policy   *password.Engine
		hasher   *password.Argon2idHasher
		tokens   *token.Service
		sessions *session.Manager
	)
	phoneDevice := session.DeviceContext{
		RemoteAddr: "198.51.100.23:40112",
		UserAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
	}

	BeforeEach(func() {
		ctx = context.Background()
		Expect(env.store.Client().FlushDB(ctx).Err()).To(Succeed())

		var err error
		phones, err = phone.NewValidator(phone.DefaultPlan())
		Expect(err).NotTo(HaveOccurred())
		policy, err = password.NewEngine(password.DefaultPolicy())
		Expect(err).NotTo(HaveOccurred())
		hasher = password.NewArgon2idHasher(password.DefaultParams())
		tokens, err = token.New(token.Config{
			Secret:   []byte("0123456789abcdef0123456789abcdef"),
			Issuer:   "identity",
			Audience: "storefront",
			TTL:      15 * time.Minute,
		})
		Expect(err).NotTo(HaveOccurred())
		sessions, err = session.NewManager(env.store, session.Config{
			Lifetime:          time.Hour,
			FingerprintPolicy: session.PolicyLenient,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("registers, signs in and stays remembered across rotations", func() {
		By("accepting a mobile number for registration")
		outcome := phones.ValidateForUseCase("+92 300 1234567", phone.UseCaseRegistration)
		Expect(outcome.OK()).To(BeTrue())
		Expect(outcome.Number.Normalized).To(Equal("+923001234567"))

		By("accepting and hashing a strong password")
		info := password.PersonalInfo{FirstName: "Ayesha", LastName: "Khan", Phone: outcome.Number.Normalized}
		Expect(policy.ValidateStrength("Monsoon&Chai-2026", info).Valid).To(BeTrue())
		hash, err := hasher.Hash("Monsoon&Chai-2026")
		Expect(err).NotTo(HaveOccurred())
		ok, err := hasher.Verify("Monsoon&Chai-2026", hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		By("issuing a remember-me credential and an access token")
		issued, err := sessions.Create(ctx, "user-42", phoneDevice)
		Expect(err).NotTo(HaveOccurred())
		access, _, err := tokens.Issue(token.Principal{UserID: "user-42", Role: "customer", SessionID: issued.LineageID}, 0)
		Expect(err).NotTo(HaveOccurred())

		raw, ok := token.ExtractBearer("Bearer " + access)
		Expect(ok).To(BeTrue())
		claims, err := tokens.Verify(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.UserID).To(Equal("user-42"))
		Expect(claims.SessionID).To(Equal(issued.LineageID))

		By("rotating the credential on every redemption")
		first, err := sessions.Redeem(ctx, issued.Token, phoneDevice)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Claims.LineageID).To(Equal(issued.LineageID))
		second, err := sessions.Redeem(ctx, first.Token, phoneDevice)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Claims.Generation).To(BeNumerically(">", first.Claims.Generation))

		By("refusing a superseded credential")
		_, err = sessions.Redeem(ctx, issued.Token, phoneDevice)
		errutil.AssertErrorKind(GinkgoT(), err, errkind.ErrAuth, errkind.CodeSessionNotFound)
	})

	It("signs the user out everywhere", func() {
		laptop := session.DeviceContext{
			RemoteAddr: "203.0.113.7:51544",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		}
		onPhone, err := sessions.Create(ctx, "user-7", phoneDevice)
		Expect(err).NotTo(HaveOccurred())
		onLaptop, err := sessions.Create(ctx, "user-7", laptop)
		Expect(err).NotTo(HaveOccurred())

		n, err := sessions.RevokeAll(ctx, "user-7")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		_, err = sessions.Redeem(ctx, onPhone.Token, phoneDevice)
		Expect(errkind.Code(err)).To(Equal(errkind.CodeSessionNotFound))
		_, err = sessions.Redeem(ctx, onLaptop.Token, laptop)
		Expect(errkind.Code(err)).To(Equal(errkind.CodeSessionNotFound))
	})

	It("rejects a landline at registration but accepts it for login", func() {
		Expect(phones.ValidateForUseCase("021-34567890", phone.UseCaseRegistration).Err()).
			To(MatchError(errkind.ErrValidation))
		Expect(phones.ValidateForUseCase("021-34567890", phone.UseCaseLogin).OK()).To(BeTrue())
	})

	It("reports a personal-info password", func() {
		result := policy.ValidateStrength("Ayesha#2026!x", password.PersonalInfo{FirstName: "Ayesha"})
		Expect(result.Valid).To(BeFalse())
		Expect(result.Has(password.RulePersonalInfo)).To(BeTrue())
		Expect(errkind.Code(result.Err())).To(Equal(errkind.CodePasswordTooWeak))
	})
})
