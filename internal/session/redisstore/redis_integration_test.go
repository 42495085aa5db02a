// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

//go:build integration

package redisstore_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bazaarcore/identity/internal/errkind"
	"github.com/bazaarcore/identity/internal/session"
	"github.com/bazaarcore/identity/internal/session/redisstore"
	"github.com/bazaarcore/identity/internal/token"
)

// setupRedisContainer starts a Redis container for testing.
func setupRedisContainer() (*redisstore.Store, func(), error) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	store, err := redisstore.Connect(ctx, redisstore.Options{Addr: opts.Addr, KeyPrefix: "it"})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		_ = store.Close()
		_ = container.Terminate(ctx)
	}
	return store, cleanup, nil
}

var _ = Describe("Redis session store", func() {
	var store *redisstore.Store
	var manager *session.Manager
	var cleanup func()
	laptop := session.DeviceContext{
		RemoteAddr: "203.0.113.7:51544",
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	}

	BeforeEach(func() {
		var err error
		store, cleanup, err = setupRedisContainer()
		Expect(err).NotTo(HaveOccurred())
		manager, err = session.NewManager(store, session.Config{Lifetime: time.Hour})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("Redeem", func() {
		It("rotates the credential and consumes the old secret", func() {
			ctx := context.Background()
			issued, err := manager.Create(ctx, "u1", laptop)
			Expect(err).NotTo(HaveOccurred())

			redeemed, err := manager.Redeem(ctx, issued.Token, laptop)
			Expect(err).NotTo(HaveOccurred())
			Expect(redeemed.Claims.UserID).To(Equal("u1"))
			Expect(redeemed.Claims.Generation).To(Equal(2))

			_, err = manager.Redeem(ctx, issued.Token, laptop)
			Expect(errkind.Code(err)).To(Equal(errkind.CodeSessionNotFound))
		})

		It("lets exactly one of many concurrent redemptions win", func() {
			ctx := context.Background()
			issued, err := manager.Create(ctx, "u1", laptop)
			Expect(err).NotTo(HaveOccurred())

			const n = 16
			var wg sync.WaitGroup
			results := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					_, results[i] = manager.Redeem(ctx, issued.Token, laptop)
				}(i)
			}
			wg.Wait()

			wins := 0
			for _, err := range results {
				if err == nil {
					wins++
					continue
				}
				Expect(errkind.Code(err)).To(Equal(errkind.CodeSessionNotFound))
			}
			Expect(wins).To(Equal(1))
		})
	})

	Describe("Create", func() {
		It("sets the record TTL to the lifetime", func() {
			ctx := context.Background()
			issued, err := manager.Create(ctx, "u1", laptop)
			Expect(err).NotTo(HaveOccurred())

			ttl, err := store.Client().PTTL(ctx, "it:token:"+token.HashSecret(issued.Token)).Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(ttl).To(BeNumerically("~", time.Hour, time.Minute))
		})
	})

	Describe("RevokeAll", func() {
		It("removes every credential of the user and nothing else", func() {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				_, err := manager.Create(ctx, "u1", laptop)
				Expect(err).NotTo(HaveOccurred())
			}
			other, err := manager.Create(ctx, "u2", laptop)
			Expect(err).NotTo(HaveOccurred())

			n, err := manager.RevokeAll(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))

			_, err = manager.Redeem(ctx, other.Token, laptop)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Sweeper", func() {
		It("drops index members whose records expired", func() {
			ctx := context.Background()
			short, err := session.NewManager(store, session.Config{Lifetime: time.Second})
			Expect(err).NotTo(HaveOccurred())
			_, err = short.Create(ctx, "u1", laptop)
			Expect(err).NotTo(HaveOccurred())
			_, err = manager.Create(ctx, "u1", laptop)
			Expect(err).NotTo(HaveOccurred())

			sweeper := redisstore.NewSweeper(store, time.Minute, nil)
			Eventually(func() int {
				removed, err := sweeper.Sweep(ctx)
				Expect(err).NotTo(HaveOccurred())
				return removed
			}, 5*time.Second, 200*time.Millisecond).Should(Equal(1))

			members, err := store.Client().SMembers(ctx, "it:user:u1").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(HaveLen(1))
		})
	})
})
