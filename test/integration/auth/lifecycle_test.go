// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

//go:build integration

package auth_test

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/matchbook-app/matchbook/internal/auth"
)

// uniqueEmail returns an email no other spec has used, so specs stay
// independent inside the shared database.
func uniqueEmail() string {
	return fmt.Sprintf("user-%s@example.com", ulid.Make().String())
}

var _ = Describe("Registration", func() {
	It("registers an account and finds it case-insensitively", func() {
		email := uniqueEmail()

		user, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "password123")
		Expect(err).NotTo(HaveOccurred())
		Expect(user.EmailVerified).To(BeNil())

		found, err := env.Users.GetByEmail(env.ctx, email)
		Expect(err).NotTo(HaveOccurred())
		Expect(found.ID).To(Equal(user.ID))

		upper, err := env.Users.GetByEmail(env.ctx, "USER-"+user.Email[5:])
		Expect(err).NotTo(HaveOccurred())
		Expect(upper.ID).To(Equal(user.ID))
	})

	It("rejects a duplicate email via the unique constraint", func() {
		email := uniqueEmail()

		_, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "password123")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Service.Register(env.ctx, "Impostor", email, "password456")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("already exists"))
	})
})

var _ = Describe("Email verification", func() {
	It("verifies the email exactly once", func() {
		email := uniqueEmail()
		user, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "password123")
		Expect(err).NotTo(HaveOccurred())

		secret, _, err := env.TokenSvc.Issue(env.ctx, email, auth.TokenTypeEmailVerification)
		Expect(err).NotTo(HaveOccurred())

		redemption, err := env.TokenSvc.Redeem(env.ctx, secret)
		Expect(err).NotTo(HaveOccurred())
		Expect(redemption.Type).To(Equal(auth.TokenTypeEmailVerification))

		verified, err := env.Users.GetByID(env.ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(verified.EmailVerified).NotTo(BeNil())

		// The token was consumed; replaying it must fail.
		_, err = env.TokenSvc.Redeem(env.ctx, secret)
		Expect(err).To(HaveOccurred())
	})

	It("supersedes a previous verification token", func() {
		email := uniqueEmail()
		_, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "password123")
		Expect(err).NotTo(HaveOccurred())

		first, _, err := env.TokenSvc.Issue(env.ctx, email, auth.TokenTypeEmailVerification)
		Expect(err).NotTo(HaveOccurred())

		second, _, err := env.TokenSvc.Issue(env.ctx, email, auth.TokenTypeEmailVerification)
		Expect(err).NotTo(HaveOccurred())

		_, err = env.TokenSvc.Redeem(env.ctx, first)
		Expect(err).To(HaveOccurred(), "superseded token must be dead")

		_, err = env.TokenSvc.Redeem(env.ctx, second)
		Expect(err).NotTo(HaveOccurred())
	})

	It("issues nothing for an unknown email", func() {
		_, _, err := env.TokenSvc.Issue(env.ctx, uniqueEmail(), auth.TokenTypeEmailVerification)
		Expect(err).To(HaveOccurred())
	})

	It("leaves exactly one live token when two issuers race", func() {
		email := uniqueEmail()
		_, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "password123")
		Expect(err).NotTo(HaveOccurred())

		secrets := make([]string, 2)
		issueErrs := make([]error, 2)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := range secrets {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				<-start
				secrets[i], _, issueErrs[i] = env.TokenSvc.Issue(env.ctx, email, auth.TokenTypeEmailVerification)
			}(i)
		}
		close(start)
		wg.Wait()

		Expect(issueErrs[0]).NotTo(HaveOccurred())
		Expect(issueErrs[1]).NotTo(HaveOccurred())

		// The unique constraint serializes the upserts: one row survives.
		live := 0
		for _, secret := range secrets {
			if _, err := env.Tokens.GetByTokenHash(env.ctx, auth.HashToken(secret)); err == nil {
				live++
			}
		}
		Expect(live).To(Equal(1))

		redeemed := 0
		for _, secret := range secrets {
			if _, err := env.TokenSvc.Redeem(env.ctx, secret); err == nil {
				redeemed++
			}
		}
		Expect(redeemed).To(Equal(1), "exactly one of the racing secrets redeems")
	})
})

var _ = Describe("Login and sessions", func() {
	It("logs in and round-trips the session token", func() {
		email := uniqueEmail()
		user, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "password123")
		Expect(err).NotTo(HaveOccurred())

		session, token, err := env.Service.Login(env.ctx, email, "password123", "Mozilla/5.0", "10.0.0.1")
		Expect(err).NotTo(HaveOccurred())
		Expect(session.UserID).To(Equal(user.ID))

		validated, err := env.Service.ValidateSession(env.ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(validated.ID).To(Equal(session.ID))

		Expect(env.Service.Logout(env.ctx, session.ID)).To(Succeed())

		_, err = env.Service.ValidateSession(env.ctx, token)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a wrong password and an unknown email identically", func() {
		email := uniqueEmail()
		_, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "password123")
		Expect(err).NotTo(HaveOccurred())

		_, _, wrongErr := env.Service.Login(env.ctx, email, "wrongpass", "", "")
		Expect(wrongErr).To(HaveOccurred())

		_, _, unknownErr := env.Service.Login(env.ctx, uniqueEmail(), "wrongpass", "", "")
		Expect(unknownErr).To(HaveOccurred())

		Expect(wrongErr.Error()).To(Equal(unknownErr.Error()))
	})

	It("removes all sessions for a user", func() {
		email := uniqueEmail()
		user, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "password123")
		Expect(err).NotTo(HaveOccurred())

		var last *auth.WebSession
		for i := 0; i < 3; i++ {
			session, _, err := env.Service.Login(env.ctx, email, "password123", "", "")
			Expect(err).NotTo(HaveOccurred())
			last = session
		}

		Expect(env.Sessions.DeleteByUser(env.ctx, user.ID)).To(Succeed())

		_, err = env.Sessions.GetByID(env.ctx, last.ID)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Password reset", func() {
	It("resets the password with a valid token", func() {
		email := uniqueEmail()
		_, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "oldpassword")
		Expect(err).NotTo(HaveOccurred())

		secret, _, err := env.TokenSvc.Issue(env.ctx, email, auth.TokenTypePasswordReset)
		Expect(err).NotTo(HaveOccurred())

		// Validation does not consume the reset token.
		gotEmail, err := env.TokenSvc.ValidateReset(env.ctx, secret)
		Expect(err).NotTo(HaveOccurred())
		Expect(gotEmail).To(Equal(email))

		Expect(env.TokenSvc.ResetPassword(env.ctx, secret, "newpassword")).To(Succeed())

		_, _, err = env.Service.Login(env.ctx, email, "oldpassword", "", "")
		Expect(err).To(HaveOccurred(), "old password must stop working")

		_, _, err = env.Service.Login(env.ctx, email, "newpassword", "", "")
		Expect(err).NotTo(HaveOccurred())

		// The reset token is gone once the password is updated.
		_, err = env.TokenSvc.ValidateReset(env.ctx, secret)
		Expect(err).To(HaveOccurred())
	})

	It("does not accept a verification token for a reset", func() {
		email := uniqueEmail()
		_, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "password123")
		Expect(err).NotTo(HaveOccurred())

		secret, _, err := env.TokenSvc.Issue(env.ctx, email, auth.TokenTypeEmailVerification)
		Expect(err).NotTo(HaveOccurred())

		err = env.TokenSvc.ResetPassword(env.ctx, secret, "newpassword")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Expiry cleanup", func() {
	It("purges expired tokens and leaves live ones", func() {
		email := uniqueEmail()
		_, err := env.Service.Register(env.ctx, "Ada Lovelace", email, "password123")
		Expect(err).NotTo(HaveOccurred())

		// An already-expired token, written through the repository directly.
		expired := &auth.Token{
			TokenHash: auth.HashToken("expired-" + email),
			Email:     email,
			Type:      auth.TokenTypePasswordReset,
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-time.Hour),
		}
		Expect(env.Tokens.Upsert(env.ctx, expired)).To(Succeed())

		liveEmail := uniqueEmail()
		_, err = env.Service.Register(env.ctx, "Grace Hopper", liveEmail, "password123")
		Expect(err).NotTo(HaveOccurred())
		liveSecret, _, err := env.TokenSvc.Issue(env.ctx, liveEmail, auth.TokenTypeEmailVerification)
		Expect(err).NotTo(HaveOccurred())

		deleted, err := env.Tokens.DeleteExpired(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(BeNumerically(">=", 1))

		_, err = env.Tokens.GetByTokenHash(env.ctx, expired.TokenHash)
		Expect(err).To(HaveOccurred())

		_, err = env.Tokens.GetByTokenHash(env.ctx, auth.HashToken(liveSecret))
		Expect(err).NotTo(HaveOccurred())
	})
})
