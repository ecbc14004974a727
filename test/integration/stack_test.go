// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/internal/store"
)

var _ = Describe("Schema", func() {
	It("reports every embedded migration as applied", func() {
		m, err := store.NewMigrator(env.connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = m.Close() }()

		st, err := m.Status()
		Expect(err).NotTo(HaveOccurred())
		all, err := store.MigrationVersions()
		Expect(err).NotTo(HaveOccurred())

		Expect(st.Dirty).To(BeFalse())
		Expect(st.Applied).To(Equal(all))
		Expect(st.Pending).To(BeEmpty())
	})
})

var _ = Describe("Signed-in workflow against PostgreSQL", func() {
	var b *browser

	BeforeEach(func() {
		b = newBrowser()
		p := b.login(superuserName, superuserPassword)
		Expect(p.Status).To(Equal(http.StatusFound))
		Expect(p.Location).To(Equal("/"))
	})

	It("persists the rotating token and keeps the session usable", func() {
		before, err := env.users.ListUsers(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		var firstHash string
		for _, u := range before {
			if u.Username == superuserName {
				firstHash = u.TokenHash
			}
		}
		Expect(firstHash).NotTo(BeEmpty())

		for range 3 {
			Expect(b.get("/recon-ng/cli").Status).To(Equal(http.StatusOK))
		}

		after, err := env.users.ListUsers(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, u := range after {
			if u.Username == superuserName {
				Expect(u.TokenHash).NotTo(Equal(firstHash))
			}
		}
	})

	It("logs the first browser out when a second one signs in", func() {
		other := newBrowser()
		Expect(other.login(superuserName, superuserPassword).Status).To(Equal(http.StatusFound))

		p := b.get("/recon-ng/cli")
		Expect(p.Status).To(Equal(http.StatusFound))
		Expect(p.Location).To(Equal("/login"))

		Expect(b.get("/login").Body).To(ContainSubstring("Token expired. Please log in again."))
		Expect(other.get("/recon-ng/cli").Status).To(Equal(http.StatusOK))
	})

	It("updates engine API keys through the real client", func() {
		p := b.post("/recon-ng/api-keys", url.Values{
			"shodan_api":    {"s2"},
			"new_key_name":  {"bing_api"},
			"new_key_value": {"b1"},
		})
		Expect(p.Status).To(Equal(http.StatusOK))

		v, ok := env.engine.key("shodan_api")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("s2"))
		v, ok = env.engine.key("bing_api")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("b1"))
	})

	It("lists marketplace modules from the engine", func() {
		p := b.get("/recon-ng/marketplace")
		Expect(p.Status).To(Equal(http.StatusOK))
		Expect(p.Body).To(ContainSubstring("recon/hosts-hosts/resolve"))
		Expect(p.Body).To(ContainSubstring("discovery/info_disclosure/interesting_files"))
	})

	It("adds and deletes a user", func() {
		p := b.post("/add-user", url.Values{"username": {"dave"}, "password": {"pw"}})
		Expect(p.Status).To(Equal(http.StatusFound))
		Expect(p.Location).To(Equal("/users"))

		users, err := env.users.ListUsers(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		var id string
		for _, u := range users {
			if u.Username == "dave" {
				id = u.ID.String()
			}
		}
		Expect(id).NotTo(BeEmpty())

		p = b.get("/delete-user/" + id)
		Expect(p.Status).To(Equal(http.StatusFound))
		Expect(b.get("/users").Body).To(ContainSubstring("User successfully deleted."))
		Expect(b.get("/delete-user/" + id).Status).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("PostgreSQL session store", func() {
	It("drops expired rows on sweep", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		key := session.HashKey("expiring-cookie")
		Expect(env.sessions.Put(ctx, key, session.State{Username: "ghost"}, time.Millisecond)).To(Succeed())
		time.Sleep(20 * time.Millisecond)

		_, err := env.sessions.Get(ctx, key)
		Expect(err).To(MatchError(session.ErrNotFound))

		n, err := env.sessions.DeleteExpired(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">=", 1))
	})
})
