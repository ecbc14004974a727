// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"context"
	"net/http"
	"net/url"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("ReconWeb", func() {
	var (
		h *harness
		b *browser
	)

	BeforeEach(func() {
		var err error
		h, err = newHarness()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(h.Close)
		b = h.newBrowser()
	})

	mustGet := func(path string) page {
		GinkgoHelper()
		p, err := b.Get(path)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	mustPost := func(path string, values url.Values) page {
		GinkgoHelper()
		p, err := b.Post(path, values)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	login := func(username, password string) {
		GinkgoHelper()
		p, err := b.Login(username, password)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Status).To(Equal(http.StatusFound))
		Expect(p.Location).To(Equal("/"))
	}

	Describe("superuser workflow", func() {
		It("adds a user, switches to it and logs out", func() {
			login(superuserName, superuserPassword)

			By("adding alice")
			p := mustPost("/add-user", url.Values{"username": {"alice"}, "password": {"pw1234"}})
			Expect(p.Status).To(Equal(http.StatusFound))
			Expect(p.Location).To(Equal("/users"))

			By("listing users")
			p = mustGet("/users")
			Expect(p.Status).To(Equal(http.StatusOK))
			Expect(p.Body).To(ContainSubstring(">alice<"))
			Expect(p.Body).To(ContainSubstring("User successfully added."))

			By("switching to alice")
			p = mustGet("/switch-user/" + h.userID("alice"))
			Expect(p.Location).To(Equal("/"))

			st, err := b.state()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Username).To(Equal("alice"))

			p = mustGet("/recon-ng/cli")
			Expect(p.Status).To(Equal(http.StatusOK))
			Expect(p.Body).To(ContainSubstring(`<span id="active-user">alice</span>`))

			By("logging out")
			p = mustGet("/logout")
			Expect(p.Location).To(Equal("/login"))

			st, err = b.state()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Authed).To(BeFalse())
			Expect(st.Username).To(BeEmpty())
			Expect(st.Superuser).To(BeFalse())

			p = mustGet("/")
			Expect(p.Status).To(Equal(http.StatusFound))
			Expect(p.Location).To(Equal("/login"))
		})
	})

	Describe("user management as a regular user", func() {
		BeforeEach(func() {
			_, err := h.users.CreateUser(context.Background(), "bob", "pw")
			Expect(err).NotTo(HaveOccurred())
			login("bob", "pw")
		})

		DescribeTable("is hidden",
			func(path func() string) {
				Expect(mustGet(path()).Status).To(Equal(http.StatusNotFound))
			},
			Entry("list", func() string { return "/users" }),
			Entry("add", func() string { return "/add-user" }),
			Entry("switch", func() string { return "/switch-user/" + h.userID(superuserName) }),
			Entry("delete", func() string { return "/delete-user/" + h.userID(superuserName) }),
		)
	})

	Describe("a corrupted token", func() {
		BeforeEach(func() {
			login(superuserName, superuserPassword)
			Expect(b.corruptToken("not-a-token")).To(Succeed())
		})

		It("forces a logout with a notice", func() {
			p := mustGet("/recon-ng/api-keys")
			Expect(p.Status).To(Equal(http.StatusFound))
			Expect(p.Location).To(Equal("/login"))

			st, err := b.state()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Authed).To(BeFalse())

			p = mustGet("/login")
			Expect(p.Status).To(Equal(http.StatusOK))
			Expect(p.Body).To(ContainSubstring("Token expired. Please log in again."))
			Expect(h.engine.Calls()).To(BeEmpty(), "the request is discarded")
		})

		It("does not block logout", func() {
			p := mustGet("/logout")
			Expect(p.Location).To(Equal("/login"))
			Expect(mustGet("/login").Body).To(ContainSubstring("Logged out successfully."))
		})
	})
})
