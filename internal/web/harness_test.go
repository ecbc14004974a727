// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/holomush/reconweb/internal/auth"
	"github.com/holomush/reconweb/internal/auth/authtest"
	"github.com/holomush/reconweb/internal/engine"
	"github.com/holomush/reconweb/internal/observability"
	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/internal/web"
)

const (
	superuserName     = "admin"
	superuserPassword = "hunter2"
	cookieName        = "reconweb_session"
	tokenSecret       = "0123456789abcdef0123456789abcdef"
)

var fastParams = auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

// fakeEngine records calls and serves canned data.
type fakeEngine struct {
	mu      sync.Mutex
	keys    []engine.APIKey
	modules []engine.Module
	reloads int
	calls   []string
	err     error
}

func (f *fakeEngine) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeEngine) APIKeys(context.Context) ([]engine.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("api_keys"); err != nil {
		return nil, err
	}
	return append([]engine.APIKey(nil), f.keys...), nil
}

func (f *fakeEngine) AddAPIKey(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("add:" + name); err != nil {
		return err
	}
	for i := range f.keys {
		if f.keys[i].Name == name {
			f.keys[i].Value = value
			return nil
		}
	}
	f.keys = append(f.keys, engine.APIKey{Name: name, Value: value})
	return nil
}

func (f *fakeEngine) RemoveAPIKey(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("remove:" + name); err != nil {
		return err
	}
	for i := range f.keys {
		if f.keys[i].Name == name {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeEngine) ModulesIndex(context.Context) ([]engine.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("modules_index"); err != nil {
		return nil, err
	}
	return append([]engine.Module(nil), f.modules...), nil
}

func (f *fakeEngine) Reload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("reload"); err != nil {
		return err
	}
	f.reloads++
	return nil
}

func (f *fakeEngine) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var errEngineDown = errors.New("engine down")

// harness is a running ReconWeb with in-memory stores and a fake engine.
type harness struct {
	repo     *authtest.UserRepository
	users    *auth.Service
	tokens   *auth.TokenService
	sessions *session.MemoryStore
	engine   *fakeEngine
	metrics  *observability.Metrics
	server   *httptest.Server
}

func newHarness() (*harness, error) {
	logger := slog.New(slog.DiscardHandler)
	repo := authtest.NewUserRepository()
	users, err := auth.NewServiceWithLogger(repo, auth.NewArgon2idHasherWithParams(fastParams), superuserName, logger)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(repo, []byte(tokenSecret), time.Hour)
	if err != nil {
		return nil, err
	}
	store := session.NewMemoryStore()
	manager, err := session.NewManager(store, session.ManagerConfig{CookieName: cookieName, TTL: time.Hour})
	if err != nil {
		return nil, err
	}
	eng := &fakeEngine{
		keys: []engine.APIKey{{Name: "shodan_api", Value: "s1"}},
		modules: []engine.Module{
			{Path: "recon/hosts-hosts/resolve", Name: "Hostname Resolver", Version: "1.0", Status: engine.StatusInstalled},
			{Path: "discovery/info_disclosure/interesting_files", Name: "Interesting File Finder", Version: "1.1", Status: engine.StatusNotInstalled},
			{Path: "recon/domains-hosts/hackertarget", Name: "HackerTarget Lookup", Version: "1.1", Status: engine.StatusNotInstalled},
		},
	}
	metrics := observability.NewMetrics(observability.NewRegistry())

	srv, err := web.NewServer(web.Deps{
		Users:    users,
		Tokens:   tokens,
		Sessions: manager,
		Engine:   eng,
		Recorder: metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	if _, err := users.CreateUser(context.Background(), superuserName, superuserPassword); err != nil {
		return nil, err
	}

	return &harness{
		repo:     repo,
		users:    users,
		tokens:   tokens,
		sessions: store,
		engine:   eng,
		metrics:  metrics,
		server:   httptest.NewServer(srv.Handler()),
	}, nil
}

func (h *harness) Close() {
	h.server.Close()
}

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	h      *harness
	client *http.Client
}

func (h *harness) newBrowser() *browser {
	jar, err := cookiejar.New(nil)
	if err != nil {
		panic(err)
	}
	return &browser{
		h: h,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// page is a fetched response with its body read.
type page struct {
	Status   int
	Location string
	Body     string
}

func (b *browser) do(req *http.Request) (page, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return page{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return page{}, err
	}
	return page{Status: resp.StatusCode, Location: resp.Header.Get("Location"), Body: string(body)}, nil
}

func (b *browser) Get(path string) (page, error) {
	req, err := http.NewRequest(http.MethodGet, b.h.server.URL+path, nil)
	if err != nil {
		return page{}, err
	}
	return b.do(req)
}

func (b *browser) GetWithReferer(path, referer string) (page, error) {
	req, err := http.NewRequest(http.MethodGet, b.h.server.URL+path, nil)
	if err != nil {
		return page{}, err
	}
	req.Header.Set("Referer", referer)
	return b.do(req)
}

func (b *browser) Post(path string, values url.Values) (page, error) {
	req, err := http.NewRequest(http.MethodPost, b.h.server.URL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return page{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) Login(username, password string) (page, error) {
	return b.Post("/login", url.Values{"username": {username}, "password": {password}})
}

// sessionCookie returns the current session cookie value, or "".
func (b *browser) sessionCookie() string {
	u, err := url.Parse(b.h.server.URL)
	if err != nil {
		panic(err)
	}
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == cookieName {
			return c.Value
		}
	}
	return ""
}

// state reads the server-side session behind the browser's cookie.
func (b *browser) state() (session.State, error) {
	return b.h.sessions.Get(context.Background(), session.HashKey(b.sessionCookie()))
}

// corruptToken overwrites the token stored in the browser's session.
func (b *browser) corruptToken(token string) error {
	ctx := context.Background()
	key := session.HashKey(b.sessionCookie())
	st, err := b.h.sessions.Get(ctx, key)
	if err != nil {
		return err
	}
	st.Token = token
	return b.h.sessions.Put(ctx, key, st, time.Hour)
}

// userID returns the id of username as shown in URLs.
func (h *harness) userID(username string) string {
	u, err := h.repo.GetByUsername(context.Background(), username)
	if err != nil {
		panic(err)
	}
	return u.ID.String()
}
