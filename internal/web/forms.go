// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/reconweb/internal/engine"
)

// Form failures.
const (
	codeFormMalformed  = "FORM_MALFORMED"
	codeFormIncomplete = "FORM_INCOMPLETE"
	codeFormMismatch   = "FORM_MISMATCH"
)

// maxFormBytes bounds urlencoded request bodies.
const maxFormBytes = 64 << 10

func parseForm(w http.ResponseWriter, r *http.Request) error {
	if r.Body != nil && w != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	}
	if err := r.ParseForm(); err != nil {
		return oops.Code(codeFormMalformed).Wrap(err)
	}
	return nil
}

func missing(field string) error {
	return oops.Code(codeFormIncomplete).With("field", field).Errorf("%s is required", field)
}

type loginForm struct {
	Username string
	Password string
}

// parseLoginForm requires both fields.
func parseLoginForm(r *http.Request) (loginForm, error) {
	f := loginForm{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	switch {
	case f.Username == "":
		return f, missing("username")
	case f.Password == "":
		return f, missing("password")
	}
	return f, nil
}

type addUserForm struct {
	Username string
	Password string
}

func parseAddUserForm(r *http.Request) (addUserForm, error) {
	f := addUserForm{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	switch {
	case f.Username == "":
		return f, missing("username")
	case f.Password == "":
		return f, missing("password")
	}
	return f, nil
}

type changePasswordForm struct {
	Password string
}

// parseChangePasswordForm requires passwd and a matching cpasswd.
func parseChangePasswordForm(r *http.Request) (changePasswordForm, error) {
	password := r.PostForm.Get("passwd")
	confirm := r.PostForm.Get("cpasswd")
	switch {
	case password == "":
		return changePasswordForm{}, missing("passwd")
	case confirm == "":
		return changePasswordForm{}, missing("cpasswd")
	case password != confirm:
		return changePasswordForm{}, oops.Code(codeFormMismatch).
			With("field", "cpasswd").
			Errorf("passwords do not match")
	}
	return changePasswordForm{Password: password}, nil
}

// apiKeysForm is the API key editor. Each existing key is posted under its
// own name, with "<name>_deleted" set when the delete box is ticked.
type apiKeysForm struct {
	values   map[string][]string
	NewName  string
	NewValue string
}

func parseAPIKeysForm(r *http.Request) apiKeysForm {
	return apiKeysForm{
		values:   r.PostForm,
		NewName:  r.PostForm.Get("new_key_name"),
		NewValue: r.PostForm.Get("new_key_value"),
	}
}

func (f apiKeysForm) get(name string) string {
	if v := f.values[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// keyChange is one edit to apply to the engine.
type keyChange struct {
	Name   string
	Value  string
	Remove bool
}

// changes compares the form with the keys it was rendered from. Deletion
// wins over an edited value, and an empty value leaves the key alone.
func (f apiKeysForm) changes(existing []engine.APIKey) []keyChange {
	var out []keyChange
	for _, key := range existing {
		if f.get(key.Name+"_deleted") != "" {
			out = append(out, keyChange{Name: key.Name, Remove: true})
			continue
		}
		if v := f.get(key.Name); v != "" && v != key.Value {
			out = append(out, keyChange{Name: key.Name, Value: v})
		}
	}
	return out
}

// addition reports the new key to create, if both its fields were filled.
func (f apiKeysForm) addition() (engine.APIKey, bool) {
	if f.NewName == "" || f.NewValue == "" {
		return engine.APIKey{}, false
	}
	return engine.APIKey{Name: f.NewName, Value: f.NewValue}, true
}
