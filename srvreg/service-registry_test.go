package srvreg

import (
	"net/http"
	"testing"

	"wms-package-engine/repository"
)

func TestMatchPath(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/package/:id", "/package/PKG-123", true},
		{"/package/:id", "/package/PKG-123/items", false},
		{"/package/:id/items", "/package/PKG-123/items", true},
		{"/package/:id/items", "/package/PKG-123/close", false},
		{"/package/:id/items/remove", "/package/PKG-123/items/remove", true},
		{"/consistency/:id/resolve", "/consistency/42/resolve", true},
		{"/pickcheck/:id", "/pickcheck/CHK-abc", true},
		{"/info", "/info", true},
		{"/info", "/package", false},
	}

	for _, tc := range cases {
		if got := matchPath(tc.pattern, tc.path); got != tc.want {
			t.Errorf("matchPath(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestGetHandlerForPathPrefersExactMatch(t *testing.T) {
	sr := NewServiceRegistry(nil, nil)

	var hit string
	sr.handlers = map[string]map[string]HandlerFunc{
		"POST": {
			"/pickcheck/start": func(req *Request) (*Response, error) {
				hit = "exact"
				return nil, nil
			},
			"/pickcheck/:id/items": func(req *Request) (*Response, error) {
				hit = "pattern"
				return nil, nil
			},
		},
	}

	handler, found := sr.GetHandlerForPath("POST", "/pickcheck/start")
	if !found {
		t.Fatal("expected handler for /pickcheck/start")
	}
	handler(&Request{})
	if hit != "exact" {
		t.Errorf("expected exact handler, got %s", hit)
	}

	handler, found = sr.GetHandlerForPath("POST", "/pickcheck/CHK-1/items")
	if !found {
		t.Fatal("expected handler for /pickcheck/CHK-1/items")
	}
	handler(&Request{})
	if hit != "pattern" {
		t.Errorf("expected pattern handler, got %s", hit)
	}

	if _, found := sr.GetHandlerForPath("DELETE", "/pickcheck/start"); found {
		t.Error("unregistered method must not resolve")
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{repository.ErrCodeNotFound, http.StatusNotFound},
		{repository.ErrCodeInvalidQuantity, http.StatusBadRequest},
		{repository.ErrCodeInsufficientQuantity, http.StatusBadRequest},
		{repository.ErrCodeInvalidState, http.StatusConflict},
		{repository.ErrCodeUniqueViolation, http.StatusConflict},
		{repository.ErrCodeSessionActive, http.StatusConflict},
		{repository.ErrCodeAdapterUnavailable, http.StatusBadGateway},
		{repository.ErrCodeDatabase, http.StatusInternalServerError},
		{repository.ErrCodeCommitFailed, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		err := &repository.RepositoryError{Code: tc.code}
		if got := statusForError(err); got != tc.want {
			t.Errorf("statusForError(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestPathSegment(t *testing.T) {
	if got := pathSegment("/package/PKG-1/items", 1); got != "PKG-1" {
		t.Errorf("expected PKG-1, got %q", got)
	}
	if got := pathSegment("/package", 1); got != "" {
		t.Errorf("expected empty segment, got %q", got)
	}
}
