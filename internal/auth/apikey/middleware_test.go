package apikey

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeValidator struct {
	keys map[string]*KeyInfo
	err  error
}

func (f *fakeValidator) Validate(_ context.Context, rawKey string) (*KeyInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.keys[rawKey]
	if !ok {
		return nil, ErrInvalidKey
	}
	return info, nil
}

func TestRequire(t *testing.T) {
	valid := &fakeValidator{keys: map[string]*KeyInfo{"mr_good": {ID: "k1", Name: "importer"}}}

	tests := []struct {
		name      string
		validator Validator
		header    string
		value     string
		want      int
	}{
		{"bearer", valid, "Authorization", "Bearer mr_good", http.StatusOK},
		{"x-api-key", valid, "X-API-Key", "mr_good", http.StatusOK},
		{"missing", valid, "", "", http.StatusUnauthorized},
		{"unknown", valid, "X-API-Key", "mr_bad", http.StatusUnauthorized},
		{"expired", &fakeValidator{err: ErrExpiredKey}, "X-API-Key", "mr_good", http.StatusUnauthorized},
		{"store down", &fakeValidator{err: errors.New("connection refused")}, "X-API-Key", "mr_good", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *KeyInfo
			h := Require(tt.validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = FromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/movies", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && (seen == nil || seen.ID != "k1") {
				t.Errorf("key info in context = %+v, want k1", seen)
			}
		})
	}
}

func TestHashKey(t *testing.T) {
	if HashKey("a") == HashKey("b") {
		t.Error("distinct keys hashed equal")
	}
	if got := len(HashKey("mr_x")); got != 64 {
		t.Errorf("hash length = %d, want 64", got)
	}
	raw, err := generateRawKey()
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != len("mr_")+64 {
		t.Errorf("raw key length = %d", len(raw))
	}
}
