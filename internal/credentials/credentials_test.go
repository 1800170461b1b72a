package credentials

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

const testSecret = "12345678901234567890123456789012"

func TestCredentialApply(t *testing.T) {
	tests := []struct {
		name string
		cred *Credential
		want string
	}{
		{"bearer", &Credential{Scheme: SchemeBearer, Token: "abc"}, "Bearer abc"},
		{"basic", &Credential{Scheme: SchemeBasic, Username: "u", Password: "p"}, "Basic dTpw"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "http://example.com", nil)
			tt.cred.Apply(req)
			if got := req.Header.Get("Authorization"); got != tt.want {
				t.Errorf("Authorization = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider("static", map[string]Credential{
		"Index.Example.com": {Scheme: SchemeBearer, Token: "t"},
	})

	supported := plugins.MustSource("https://index.example.com/feed")
	other := plugins.MustSource("https://other.example.com")

	if !p.Supports(supported) {
		t.Error("expected host match to be case-insensitive")
	}
	if p.Supports(other) {
		t.Error("expected other host to be unsupported")
	}

	cred, err := p.Credential(context.Background(), supported)
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if cred.Token != "t" {
		t.Errorf("Token = %q, want t", cred.Token)
	}

	if _, err := p.Credential(context.Background(), other); !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
}

func TestVaultRoundTrip(t *testing.T) {
	entries := map[string]Credential{
		"mirror.example.com": {Scheme: SchemeBasic, Username: "svc", Password: "hunter2"},
	}

	sealed, err := Seal(entries, "correct horse")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if strings.Contains(string(sealed), "hunter2") {
		t.Fatal("sealed vault contains plaintext password")
	}

	path := filepath.Join(t.TempDir(), "vault.json")
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		t.Fatal(err)
	}

	vault, err := OpenVault("vault", path, "correct horse")
	if err != nil {
		t.Fatalf("OpenVault() error = %v", err)
	}

	src := plugins.MustSource("https://mirror.example.com/plugins")
	cred, err := vault.Credential(context.Background(), src)
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if cred.Password != "hunter2" {
		t.Errorf("Password = %q, want hunter2", cred.Password)
	}

	if _, err := OpenVault("vault", path, "wrong passphrase"); err == nil {
		t.Error("expected wrong passphrase to fail")
	}
}

func TestTokenProvider(t *testing.T) {
	if _, err := NewTokenProvider("short", "too-short", "svc", time.Minute, nil); err == nil {
		t.Fatal("expected short secret to be rejected")
	}

	p, err := NewTokenProvider("tokens", testSecret, "mirror-sync", time.Minute, []string{"hub.example.com"})
	if err != nil {
		t.Fatalf("NewTokenProvider() error = %v", err)
	}

	src := plugins.MustSource("https://hub.example.com")
	cred, err := p.Credential(context.Background(), src)
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if cred.Scheme != SchemeBearer {
		t.Errorf("Scheme = %q, want Bearer", cred.Scheme)
	}

	claims := &TokenClaims{}
	_, err = jwt.ParseWithClaims(cred.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	}, jwt.WithAudience("hub.example.com"))
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if claims.Username != "mirror-sync" {
		t.Errorf("Username = %q, want mirror-sync", claims.Username)
	}

	if _, err := p.Credential(context.Background(), plugins.MustSource("https://elsewhere")); !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
}

func TestSelect(t *testing.T) {
	a := NewStaticProvider("a", map[string]Credential{"a.example.com": {}})
	b := NewStaticProvider("b", map[string]Credential{"b.example.com": {}, "a.example.com": {}})
	providers := []Provider{a, b}

	if got := Select(providers, plugins.MustSource("https://a.example.com")); got != a {
		t.Errorf("expected first matching provider, got %v", got)
	}
	if got := Select(providers, plugins.MustSource("https://b.example.com")); got != b {
		t.Errorf("expected provider b, got %v", got)
	}
	if got := Select(providers, plugins.MustSource("https://c.example.com")); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
