// Package credentials supplies discoverers with the credentials needed to
// reach protected plugin sources. Providers are handed to every adapter once,
// and an adapter binds the provider matching a source's authority lazily.
package credentials

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/pluginhub/pluginhub/internal/plugins"
)

// ErrNoCredential is returned when a provider has nothing for a source
var ErrNoCredential = errors.New("no credential for source")

const (
	SchemeBasic  = "Basic"
	SchemeBearer = "Bearer"
)

// Credential is an HTTP-style credential for one source authority
type Credential struct {
	Scheme   string `json:"scheme" yaml:"scheme"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Apply sets the Authorization header on req
func (c *Credential) Apply(req *http.Request) {
	if c == nil {
		return
	}
	switch c.Scheme {
	case SchemeBearer:
		req.Header.Set("Authorization", SchemeBearer+" "+c.Token)
	case SchemeBasic:
		raw := c.Username + ":" + c.Password
		req.Header.Set("Authorization", SchemeBasic+" "+base64.StdEncoding.EncodeToString([]byte(raw)))
	}
}

// Provider resolves credentials for plugin sources
type Provider interface {
	Name() string
	Supports(src plugins.Source) bool
	Credential(ctx context.Context, src plugins.Source) (*Credential, error)
}

// Select returns the first provider supporting src, or nil
func Select(providers []Provider, src plugins.Source) Provider {
	for _, p := range providers {
		if p.Supports(src) {
			return p
		}
	}
	return nil
}
