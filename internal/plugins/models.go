package plugins

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SourceType tags the kind of locator a Source carries. Adapters report the
// tag they understand and are only offered sources carrying it.
type SourceType string

const (
	// SourceTypeURI marks sources whose locator is an absolute URI.
	SourceTypeURI SourceType = "uri"
)

var ErrInvalidSource = errors.New("invalid plugin source")

// Source is a location where plugins may be found. It is a comparable value
// and is used directly as a set key.
type Source struct {
	Type    SourceType `json:"type" yaml:"type"`
	Locator string     `json:"locator" yaml:"locator"`
}

// NewSource parses raw as an absolute URI source. Scheme and host are
// lowercased so that equal locators collapse in a set.
func NewSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, fmt.Errorf("%w: empty locator", ErrInvalidSource)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if u.Scheme == "" {
		return Source{}, fmt.Errorf("%w: %q has no scheme", ErrInvalidSource, raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	return Source{Type: SourceTypeURI, Locator: u.String()}, nil
}

// MustSource is NewSource for literals known to be valid.
func MustSource(raw string) Source {
	src, err := NewSource(raw)
	if err != nil {
		panic(err)
	}
	return src
}

// ParseSources parses every raw locator, failing on the first invalid one.
func ParseSources(raw []string) ([]Source, error) {
	sources := make([]Source, 0, len(raw))
	for _, r := range raw {
		src, err := NewSource(r)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// URL returns the parsed locator, or nil for non-URI sources.
func (s Source) URL() *url.URL {
	if s.Type != SourceTypeURI {
		return nil
	}
	u, err := url.Parse(s.Locator)
	if err != nil {
		return nil
	}
	return u
}

// Scheme returns the URI scheme, or "" for non-URI sources.
func (s Source) Scheme() string {
	if u := s.URL(); u != nil {
		return u.Scheme
	}
	return ""
}

// Host returns the URI authority used to select credentials.
func (s Source) Host() string {
	if u := s.URL(); u != nil {
		return u.Host
	}
	return ""
}

func (s Source) String() string {
	return s.Locator
}

// Identity identifies a plugin independently of its version.
type Identity struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// NewIdentity returns an Identity with the given id and display name.
func NewIdentity(id, name string) Identity {
	return Identity{ID: id, Name: name}
}

// Key is the case-insensitive comparison key of the identity.
func (i Identity) Key() string {
	return strings.ToLower(i.ID)
}

func (i Identity) String() string {
	if i.Name == "" {
		return i.ID
	}
	return fmt.Sprintf("%s (%s)", i.Name, i.ID)
}

// AvailablePlugin describes one discoverable plugin version.
type AvailablePlugin struct {
	Identity    Identity  `json:"identity"`
	Version     string    `json:"version"`
	DisplayName string    `json:"display_name,omitempty"`
	Description string    `json:"description,omitempty"`
	Source      Source    `json:"source"`
	PackageURI  string    `json:"package_uri,omitempty"`
	ManifestURI string    `json:"manifest_uri,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}
