package plugins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest represents manifest.json / manifest.yaml structure
type Manifest struct {
	Identity    ManifestIdentity `json:"identity" yaml:"identity"`
	DisplayName string           `json:"display_name" yaml:"display_name" validate:"required,max=100"`
	Description string           `json:"description" yaml:"description" validate:"required,max=1000"`
	Owners      []Owner          `json:"owners" yaml:"owners" validate:"required,min=1,dive"`
	ProjectURL  string           `json:"project_url,omitempty" yaml:"project_url,omitempty" validate:"omitempty,url"`
	SDKVersion  string           `json:"sdk_version" yaml:"sdk_version" validate:"required,semver"`
}

// ManifestIdentity is the identity block of a manifest
type ManifestIdentity struct {
	ID      string `json:"id" yaml:"id" validate:"required,max=200"`
	Version string `json:"version" yaml:"version" validate:"required,semver"`
}

// Owner describes a person or team owning the plugin
type Owner struct {
	Name           string   `json:"name" yaml:"name" validate:"required"`
	Address        string   `json:"address,omitempty" yaml:"address,omitempty"`
	EmailAddresses []string `json:"email_addresses,omitempty" yaml:"email_addresses,omitempty" validate:"omitempty,dive,email"`
	PhoneNumbers   []string `json:"phone_numbers,omitempty" yaml:"phone_numbers,omitempty"`
}

// ManifestFileNames lists the accepted manifest file names in lookup order
var ManifestFileNames = []string{"manifest.json", "manifest.yaml", "manifest.yml"}

// LoadManifest reads and decodes a manifest file. The format is chosen by extension.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest *Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		manifest, err = DecodeManifestYAML(data)
	default:
		manifest, err = DecodeManifestJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return manifest, nil
}

// DecodeManifestJSON decodes a JSON manifest
func DecodeManifestJSON(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeManifestYAML decodes a YAML manifest
func DecodeManifestYAML(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// AvailableAt converts the manifest into the AvailablePlugin it describes at src.
func (m *Manifest) AvailableAt(src Source, manifestURI, packageURI string) AvailablePlugin {
	return AvailablePlugin{
		Identity:    NewIdentity(m.Identity.ID, m.DisplayName),
		Version:     m.Identity.Version,
		DisplayName: m.DisplayName,
		Description: m.Description,
		Source:      src,
		PackageURI:  packageURI,
		ManifestURI: manifestURI,
	}
}
