// Package manifest loads the YAML package manifest and turns its entries
// into installer requests.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/c9install/internal/arch"
	"github.com/blackwell-systems/c9install/internal/installer"
)

// ErrUnknownPackage is returned when a requested package is not in the
// manifest.
var ErrUnknownPackage = errors.New("manifest: unknown package")

// Manifest lists the packages that can be installed.
type Manifest struct {
	Packages []Package `yaml:"packages"`
}

// Package is one installable package.
type Package struct {
	Name         string `yaml:"name"`
	Version      int    `yaml:"version"`
	Introduction string `yaml:"introduction,omitempty"`
	PreInstall   string `yaml:"preInstall,omitempty"`
	PostInstall  string `yaml:"postInstall,omitempty"`
	Tasks        []Task `yaml:"tasks"`
}

// Task is one install step. Arch and OS restrict the platforms it applies
// to; empty means all.
type Task struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Manager     string         `yaml:"manager"`
	Optional    bool           `yaml:"optional,omitempty"`
	Checked     *bool          `yaml:"checked,omitempty"`
	Arch        []string       `yaml:"arch,omitempty"`
	OS          []string       `yaml:"os,omitempty"`
	Options     map[string]any `yaml:"options,omitempty"`
}

// Parse decodes and validates a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("manifest: payload is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return m, nil
}

// Validate checks names, versions and selectors.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool)
	for i, p := range m.Packages {
		name := p.Name
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("manifest: package %d has no name", i)
		}
		if name != strings.TrimSpace(name) || strings.ContainsAny(name, "\r\n") {
			return fmt.Errorf("manifest: package %q: name has surrounding whitespace or a line break", name)
		}
		if seen[name] {
			return fmt.Errorf("manifest: duplicate package %q", name)
		}
		seen[name] = true
		if p.Version < 1 {
			return fmt.Errorf("manifest: package %q: version must be a positive integer", name)
		}
		for j, t := range p.Tasks {
			if t.Manager == "" {
				return fmt.Errorf("manifest: package %q task %d: manager is required", name, j)
			}
			for _, a := range t.Arch {
				if a != string(arch.X64) && a != string(arch.X86) {
					return fmt.Errorf("manifest: package %q task %d: unknown arch %q", name, j, a)
				}
			}
		}
	}
	return nil
}

// Lookup returns the package named name.
func (m *Manifest) Lookup(name string) (*Package, bool) {
	for i := range m.Packages {
		if m.Packages[i].Name == name {
			return &m.Packages[i], true
		}
	}
	return nil, false
}

// Names returns package names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Packages))
	for i, p := range m.Packages {
		names[i] = p.Name
	}
	return names
}

// Requests builds installer requests for the named packages, or for every
// package when names is empty. Requests follow the order of names.
func (m *Manifest) Requests(names ...string) ([]installer.Request, error) {
	if len(names) == 0 {
		names = m.Names()
	}
	reqs := make([]installer.Request, 0, len(names))
	for _, name := range names {
		p, ok := m.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, name)
		}
		reqs = append(reqs, p.Request())
	}
	return reqs, nil
}

// Request returns an installer request for p.
func (p *Package) Request() installer.Request {
	return installer.Request{
		Name:     p.Name,
		Version:  p.Version,
		Populate: p.Populator(),
	}
}

// Populator returns a populator adding the tasks that apply to the
// platform. It fails if the package has tasks but none apply.
func (p *Package) Populator() installer.Populator {
	pkg := *p
	return func(platform installer.Platform, out *installer.Populated) error {
		out.SetIntroduction(pkg.Introduction)
		out.SetPreInstallScript(pkg.PreInstall)
		out.SetPostInstallScript(pkg.PostInstall)

		added := 0
		for _, t := range pkg.Tasks {
			if !t.matches(platform) {
				continue
			}
			out.AddTask(t.task())
			added++
		}
		if len(pkg.Tasks) > 0 && added == 0 {
			return fmt.Errorf("no tasks for %s/%s", platform.OS, platform.Arch)
		}
		return nil
	}
}

func (t Task) matches(platform installer.Platform) bool {
	return selects(t.Arch, string(platform.Arch)) && selects(t.OS, platform.OS)
}

func selects(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// task returns a fresh installer task so sessions never share selection
// state.
func (t Task) task() *installer.Task {
	checked := installer.Checked
	if t.Checked != nil && !*t.Checked {
		checked = installer.Unchecked
	}
	opts := make(map[string]any, len(t.Options))
	for k, v := range t.Options {
		opts[k] = v
	}
	return &installer.Task{
		Name:        t.Name,
		Description: t.Description,
		Manager:     t.Manager,
		Options:     opts,
		Optional:    t.Optional,
		Checked:     checked,
	}
}
