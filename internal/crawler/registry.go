package crawler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Registry resolves a host to its profile. Profiles are tried in order and
// the generic profile answers for every host nothing else claims.
type Registry struct {
	profiles []*Profile
	generic  *Profile
}

// NewRegistry creates a registry from profiles, compiling each of them
func NewRegistry(generic *Profile, profiles ...*Profile) (*Registry, error) {
	if generic == nil {
		return nil, fmt.Errorf("registry needs a generic profile")
	}
	if err := generic.Compile(); err != nil {
		return nil, err
	}
	r := &Registry{generic: generic}
	for _, p := range profiles {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns the built-in eBay, 999.md and generic profiles
func DefaultRegistry() *Registry {
	r, err := NewRegistry(GenericProfile(), EbayProfile(), NineNineNineProfile())
	if err != nil {
		// built-in profiles are static data
		panic(err)
	}
	return r
}

// Add compiles p and places it ahead of the existing profiles
func (r *Registry) Add(p *Profile) error {
	if err := p.Compile(); err != nil {
		return err
	}
	r.profiles = append([]*Profile{p}, r.profiles...)
	return nil
}

// Resolve returns the first profile whose host predicate accepts host
func (r *Registry) Resolve(host string) *Profile {
	for _, p := range r.profiles {
		if len(p.Hosts) > 0 && p.MatchesHost(host) {
			return p
		}
	}
	return r.generic
}

// Profiles lists the registered profiles in resolution order, generic last
func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, 0, len(r.profiles)+1)
	out = append(out, r.profiles...)
	return append(out, r.generic)
}

type profileFile struct {
	Profiles []*Profile `yaml:"profiles"`
}

// LoadProfiles reads additional profiles from a YAML file into r.
// Loaded profiles take precedence over built-ins for the hosts they name.
func (r *Registry) LoadProfiles(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse profiles %s: %w", path, err)
	}

	for i := len(file.Profiles) - 1; i >= 0; i-- {
		p := file.Profiles[i]
		if len(p.Hosts) == 0 {
			return fmt.Errorf("profile %s in %s has no hosts", p.Name, path)
		}
		if err := r.Add(p); err != nil {
			return err
		}
	}
	return nil
}
