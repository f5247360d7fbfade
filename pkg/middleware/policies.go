package middleware

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry holds the named policies wired at startup. It is built once,
// injected into whatever needs it, and never mutated afterwards.
type Registry struct {
	policies map[string]Policy
}

// NewRegistry indexes the given policies by name
func NewRegistry(policies []Policy) *Registry {
	m := make(map[string]Policy, len(policies))
	for _, p := range policies {
		m[p.Name] = p
	}
	return &Registry{policies: m}
}

// Get looks up a policy by name
func (r *Registry) Get(name string) (Policy, bool) {
	p, ok := r.policies[name]
	return p, ok
}

// MustGet looks up a policy by name and panics if absent. Intended for
// startup wiring, where a missing policy is a programming error.
func (r *Registry) MustGet(name string) Policy {
	p, ok := r.policies[name]
	if !ok {
		panic(fmt.Sprintf("rate limit policy %q is not registered", name))
	}
	return p
}

// Names returns the registered policy names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultPolicies returns the built-in policy set for the marketplace
// API. Window and quota overrides come from ApplyOverrides; key
// functions and skip predicates are code, not configuration.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			Name:        "global",
			Window:      15 * time.Minute,
			MaxRequests: 1000,
			Message:     "Too many requests from this IP, please try again later.",
			KeyFunc:     IPKey,
		},
		{
			Name:        "api",
			Window:      time.Minute,
			MaxRequests: 60,
			Message:     "API rate limit exceeded, please slow down.",
			KeyFunc:     IPKey,
		},
		{
			Name:        "auth",
			Window:      15 * time.Minute,
			MaxRequests: 5,
			Message:     "Too many authentication attempts, please try again later.",
			KeyFunc:     IPKey,
			// Successful logins were meant not to count against the
			// quota; see the SkipSuccessful doc on Policy.
			SkipSuccessful: true,
		},
		{
			Name:        "user",
			Window:      time.Minute,
			MaxRequests: 100,
			Message:     "Too many requests, please slow down.",
			KeyFunc:     UserKey,
		},
		{
			Name:        "booking",
			Window:      time.Minute,
			MaxRequests: 5,
			Message:     "Too many booking requests, please wait before trying again.",
			KeyFunc:     UserKey,
		},
		{
			Name:        "emergency",
			Window:      time.Minute,
			MaxRequests: 10,
			Message:     "Too many emergency requests.",
			KeyFunc:     UserKey,
		},
		{
			Name:        "upload",
			Window:      time.Minute,
			MaxRequests: 10,
			Message:     "Too many uploads, please wait before trying again.",
			KeyFunc:     UserKey,
		},
		{
			Name:        "admin",
			Window:      time.Minute,
			MaxRequests: 200,
			Message:     "Admin API rate limit exceeded.",
			KeyFunc:     UserKey,
			// Non-admin traffic on admin routes is rejected by the role
			// guard; counting it here would let anonymous probes burn
			// an admin's quota.
			Skip: func(r *http.Request) bool {
				authCtx := GetAuthContext(r)
				return authCtx == nil || !authCtx.Role.AdminTier()
			},
		},
	}
}

// PolicyOverride adjusts one named policy's window, quota, or message
// from configuration. Key functions and predicates are not overridable.
type PolicyOverride struct {
	Window      Duration `yaml:"window"`
	MaxRequests int      `yaml:"max_requests"`
	Message     string   `yaml:"message"`
}

// Duration wraps time.Duration for YAML decoding in Go syntax ("15m")
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadOverrides reads a policy override file. The file maps policy name
// to override; unnamed policies keep their defaults.
func LoadOverrides(path string) (map[string]PolicyOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy overrides: %w", err)
	}
	var overrides map[string]PolicyOverride
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing policy overrides: %w", err)
	}
	for name := range overrides {
		if o := overrides[name]; o.MaxRequests < 0 {
			return nil, fmt.Errorf("policy %q: max_requests must not be negative", name)
		}
	}
	return overrides, nil
}

// ApplyOverrides returns a copy of policies with the overrides applied.
// Overrides naming an unknown policy are rejected so typos fail loudly
// at startup.
func ApplyOverrides(policies []Policy, overrides map[string]PolicyOverride) ([]Policy, error) {
	byName := make(map[string]int, len(policies))
	for i, p := range policies {
		byName[p.Name] = i
	}

	out := make([]Policy, len(policies))
	copy(out, policies)

	for name, o := range overrides {
		i, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("override names unknown policy %q", name)
		}
		if o.Window > 0 {
			out[i].Window = time.Duration(o.Window)
		}
		if o.MaxRequests > 0 {
			out[i].MaxRequests = o.MaxRequests
		}
		if o.Message != "" {
			out[i].Message = o.Message
		}
	}
	return out, nil
}
