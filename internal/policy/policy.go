// Package policy implements the layered allow/deny resolution and the
// shell-command risk classifier.
package policy

import "strings"

// Policy is one layer's allow/deny configuration. A nil Allow/Deny means
// "this layer does not configure the list" (inherit from the layer
// before it); a non-nil empty slice means "explicitly nothing".
type Policy struct {
	Allow []string
	Deny  []string
}

// GroupAliases expand a "group:name" token into its member tool names.
type GroupAliases map[string][]string

// DefaultGroupAliases mirrors the common filesystem/network tool groupings.
func DefaultGroupAliases() GroupAliases {
	return GroupAliases{
		"group:fs_read":  {"read_file", "list_dir", "glob", "grep"},
		"group:fs_write": {"write_file", "edit_file", "delete_file"},
		"group:net":      {"http_fetch", "websearch"},
		"group:shell":    {"bash", "exec"},
	}
}

// Resolver evaluates layered policies against group aliases.
type Resolver struct {
	Groups GroupAliases
}

// NewResolver builds a Resolver with the given group aliases. Passing nil
// uses DefaultGroupAliases.
func NewResolver(groups GroupAliases) *Resolver {
	if groups == nil {
		groups = DefaultGroupAliases()
	}
	return &Resolver{Groups: groups}
}

func (r *Resolver) expand(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if members, ok := r.Groups[n]; ok {
			out = append(out, members...)
			continue
		}
		out = append(out, n)
	}
	return out
}

// CanonicalName returns name unchanged; group aliases are expanded as a
// set, not renamed, so canonicalization is an identity op reserved for
// future alias normalization (e.g. case-folding).
func (r *Resolver) CanonicalName(name string) string { return name }

type allowSpec struct {
	configured bool
	all        bool
	set        map[string]bool
}

func (r *Resolver) parseAllow(list []string) allowSpec {
	if list == nil {
		return allowSpec{}
	}
	spec := allowSpec{configured: true, set: map[string]bool{}}
	for _, tok := range r.expand(list) {
		if tok == "*" {
			spec.all = true
			continue
		}
		spec.set[tok] = true
	}
	return spec
}

// Effective composes Global -> Agent -> Binding into one resolved policy
// decision function. Deny always wins; binding allow may only narrow
// whatever allow the agent layer left in effect.
type Effective struct {
	allow allowSpec
	deny  map[string]bool
}

// Resolve composes the three layers left-to-right.
func (r *Resolver) Resolve(global, agent, binding *Policy) *Effective {
	eff := &Effective{deny: map[string]bool{}}

	layers := []*Policy{global, agent, binding}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		for _, d := range r.expand(layer.Deny) {
			eff.deny[d] = true
		}
	}

	var current allowSpec
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		next := r.parseAllow(layer.Allow)
		if !next.configured {
			continue
		}
		switch {
		case !current.configured:
			current = next
		case current.all:
			// A subsequent explicit layer narrows a wildcard; a
			// subsequent wildcard layer cannot widen past an
			// already-narrowed set, so it only applies when
			// nothing has narrowed yet.
			current = next
		case next.all:
			// next says "allow everything" but current is already
			// an explicit narrower set: keep the narrower set.
		default:
			narrowed := map[string]bool{}
			for name := range current.set {
				if next.set[name] {
					narrowed[name] = true
				}
			}
			current = allowSpec{configured: true, set: narrowed}
		}
	}
	eff.allow = current
	return eff
}

// IsAllowed reports whether tool is permitted under the resolved policy:
// tool ∉ deny ∧ ("*" ∈ allow ∨ tool ∈ allow).
func (e *Effective) IsAllowed(tool string) bool {
	if e.deny[tool] {
		return false
	}
	if !e.allow.configured {
		return false
	}
	if e.allow.all {
		return true
	}
	return e.allow.set[tool]
}

// IsAllowed is a convenience one-shot resolve+check.
func (r *Resolver) IsAllowed(global, agent, binding *Policy, tool string) bool {
	return r.Resolve(global, agent, binding).IsAllowed(tool)
}

// NormalizeTool lower-cases and trims a tool name for pattern matching.
func NormalizeTool(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}
