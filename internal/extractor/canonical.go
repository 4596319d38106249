package extractor

import (
	"sort"
	"strings"
)

// kind distinguishes the surface syntax an import was written with. Bundling
// treats all three as "pull in this module", but the canonical string keeps
// them apart so a CommonJS require and an ES import aren't conflated.
type kind int

const (
	kindESM kind = iota
	kindRequire
	kindDynamic
)

// binding describes one imported name: a default import, a namespace import,
// or one named specifier. Local aliases never affect bundle size, so only the
// imported name is kept.
type binding struct {
	isDefault   bool
	isNamespace bool
	name        string // imported name, for named specifiers
}

// canonicalize builds the re-materialized import statement string used as the
// sizing entry's body and as the cache/fingerprint key. Two clauses importing
// the same specifier with the same set of imported names, irrespective of
// local aliasing or ordering, produce byte-identical output.
func canonicalize(k kind, specifier, clauseText string) string {
	switch k {
	case kindRequire:
		return `const _default = require("` + specifier + `");`
	case kindDynamic:
		return `import("` + specifier + `");`
	default:
		return canonicalizeESM(specifier, clauseText)
	}
}

func canonicalizeESM(specifier, clauseText string) string {
	clauseText = strings.TrimSpace(clauseText)
	if clauseText == "" {
		return `import "` + specifier + `";`
	}

	bindings := parseClause(clauseText)
	if len(bindings) == 0 {
		return `import "` + specifier + `";`
	}

	var hasDefault, hasNamespace bool
	var named []string
	for _, b := range bindings {
		switch {
		case b.isDefault:
			hasDefault = true
		case b.isNamespace:
			hasNamespace = true
		default:
			named = append(named, b.name)
		}
	}
	sort.Strings(named)

	var parts []string
	if hasDefault {
		parts = append(parts, "_default")
	}
	if hasNamespace {
		parts = append(parts, "* as _ns")
	}
	if len(named) > 0 {
		parts = append(parts, "{ "+strings.Join(named, ", ")+" }")
	}

	return `import ` + strings.Join(parts, ", ") + ` from "` + specifier + `";`
}

// parseClause splits a raw import_clause source slice (everything between
// "import" and "from") into its bindings. The clause is guaranteed
// syntactically valid since the file already parsed without error, so a
// simple top-level comma split (outside of "{ ... }") is sufficient: JS
// grammar allows at most "Default", "* as NS", "{ named, ... }", or
// "Default, * as NS" / "Default, { named, ... }".
func parseClause(clauseText string) []binding {
	parts := splitTopLevel(clauseText)
	var bindings []binding
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch {
		case strings.HasPrefix(part, "*"):
			bindings = append(bindings, binding{isNamespace: true})
		case strings.HasPrefix(part, "{"):
			inner := strings.TrimSuffix(strings.TrimPrefix(part, "{"), "}")
			for _, spec := range strings.Split(inner, ",") {
				spec = strings.Join(strings.Fields(spec), " ")
				if spec == "" {
					continue
				}
				name := spec
				if idx := strings.Index(spec, " as "); idx >= 0 {
					name = strings.TrimSpace(spec[:idx])
				}
				bindings = append(bindings, binding{name: name})
			}
		default:
			bindings = append(bindings, binding{isDefault: true})
		}
	}
	return bindings
}

// splitTopLevel splits on commas that are not nested inside braces.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
