package resolver

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/importcost/internal/types"
)

// Externals returns the full set of module-specifier glob patterns the sizer
// should mark external when bundling the synthetic entry for info's package:
// its peer dependencies (never bundle a host app's own React/Vue), its
// declared importCost.externals patterns, and the Node.js builtin list.
func Externals(info *types.PackageInfo) []string {
	patterns := make([]string, 0, len(info.PeerDependencies)+len(info.MainExternals)+len(nodeBuiltins))
	for name := range info.PeerDependencies {
		patterns = append(patterns, name)
	}
	for pattern := range info.MainExternals {
		patterns = append(patterns, pattern)
	}
	for name := range nodeBuiltins {
		patterns = append(patterns, name)
	}
	return patterns
}

// MatchesExternal reports whether specifier matches any of patterns, which
// may be exact package names or doublestar globs (the convention
// importCost.externals entries like "*.css" rely on).
func MatchesExternal(patterns []string, specifier string) bool {
	for _, pattern := range patterns {
		if pattern == specifier {
			return true
		}
		if ok, err := doublestar.Match(pattern, specifier); err == nil && ok {
			return true
		}
	}
	return false
}
