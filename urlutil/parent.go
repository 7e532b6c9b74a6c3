package urlutil

import "strings"

// UnderParent reports whether candidate's directory prefix is at or
// below one of the seed directory prefixes on the same (scheme, host,
// port). This backs the --no-parent rule.
func UnderParent(candidate *IRI, seedDirs []*IRI) bool {
	for _, seed := range seedDirs {
		if candidate.Scheme != seed.Scheme || candidate.Host != seed.Host || candidate.EffectivePort() != seed.EffectivePort() {
			continue
		}
		if strings.HasPrefix(candidate.Path, seed.DirPrefix()) {
			return true
		}
	}
	return false
}
