package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Key derives the settings key: per setting, the first 16 hex characters of
// SHA-256 over name plus value literal, fragments joined with ":" in
// lexicographic name order. Two settings mappings produce the same key iff
// they hold the same key/value pairs; insertion order does not contribute.
//
// An earlier revision of this scheme abbreviated each setting to its initials
// plus the value literal. That variant reads better in a file browser but
// collides for differently named settings sharing initials, so the hashed
// form is used throughout.
func Key(settings Settings) string {
	return strings.Join(KeyFragments(settings), ":")
}

// KeyFragments returns the individual per-setting hash fragments in
// lexicographic name order. Filters compare stored keys fragment-wise against
// fragments derived from partial settings.
func KeyFragments(settings Settings) []string {
	names := settings.Keys()
	sort.Strings(names)
	fragments := make([]string, 0, len(names))
	for _, name := range names {
		value, _ := settings.Get(name)
		fragments = append(fragments, PairFragment(name, value))
	}
	return fragments
}

// PairFragment returns the hash fragment of a single name/value pair. The
// NUL between name and literal keeps the encoding unambiguous: without it,
// pairs like ab=c and a=bc would hash the same bytes. Setting names never
// contain NUL (see Settings.Set).
func PairFragment(name string, value Value) string {
	sum := sha256.Sum256([]byte(name + "\x00" + value.Literal()))
	return hex.EncodeToString(sum[:])[:16]
}
