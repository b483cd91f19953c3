package usecase

import (
	"regexp"
	"strings"
)

// rootFolders are the allowed top-level categories. Suggestions rooted
// anywhere else are re-parented under Misc.
var rootFolders = map[string]bool{
	"School":      true,
	"Finance":     true,
	"Newsletters": true,
	"Vehicle":     true,
	"Health":      true,
	"Work":        true,
	"Family":      true,
	"Home":        true,
	"Misc":        true,
}

// maxFolderDepth caps the folder path depth after normalization.
const maxFolderDepth = 3

var disallowedChars = regexp.MustCompile(`[^A-Za-z0-9/]+`)

// FolderNamer normalizes classifier folder suggestions into conforming
// paths. Non-conforming names are repaired, never rejected.
type FolderNamer struct{}

// Normalize applies the naming rules: character allowlist, Title Case
// segments, known root categories, depth cap.
func (n *FolderNamer) Normalize(folder string) string {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return "Misc"
	}

	var parts []string
	for _, part := range strings.Split(folder, "/") {
		if titled := n.titleCase(part); titled != "" {
			parts = append(parts, titled)
		}
	}
	if len(parts) == 0 {
		return "Misc"
	}
	if !rootFolders[parts[0]] {
		parts = append([]string{"Misc"}, parts...)
	}
	if len(parts) > maxFolderDepth {
		parts = parts[:maxFolderDepth]
	}
	return strings.Join(parts, "/")
}

func (n *FolderNamer) titleCase(value string) string {
	value = disallowedChars.ReplaceAllString(value, " ")
	words := strings.Fields(value)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
