package platforms

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// Resolve merges a possibly incomplete, user-edited platform list against the
// registry. Every registry platform is present in the result in registry order
// with the user's path and enabled customizations applied; blank paths fall
// back to the registry defaults. Stored platforms that the registry does not
// know about are appended unchanged.
func Resolve(stored []catalog.Platform) []catalog.Platform {
	byID := make(map[catalog.AgentID]catalog.Platform, len(stored))
	for _, p := range stored {
		if _, ok := byID[p.ID]; !ok {
			byID[p.ID] = p
		}
	}

	merged := make([]catalog.Platform, 0, len(registry)+len(stored))
	known := make(map[catalog.AgentID]struct{}, len(registry))
	for _, fallback := range registry {
		known[fallback.ID] = struct{}{}
		if incoming, ok := byID[fallback.ID]; ok {
			merged = append(merged, mergeOne(fallback, incoming))
			continue
		}
		merged = append(merged, clonePlatform(fallback))
	}

	for _, p := range stored {
		if _, ok := known[p.ID]; ok {
			continue
		}
		known[p.ID] = struct{}{}
		merged = append(merged, clonePlatform(p))
	}

	return merged
}

func mergeOne(fallback, incoming catalog.Platform) catalog.Platform {
	out := clonePlatform(fallback)
	if name := strings.TrimSpace(incoming.Name); name != "" {
		out.Name = name
	}
	out.DefaultPath = pathOr(incoming.DefaultPath, fallback.DefaultPath)
	out.CurrentPath = pathOr(incoming.CurrentPath, fallback.CurrentPath)
	out.Enabled = incoming.Enabled
	if len(incoming.SuggestedPaths) > 0 {
		out.SuggestedPaths = append([]string(nil), incoming.SuggestedPaths...)
	}
	return out
}

func pathOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

// Enabled filters platforms down to the enabled ones
func Enabled(list []catalog.Platform) []catalog.Platform {
	out := make([]catalog.Platform, 0, len(list))
	for _, p := range list {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the platform with id from list
func Find(list []catalog.Platform, id catalog.AgentID) (catalog.Platform, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return catalog.Platform{}, false
}

// ExpandTilde expands a leading "~" to the user's home directory
func ExpandTilde(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") || strings.HasPrefix(trimmed, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return trimmed
		}
		if trimmed == "~" {
			return home
		}
		return filepath.Join(home, trimmed[2:])
	}
	return trimmed
}

// Roots returns the distinct directories a platform materializes skills into:
// its current path followed by its default path.
func Roots(p catalog.Platform) []string {
	var roots []string
	for _, candidate := range []string{p.CurrentPath, p.DefaultPath} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		root := filepath.Clean(ExpandTilde(candidate))
		duplicate := false
		for _, existing := range roots {
			if existing == root {
				duplicate = true
				break
			}
		}
		if !duplicate {
			roots = append(roots, root)
		}
	}
	return roots
}
