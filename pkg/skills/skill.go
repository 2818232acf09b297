// Package skills reads skill directories. A skill directory is a folder
// holding a SKILL.md file, usually starting with YAML frontmatter that
// carries the skill's name and description. Directories are discovered
// recursively under platform roots, compared for sync preference and
// patched with frontmatter for platforms that require it.
package skills

// FileName is the canonical skill manifest name. Lookups are case-insensitive.
const FileName = "SKILL.md"

// Skill is a skill directory read from disk
type Skill struct {
	Name           string // frontmatter name, first heading, or directory name
	Description    string // frontmatter description, may be empty
	Directory      string // full path to the skill directory
	File           string // full path to the manifest
	Size           int64  // manifest size in bytes
	HasFrontmatter bool   // manifest starts with a YAML frontmatter block
}

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}
