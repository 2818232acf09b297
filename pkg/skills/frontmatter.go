package skills

import (
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var bom = []byte("\ufeff")

func trimBOM(content []byte) []byte {
	return bytes.TrimPrefix(content, bom)
}

// HasFrontmatter reports whether content starts with a YAML frontmatter delimiter
func HasFrontmatter(content []byte) bool {
	c := trimBOM(content)
	return bytes.HasPrefix(c, []byte("---\n")) || bytes.HasPrefix(c, []byte("---\r\n"))
}

// Frontmatter renders a frontmatter block carrying only the skill name
func Frontmatter(name string) ([]byte, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "skill"
	}

	node := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "name"},
			{Kind: yaml.ScalarNode, Value: name, Style: yaml.SingleQuotedStyle},
		},
	}
	body, err := yaml.Marshal(node)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode frontmatter")
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(body)
	buf.WriteString("---\n\n")
	return buf.Bytes(), nil
}

// EnsureFrontmatter prepends a name-only frontmatter block to the manifest
// at path when it has none. It reports whether the file was rewritten.
func EnsureFrontmatter(path, name string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", path)
	}
	if HasFrontmatter(content) {
		return false, nil
	}

	header, err := Frontmatter(name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", path)
	}
	if err := os.WriteFile(path, append(header, content...), info.Mode().Perm()); err != nil {
		return false, errors.Wrapf(err, "failed to write %s", path)
	}
	return true, nil
}

// SafeDirName turns a skill name into a directory name that cannot escape
// its parent
func SafeDirName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "skill"
	}
	replaced := strings.NewReplacer("/", "-", `\`, "-").Replace(trimmed)
	replaced = strings.TrimSpace(strings.ReplaceAll(replaced, "..", ""))
	if replaced == "" {
		return "skill"
	}
	return replaced
}

// Prefer reports whether the skill directory candidate should replace
// existing: a manifest with frontmatter beats one without, and otherwise the
// larger manifest wins. A missing manifest ranks lowest.
func Prefer(candidate, existing string) bool {
	c, e := quality(candidate), quality(existing)
	if c.frontmatter != e.frontmatter {
		return c.frontmatter
	}
	return c.size > e.size
}

type manifestQuality struct {
	frontmatter bool
	size        int64
}

func quality(dir string) manifestQuality {
	file, ok := FindFile(dir)
	if !ok {
		return manifestQuality{}
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return manifestQuality{}
	}
	return manifestQuality{frontmatter: HasFrontmatter(content), size: int64(len(content))}
}
