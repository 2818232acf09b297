package skills

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"

	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
)

// manifestPattern matches SKILL.md in any letter case
const manifestPattern = "**/[Ss][Kk][Ii][Ll][Ll].[Mm][Dd]"

// Discovery finds skill directories under a set of roots, typically the
// roots of one platform
type Discovery struct {
	skillDirs []string
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithSkillDirs sets the roots to search, in precedence order
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.skillDirs = dirs
		return nil
	}
}

// NewDiscovery creates a new skill discovery instance
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// DiscoverSkills finds every skill directory under the configured roots,
// keyed by directory name. When the same directory name exists under
// several roots the first root wins. Unreadable roots are logged and
// skipped; a manifest that cannot be parsed still yields a skill named
// after its directory.
func (d *Discovery) DiscoverSkills(ctx context.Context) (map[string]*Skill, error) {
	skills := make(map[string]*Skill)

	for _, dir := range d.skillDirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		roots, err := FindRoots(dir)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("root", dir).Warn("failed to scan skill root")
			continue
		}
		for _, root := range roots {
			key := filepath.Base(root)
			if key == "" || strings.HasPrefix(key, ".") {
				continue
			}
			if _, exists := skills[key]; exists {
				continue
			}
			skill, err := Load(root)
			if err != nil {
				logger.G(ctx).WithError(err).WithField("dir", root).Debug("unreadable skill manifest")
				skill = &Skill{Name: key, Directory: root}
			}
			skills[key] = skill
		}
	}

	return skills, nil
}

// ListSkillNames returns the sorted directory names of all discovered skills
func (d *Discovery) ListSkillNames(ctx context.Context) ([]string, error) {
	skills, err := d.DiscoverSkills(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// FindRoots returns every skill directory below root. A directory holding a
// manifest is a skill root and is not searched further; hidden directories
// are skipped. A missing root yields no results.
func FindRoots(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to stat %s", root)
	}
	if !info.IsDir() {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(root), manifestPattern)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search %s for skills", root)
	}

	dirs := make([]string, 0, len(matches))
	for _, match := range matches {
		dir := path.Dir(match)
		if hidden(dir) {
			continue
		}
		if fi, err := fs.Stat(os.DirFS(root), match); err != nil || !fi.Mode().IsRegular() {
			continue
		}
		dirs = append(dirs, dir)
	}

	// shallowest first so nested manifests inside a skill are ignored
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i], "/"), strings.Count(dirs[j], "/")
		if di != dj {
			return di < dj
		}
		return dirs[i] < dirs[j]
	})

	var roots []string
	var kept []string
	for _, dir := range dirs {
		if nestedIn(dir, kept) {
			continue
		}
		kept = append(kept, dir)
		roots = append(roots, filepath.Join(root, filepath.FromSlash(dir)))
	}
	return roots, nil
}

func hidden(rel string) bool {
	if rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if part == "" || strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func nestedIn(dir string, parents []string) bool {
	for _, p := range parents {
		if p == "." || dir == p || strings.HasPrefix(dir, p+"/") {
			return true
		}
	}
	return false
}

// FindFile returns the manifest path inside dir, matching its name case-insensitively
func FindFile(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if !strings.EqualFold(entry.Name(), FileName) {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// Load reads the skill in dir. Frontmatter is optional: without it the name
// falls back to the first top-level heading and then to the directory name.
func Load(dir string) (*Skill, error) {
	file, ok := FindFile(dir)
	if !ok {
		return nil, errors.Errorf("no %s in %s", FileName, dir)
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	skill := &Skill{
		Name:      filepath.Base(dir),
		Directory: dir,
		File:      file,
		Size:      int64(len(content)),
	}

	if HasFrontmatter(content) {
		skill.HasFrontmatter = true
		metadata, err := parseMetadata(trimBOM(content))
		if err != nil {
			return nil, err
		}
		if metadata.Name != "" {
			skill.Name = metadata.Name
		}
		skill.Description = metadata.Description
		return skill, nil
	}

	if heading := firstHeading(string(content)); heading != "" {
		skill.Name = heading
	}
	return skill, nil
}

// readmeFiles are consulted when a directory has no skill manifest
var readmeFiles = []string{"README.md", "README.MD", "readme.md"}

// NameFromDir derives a display name for a freshly fetched directory. The
// manifest wins, then the first heading of a README, then fallback.
func NameFromDir(dir, fallback string) string {
	if skill, err := Load(dir); err == nil && skill.Name != filepath.Base(dir) {
		return skill.Name
	}
	for _, f := range readmeFiles {
		content, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			continue
		}
		if heading := firstHeading(string(content)); heading != "" {
			return heading
		}
		break
	}
	return fallback
}

func parseMetadata(content []byte) (Metadata, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return Metadata{}, errors.Wrap(err, "failed to parse markdown")
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "invalid frontmatter")
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)

	return Metadata{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}, nil
}

func firstHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(t, "# "))
		}
	}
	return ""
}
