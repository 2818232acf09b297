package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/backend"
	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	"github.com/d0ublecl1ck/skills-manager/pkg/skills"
	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// NormalizeURL expands the shorthands accepted for install sources:
// "owner/repo" and "github.com/owner/repo" become GitHub https URLs.
func NormalizeURL(input string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(input), "/")
	switch {
	case strings.HasPrefix(trimmed, "http://"), strings.HasPrefix(trimmed, "https://"):
		return trimmed
	case strings.HasPrefix(trimmed, "github.com/"):
		return "https://" + trimmed
	case strings.Count(trimmed, "/") == 1 && !strings.Contains(trimmed, " "):
		return "https://github.com/" + trimmed
	}
	return trimmed
}

func isZip(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasSuffix(lower, ".zip") || strings.Contains(lower, ".zip?")
}

// fallbackName is the last URL segment without archive or git suffix
func fallbackName(url string) string {
	name := url
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		name = url[idx+1:]
	}
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".git"), ".zip")
	if name == "" {
		return "skill"
	}
	return name
}

// InstallNew fetches a skill into the store. With skillName set the skills
// CLI installs that one skill and the result is copied in; otherwise the URL
// is downloaded as a zip archive or cloned as a git repository.
func (b *Backend) InstallNew(ctx context.Context, repoURL, skillName, storagePath string) (catalog.Skill, error) {
	if strings.TrimSpace(repoURL) == "" {
		return catalog.Skill{}, errors.New("repository url is empty")
	}
	store, err := storeRoot(storagePath)
	if err != nil {
		return catalog.Skill{}, err
	}

	url := NormalizeURL(repoURL)
	var dirName string
	if strings.TrimSpace(skillName) != "" {
		dirName, err = b.installWithCLI(ctx, url, skillName, store)
	} else {
		dirName, err = b.installFromSource(ctx, url, store)
	}
	if err != nil {
		return catalog.Skill{}, err
	}

	now := b.stamp()
	logger.G(ctx).WithField("skill_name", dirName).WithField("url", url).Info("skill installed")
	return catalog.Skill{
		ID:            b.newID(),
		Name:          dirName,
		SourceURL:     repoURL,
		InstallSource: catalog.InstallSourcePlatform,
		IsAdopted:     catalog.Bool(true),
		EnabledAgents: []catalog.AgentID{},
		LastSync:      now,
		LastUpdate:    now,
	}.WithClassification(), nil
}

// cliFetch runs `npx skills add` and copies the result from the skills
// CLI's global directory into dst
func (b *Backend) cliFetch(ctx context.Context, url, dirName, dst string) error {
	err := b.run(ctx, "npx skills add", "", "npx", "skills", "add", url, "--skill", dirName, "-g", "-y")
	if err != nil {
		return errors.Wrap(err, "npx skills add failed")
	}

	src := filepath.Join(platforms.ExpandTilde(b.agentsDir), dirName)
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return errors.Errorf("installed skill directory not found (expected %s)", src)
	}
	return copyDir(src, dst)
}

func (b *Backend) installWithCLI(ctx context.Context, url, skillName, store string) (string, error) {
	dirName := skills.SafeDirName(skillName)
	if err := b.cliFetch(ctx, url, dirName, filepath.Join(store, dirName)); err != nil {
		return "", err
	}
	return dirName, nil
}

func (b *Backend) installFromSource(ctx context.Context, url, store string) (string, error) {
	temp := filepath.Join(store, ".tmp-install-"+b.newID())
	if err := os.RemoveAll(temp); err != nil {
		return "", errors.Wrapf(err, "failed to clear %s", temp)
	}
	defer os.RemoveAll(temp)

	var err error
	if isZip(url) {
		err = b.fetchZip(ctx, url, temp)
	} else {
		err = b.fetchGit(ctx, url, temp)
	}
	if err != nil {
		return "", err
	}

	name := skills.NameFromDir(temp, fallbackName(url))
	dirName := uniqueDirName(store, skills.SafeDirName(name))
	if err := moveDir(temp, filepath.Join(store, dirName)); err != nil {
		return "", err
	}
	return dirName, nil
}

func (b *Backend) fetchZip(ctx context.Context, url, dst string) error {
	tmp, err := os.MkdirTemp("", "skillsm-zip-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp dir")
	}
	defer os.RemoveAll(tmp)

	archive := filepath.Join(tmp, "download.zip")
	extract := filepath.Join(tmp, "extract")
	if err := os.MkdirAll(extract, 0o755); err != nil {
		return errors.Wrap(err, "failed to create extract dir")
	}

	if err := b.run(ctx, "curl", "", "curl", "-L", "-o", archive, url); err != nil {
		return errors.Wrap(err, "download failed")
	}
	if err := b.run(ctx, "unzip", "", "unzip", "-q", archive, "-d", extract); err != nil {
		return errors.Wrap(err, "unzip failed")
	}

	entries, err := os.ReadDir(extract)
	if err != nil {
		return errors.Wrap(err, "failed to read extract dir")
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(extract, e.Name()))
		}
	}

	root := extract
	if len(dirs) == 1 {
		root = dirs[0]
	}
	return copyDir(root, dst)
}

func (b *Backend) fetchGit(ctx context.Context, url, dst string) error {
	cloneURL := url
	if !strings.HasSuffix(cloneURL, ".git") {
		cloneURL += ".git"
	}
	err := b.retry(ctx, "git clone", func() error {
		// a failed attempt may leave a partial clone behind
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
		return b.runner.Run(ctx, "", "git", "clone", "--depth", "1", cloneURL, dst)
	})
	if err != nil {
		return errors.Wrap(err, "git clone failed")
	}
	return os.RemoveAll(filepath.Join(dst, ".git"))
}

// Reinstall refreshes a skill through the skills CLI and swaps the store
// directory for the fresh copy
func (b *Backend) Reinstall(ctx context.Context, req backend.ReinstallRequest) (catalog.Skill, error) {
	if strings.TrimSpace(req.RepoURL) == "" {
		return catalog.Skill{}, errors.New("repository url is empty")
	}
	if strings.TrimSpace(req.SkillName) == "" {
		return catalog.Skill{}, errors.New("skill name is empty")
	}
	store, err := storeRoot(req.StoragePath)
	if err != nil {
		return catalog.Skill{}, err
	}

	dirName := skills.SafeDirName(req.SkillName)
	temp := filepath.Join(store, ".tmp-reinstall-"+b.newID())
	defer os.RemoveAll(temp)

	if err := b.cliFetch(ctx, NormalizeURL(req.RepoURL), dirName, temp); err != nil {
		return catalog.Skill{}, err
	}

	final := filepath.Join(store, dirName)
	if err := os.RemoveAll(final); err != nil {
		return catalog.Skill{}, errors.Wrapf(err, "failed to replace %s", final)
	}
	if err := moveDir(temp, final); err != nil {
		return catalog.Skill{}, err
	}

	now := b.stamp()
	return catalog.Skill{
		ID:            req.SkillID,
		Name:          dirName,
		SourceURL:     req.RepoURL,
		EnabledAgents: catalog.UnionAgents(req.EnabledAgents),
		LastSync:      now,
		LastUpdate:    now,
	}, nil
}
