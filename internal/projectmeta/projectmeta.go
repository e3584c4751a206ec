// Package projectmeta decides the project name, copyright, version and
// release written into conf.py.
//
// Each field is taken from the first source that provides it: explicit
// configuration, the root module's dunder variables (__project__,
// __copyright__, __version__, __release__), the git repository (latest
// tag, HEAD commit year and author), then defaults.
package projectmeta

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/sphinkydoc/internal/logfields"
)

// Source names where a field came from.
type Source string

const (
	SourceConfig  Source = "config"
	SourceModule  Source = "module"
	SourceGit     Source = "git"
	SourceDefault Source = "default"
)

// Meta is the project metadata of a build.
type Meta struct {
	Project   string
	Copyright string
	Version   string
	Release   string
}

// Resolved is Meta plus the source of every field.
type Resolved struct {
	Meta
	Sources map[string]Source
}

// GitInfo is what a repository contributes.
type GitInfo struct {
	Tag    string
	Year   int
	Author string
}

// Inputs are the candidate sources, in precedence order.
type Inputs struct {
	Config Meta
	// Dunders are the root module's string dunder assignments.
	Dunders map[string]string
	Git     *GitInfo
	// RootModule names the project when nothing else does.
	RootModule string
	Now        time.Time
}

// Resolve merges the inputs field by field.
func Resolve(in Inputs) Resolved {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	r := Resolved{Sources: map[string]Source{}}

	pick := func(field string, config, dunder, fromGit, def string) string {
		switch {
		case config != "":
			r.Sources[field] = SourceConfig
			return config
		case dunder != "":
			r.Sources[field] = SourceModule
			return dunder
		case fromGit != "":
			r.Sources[field] = SourceGit
			return fromGit
		default:
			r.Sources[field] = SourceDefault
			return def
		}
	}

	var gitRelease, gitVersion, gitCopyright string
	if in.Git != nil {
		gitRelease = strings.TrimPrefix(in.Git.Tag, "v")
		gitVersion = ShortVersion(gitRelease)
		if in.Git.Year > 0 {
			gitCopyright = fmt.Sprintf("%d", in.Git.Year)
			if in.Git.Author != "" {
				gitCopyright += ", " + in.Git.Author
			}
		}
	}

	r.Project = pick("project", in.Config.Project, in.Dunders["__project__"], "", in.RootModule)
	r.Copyright = pick("copyright", in.Config.Copyright, in.Dunders["__copyright__"], gitCopyright, fmt.Sprintf("%d", in.Now.Year()))

	moduleRelease := in.Dunders["__release__"]
	moduleVersion := in.Dunders["__version__"]
	r.Release = pick("release", in.Config.Release, firstNonEmpty(moduleRelease, moduleVersion), gitRelease, "")
	r.Version = pick("version", in.Config.Version, firstNonEmpty(moduleVersion, ShortVersion(moduleRelease)), gitVersion, ShortVersion(r.Release))
	return r
}

var shortVersion = regexp.MustCompile(`^(\d+)\.(\d+)`)

// ShortVersion returns the major.minor part of a release, e.g. "1.4" for
// "1.4.2rc1", or the input when it has no such prefix.
func ShortVersion(release string) string {
	if m := shortVersion.FindString(release); m != "" {
		return m
	}
	return release
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ErrNoRepository indicates the directory is not inside a git repository.
var ErrNoRepository = errors.New("not a git repository")

// ReadGit inspects the repository containing dir.
func ReadGit(dir string, logger *slog.Logger) (*GitInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNoRepository, dir)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}

	info := &GitInfo{}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return info, nil
		}
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	info.Year = commit.Author.When.Year()
	info.Author = commit.Author.Name

	tag, err := latestTag(repo)
	if err != nil {
		logger.Debug("Reading tags failed", logfields.Path(dir), logfields.Error(err))
	}
	info.Tag = tag
	return info, nil
}

// latestTag returns the tag whose commit is newest.
func latestTag(repo *git.Repository) (string, error) {
	tags, err := repo.Tags()
	if err != nil {
		return "", err
	}
	var (
		best     string
		bestWhen time.Time
	)
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		commit, err := tagCommit(repo, ref)
		if err != nil {
			return nil
		}
		when := commit.Committer.When
		if best == "" || when.After(bestWhen) {
			best = ref.Name().Short()
			bestWhen = when
		}
		return nil
	})
	return best, err
}

func tagCommit(repo *git.Repository, ref *plumbing.Reference) (*object.Commit, error) {
	if tag, err := repo.TagObject(ref.Hash()); err == nil {
		return tag.Commit()
	}
	return repo.CommitObject(ref.Hash())
}
