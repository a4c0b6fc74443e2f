// internal/model/validate.go
package model

import (
	"slices"
	"strings"

	apperrors "github.com/ghquery/ghquery/internal/errors"
)

const (
	githubWebPrefix = "https://github.com/"
	githubSSHPrefix = "git@github.com:"
)

var (
	validVisibilities = []string{"public", "private", "internal"}
	validOwnerTypes   = []string{"User", "Organization", "Bot"}
)

// RepositoryValidator applies the per-field rules a record must satisfy before it is persisted.
type RepositoryValidator struct{}

// Validate delegates to Repository.Validate.
func (RepositoryValidator) Validate(r Repository) error {
	return r.Validate()
}

// Validate returns the first rule violation as an *errors.ErrValidation.
func (r Repository) Validate() error {
	required := []struct {
		field, value string
	}{
		{"full_name", r.FullName},
		{"name", r.Name},
		{"html_url", r.HTMLURL},
		{"clone_url", r.CloneURL},
		{"ssh_url", r.SSHURL},
		{"default_branch", r.DefaultBranch},
		{"visibility", r.Visibility},
	}
	for _, f := range required {
		if f.value == "" {
			return invalid(f.field, "cannot be empty")
		}
	}

	if !strings.HasPrefix(r.HTMLURL, githubWebPrefix) {
		return invalid("html_url", "must be a valid GitHub URL")
	}
	if !strings.HasPrefix(r.CloneURL, githubWebPrefix) || !strings.HasSuffix(r.CloneURL, ".git") {
		return invalid("clone_url", "must be a valid GitHub clone URL")
	}
	if !strings.HasPrefix(r.SSHURL, githubSSHPrefix) || !strings.HasSuffix(r.SSHURL, ".git") {
		return invalid("ssh_url", "must be a valid GitHub SSH URL")
	}
	if !slices.Contains(validVisibilities, r.Visibility) {
		return invalid("visibility", "must be 'public', 'private', or 'internal'")
	}

	counters := []struct {
		field string
		value int64
	}{
		{"size", r.Size},
		{"stargazers_count", r.StargazersCount},
		{"watchers_count", r.WatchersCount},
		{"forks_count", r.ForksCount},
		{"open_issues_count", r.OpenIssuesCount},
	}
	for _, c := range counters {
		if c.value < 0 {
			return invalid(c.field, "cannot be negative")
		}
	}

	if err := r.Owner.Validate(); err != nil {
		return err
	}
	if r.License != nil {
		return r.License.Validate()
	}
	return nil
}

func (o Owner) Validate() error {
	switch {
	case o.Login == "":
		return invalid("owner.login", "cannot be empty")
	case o.AvatarURL == "":
		return invalid("owner.avatar_url", "cannot be empty")
	case o.HTMLURL == "":
		return invalid("owner.html_url", "cannot be empty")
	case !slices.Contains(validOwnerTypes, o.Type):
		return invalid("owner.type", "must be 'User', 'Organization', or 'Bot'")
	case !strings.HasPrefix(o.HTMLURL, githubWebPrefix):
		return invalid("owner.html_url", "must be a valid GitHub URL")
	}
	return nil
}

func (l License) Validate() error {
	if l.Key == "" {
		return invalid("license.key", "cannot be empty")
	}
	if l.Name == "" {
		return invalid("license.name", "cannot be empty")
	}
	return nil
}

func invalid(field, reason string) error {
	return &apperrors.ErrValidation{Field: field, Reason: reason}
}

