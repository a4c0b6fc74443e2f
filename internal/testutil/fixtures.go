// internal/testutil/fixtures.go
package testutil

import (
	"fmt"
	"time"

	"github.com/ghquery/ghquery/internal/model"
)

// Repository returns a record that passes model.RepositoryValidator.
func Repository(id int64, owner, name string, stars int64) model.Repository {
	lang := "Go"
	desc := fmt.Sprintf("%s by %s", name, owner)
	spdx := "MIT"
	pushed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.Repository{
		ID:              id,
		FullName:        owner + "/" + name,
		Name:            name,
		Description:     &desc,
		HTMLURL:         "https://github.com/" + owner + "/" + name,
		CloneURL:        "https://github.com/" + owner + "/" + name + ".git",
		SSHURL:          "git@github.com:" + owner + "/" + name + ".git",
		Size:            1024,
		StargazersCount: stars,
		WatchersCount:   stars,
		ForksCount:      7,
		OpenIssuesCount: 3,
		Language:        &lang,
		DefaultBranch:   "main",
		Visibility:      "public",
		CreatedAt:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour),
		UpdatedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PushedAt:        &pushed,
		Owner: model.Owner{
			ID:        id * 100,
			Login:     owner,
			Type:      "User",
			AvatarURL: "https://avatars.githubusercontent.com/u/1",
			HTMLURL:   "https://github.com/" + owner,
		},
		License:      &model.License{Key: "mit", Name: "MIT License", SPDXID: &spdx},
		Topics:       []string{"cli", "database"},
		HasIssues:    true,
		HasWiki:      true,
		HasDownloads: true,
	}
}

// WithLanguage returns r with its primary language replaced; nil clears it.
func WithLanguage(r model.Repository, lang *string) model.Repository {
	r.Language = lang
	return r
}

// SearchItemJSON renders a repository as the search endpoint would.
func SearchItemJSON(id int64, owner, name, language string, stars int64) string {
	return fmt.Sprintf(`{
		"id": %d, "name": %q, "full_name": "%s/%s", "description": "demo",
		"html_url": "https://github.com/%s/%s",
		"clone_url": "https://github.com/%s/%s.git",
		"ssh_url": "git@github.com:%s/%s.git",
		"size": 100, "stargazers_count": %d, "watchers_count": %d, "forks_count": 1,
		"open_issues_count": 0, "language": %q, "default_branch": "main", "visibility": "public",
		"private": false, "fork": false, "archived": false, "disabled": false,
		"created_at": "2021-05-01T10:00:00Z", "updated_at": "2024-05-01T10:00:00Z",
		"pushed_at": "2024-05-02T10:00:00Z",
		"owner": {"id": %d, "login": %q, "type": "User",
			"avatar_url": "https://avatars.githubusercontent.com/u/%d", "html_url": "https://github.com/%s", "site_admin": false},
		"license": {"key": "mit", "name": "MIT License", "spdx_id": "MIT", "url": "https://api.github.com/licenses/mit"},
		"topics": ["cli"], "has_issues": true, "has_projects": false, "has_wiki": false,
		"has_pages": false, "has_downloads": true
	}`, id, name, owner, name, owner, name, owner, name, owner, name, stars, stars, language,
		id*10, owner, id*10, owner)
}
