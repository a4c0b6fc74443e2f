// internal/github/convert.go
package github

import (
	"github.com/google/go-github/v62/github"

	"github.com/ghquery/ghquery/internal/model"
)

func toSearchResult(r *github.RepositoriesSearchResult) *model.SearchResult {
	result := &model.SearchResult{
		TotalCount: int64(r.GetTotal()),
		Incomplete: r.GetIncompleteResults(),
		Items:      make([]model.Repository, 0, len(r.Repositories)),
	}
	for _, repo := range r.Repositories {
		if repo == nil {
			continue
		}
		result.Items = append(result.Items, toInternalRepository(repo))
	}
	return result
}

// toInternalRepository translates a github.Repository object to our internal model.Repository.
// All timestamps are normalized to UTC.
func toInternalRepository(r *github.Repository) model.Repository {
	repo := model.Repository{
		ID:              r.GetID(),
		FullName:        r.GetFullName(),
		Name:            r.GetName(),
		Description:     r.Description,
		HTMLURL:         r.GetHTMLURL(),
		CloneURL:        r.GetCloneURL(),
		SSHURL:          r.GetSSHURL(),
		Size:            int64(r.GetSize()),
		StargazersCount: int64(r.GetStargazersCount()),
		WatchersCount:   int64(r.GetWatchersCount()),
		ForksCount:      int64(r.GetForksCount()),
		OpenIssuesCount: int64(r.GetOpenIssuesCount()),
		Language:        r.Language,
		DefaultBranch:   r.GetDefaultBranch(),
		Visibility:      r.GetVisibility(),
		Private:         r.GetPrivate(),
		Fork:            r.GetFork(),
		Archived:        r.GetArchived(),
		Disabled:        r.GetDisabled(),
		CreatedAt:       r.GetCreatedAt().Time.UTC(),
		UpdatedAt:       r.GetUpdatedAt().Time.UTC(),
		Owner:           toInternalOwner(r.GetOwner()),
		Topics:          append([]string{}, r.Topics...),
		HasIssues:       r.GetHasIssues(),
		HasProjects:     r.GetHasProjects(),
		HasWiki:         r.GetHasWiki(),
		HasPages:        r.GetHasPages(),
		HasDownloads:    r.GetHasDownloads(),
	}
	if r.PushedAt != nil {
		pushed := r.PushedAt.Time.UTC()
		repo.PushedAt = &pushed
	}
	if l := r.GetLicense(); l != nil {
		repo.License = &model.License{
			Key:    l.GetKey(),
			Name:   l.GetName(),
			SPDXID: l.SPDXID,
			URL:    l.URL,
		}
	}
	return repo
}

func toInternalOwner(u *github.User) model.Owner {
	return model.Owner{
		ID:        u.GetID(),
		Login:     u.GetLogin(),
		Type:      u.GetType(),
		AvatarURL: u.GetAvatarURL(),
		HTMLURL:   u.GetHTMLURL(),
		SiteAdmin: u.GetSiteAdmin(),
	}
}
