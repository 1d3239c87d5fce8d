package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/distribution/reference"

	"github.com/atinyakov/HubViewer/internal/models"
)

const repositoriesPath = "v2/repositories"

// RepositoryOptions filters the repository listing.
type RepositoryOptions struct {
	// Ordering is an upstream sort key such as "last_updated" or "-name".
	Ordering  string
	Namespace string
	// Name filters by substring.
	Name string
}

func (o RepositoryOptions) values() url.Values {
	q := url.Values{}
	setIf(q, "ordering", o.Ordering)
	setIf(q, "namespace", o.Namespace)
	setIf(q, "name", o.Name)
	return q
}

// TagOptions selects one page of tags.
type TagOptions struct {
	Page     int
	PageSize int
	Name     string
	Ordering string
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

// Repositories lists every repository of the active account's organization.
func (c *Client) Repositories(ctx context.Context, opts RepositoryOptions) (models.Listing[models.Repository], error) {
	return ListAll[models.Repository](ctx, c, repositoriesPath, opts.values())
}

// Tags lists one page of the tags of repository.
func (c *Client) Tags(ctx context.Context, repository string, opts TagOptions) (models.Page[models.Tag], error) {
	if err := ValidateRepositoryName(repository); err != nil {
		return models.Page[models.Tag]{}, err
	}

	q := url.Values{}
	setIf(q, "name", opts.Name)
	setIf(q, "ordering", opts.Ordering)
	return ListPage[models.Tag](ctx, c, repositoriesPath+"/"+repository+"/tags", opts.Page, opts.PageSize, q)
}

// TagDetails fetches a single tag of repository.
func (c *Client) TagDetails(ctx context.Context, repository, tag string) (models.Tag, error) {
	if err := ValidateRepositoryName(repository); err != nil {
		return models.Tag{}, err
	}
	if err := ValidateTag(tag); err != nil {
		return models.Tag{}, err
	}

	var out models.Tag
	err := c.getJSON(ctx, repositoriesPath+"/"+repository+"/tags/"+url.PathEscape(tag), nil, &out)
	return out, err
}

// ValidateRepositoryName checks that name is a single lowercase repository
// path component, as the registry requires.
func ValidateRepositoryName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: repository %q", ErrInvalidName, name)
	}
	if _, err := reference.WithName(name); err != nil {
		return fmt.Errorf("%w: repository %q: %v", ErrInvalidName, name, err)
	}
	return nil
}

// ValidateTag checks that tag is a valid image tag.
func ValidateTag(tag string) error {
	named, err := reference.WithName("library/tag")
	if err != nil {
		return err
	}
	if _, err := reference.WithTag(named, tag); err != nil {
		return fmt.Errorf("%w: tag %q", ErrInvalidName, tag)
	}
	return nil
}

// PullCommand returns the docker command that pulls organization/repository:tag.
func PullCommand(organization, repository, tag string) (string, error) {
	named, err := reference.WithName(organization + "/" + repository)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	tagged, err := reference.WithTag(named, tag)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return "docker pull " + tagged.String(), nil
}
