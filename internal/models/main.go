// Package models defines the core data structures shared by the proxy
// server and the client: accounts, credentials and registry listings.
package models

// Credentials is the plaintext bundle sealed by the envelope cipher and
// handed to the client as an opaque account string.
type Credentials struct {
	// User is the registry login used for the token exchange.
	User string `json:"user"`
	// Token is the long-lived personal access token (or password).
	Token string `json:"token"`
	// Organization is the namespace whose repositories are listed.
	Organization string `json:"organization"`
}

// Account is a stored login as the client persists it.
type Account struct {
	// ID is a client-generated unique identifier.
	ID string `json:"id"`
	// Organization is shown to the user and used to build pull commands.
	Organization string `json:"organization"`
	// Data is the encrypted credentials bundle issued by the server.
	Data string `json:"data"`
	// IsActive marks the account used for proxy calls.
	IsActive bool `json:"isActive"`
}

// Listing is a complete, aggregated result set.
type Listing[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

// Page is a single page of a listing together with pagination bookkeeping.
type Page[T any] struct {
	Count   int  `json:"count"`
	Results []T  `json:"results"`
	Next    bool `json:"next"`
	Page    int  `json:"page"`
}

// Repository mirrors the registry's repository record.
type Repository struct {
	Name              string   `json:"name"`
	Namespace         string   `json:"namespace"`
	RepositoryType    string   `json:"repository_type"`
	Status            int      `json:"status"`
	Description       string   `json:"description"`
	StatusDescription string   `json:"status_description"`
	IsPrivate         bool     `json:"is_private"`
	StarCount         int      `json:"star_count"`
	PullCount         int64    `json:"pull_count"`
	LastUpdated       string   `json:"last_updated"`
	LastModified      string   `json:"last_modified"`
	DateRegistered    string   `json:"date_registered"`
	Affiliation       string   `json:"affiliation"`
	MediaTypes        []string `json:"media_types"`
	ContentTypes      []string `json:"content_types"`
	Categories        []any    `json:"categories"`
	StorageSize       int64    `json:"storage_size"`
}

// ImageInfo describes one platform image behind a tag.
type ImageInfo struct {
	Architecture string  `json:"architecture"`
	Features     string  `json:"features"`
	Variant      *string `json:"variant"`
	Digest       string  `json:"digest"`
	OS           string  `json:"os"`
	OSFeatures   string  `json:"os_features"`
	OSVersion    *string `json:"os_version"`
	Size         int64   `json:"size"`
	Status       string  `json:"status"`
	LastPulled   string  `json:"last_pulled"`
	LastPushed   string  `json:"last_pushed"`
}

// Tag mirrors the registry's tag record.
type Tag struct {
	Name                string      `json:"name"`
	FullSize            int64       `json:"full_size"`
	LastUpdated         string      `json:"last_updated"`
	Creator             int64       `json:"creator"`
	ID                  int64       `json:"id"`
	Images              []ImageInfo `json:"images"`
	LastUpdater         int64       `json:"last_updater"`
	LastUpdaterUsername string      `json:"last_updater_username"`
	Repository          int64       `json:"repository"`
	V2                  bool        `json:"v2"`
	TagStatus           string      `json:"tag_status"`
	TagLastPulled       string      `json:"tag_last_pulled"`
	TagLastPushed       string      `json:"tag_last_pushed"`
	MediaType           string      `json:"media_type"`
	ContentType         string      `json:"content_type"`
	Digest              string      `json:"digest"`
}
