package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Document names served by the remote catalog service.
const (
	docModels        = "models.json"
	docArchitectures = "architectures.json"
	docTags          = "tags.json"
	docTagCategories = "tag-categories.json"
)

// Remote document shapes. Field names follow the catalog's JSON, which uses
// camelCase.
type remoteModel struct {
	Name           string           `json:"name"`
	Architecture   string           `json:"architecture"`
	Scale          int              `json:"scale"`
	InputChannels  int              `json:"inputChannels"`
	OutputChannels int              `json:"outputChannels"`
	Tags           []string         `json:"tags"`
	Resources      []remoteResource `json:"resources"`
}

type remoteResource struct {
	Platform string   `json:"platform"`
	Type     string   `json:"type"`
	Size     int64    `json:"size"`
	SHA256   string   `json:"sha256"`
	URLs     []string `json:"urls"`
}

type remoteArchitecture struct {
	Name                string   `json:"name"`
	Input               string   `json:"input"`
	CompatiblePlatforms []string `json:"compatiblePlatforms"`
}

type remoteTag struct {
	Name    string   `json:"name"`
	Implies []string `json:"implies"`
}

type remoteTagCategory struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// remoteDocs bundles one consistent fetch of the catalog document set.
type remoteDocs struct {
	models        map[string]remoteModel
	architectures map[string]remoteArchitecture
	tags          map[string]remoteTag
	categories    map[string]remoteTagCategory
}

// Client fetches catalog documents over HTTP with conditional revalidation
// on the models document.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a catalog client for the given base URL. A nil
// httpClient gets a 30 second timeout default.
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient}
}

// fetchDocs retrieves the document set. revision is the marker stored by
// the previous sync; when the models document answers 304 Not Modified the
// remaining documents are not fetched at all.
func (c *Client) fetchDocs(ctx context.Context, revision string) (remoteDocs, string, bool, error) {
	var docs remoteDocs
	newRev, notModified, err := c.getJSON(ctx, docModels, revision, &docs.models)
	if err != nil {
		return remoteDocs{}, "", false, err
	}
	if notModified {
		return remoteDocs{}, revision, true, nil
	}
	if _, _, err := c.getJSON(ctx, docArchitectures, "", &docs.architectures); err != nil {
		return remoteDocs{}, "", false, err
	}
	if _, _, err := c.getJSON(ctx, docTags, "", &docs.tags); err != nil {
		return remoteDocs{}, "", false, err
	}
	if _, _, err := c.getJSON(ctx, docTagCategories, "", &docs.categories); err != nil {
		return remoteDocs{}, "", false, err
	}
	return docs, newRev, false, nil
}

// getJSON fetches one document into v. The revision is sent as
// If-None-Match when it looks like an entity tag and as If-Modified-Since
// otherwise; the returned revision is the response's ETag falling back to
// Last-Modified, empty when the server offers neither.
func (c *Client) getJSON(ctx context.Context, name, revision string, v any) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+name, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Accept", "application/json")
	if revision != "" {
		if strings.Contains(revision, `"`) {
			req.Header.Set("If-None-Match", revision)
		} else {
			req.Header.Set("If-Modified-Since", revision)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return revision, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("get %s: unexpected status %s", name, resp.Status)
	}
	newRev := resp.Header.Get("ETag")
	if newRev == "" {
		newRev = resp.Header.Get("Last-Modified")
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return "", false, fmt.Errorf("decode %s: %w", name, err)
	}
	return newRev, false, nil
}
