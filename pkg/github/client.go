// Package github talks to the GitHub REST API: release listings of upstream
// repositories, publishing releases to the build repository and dispatching
// workflows.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultUploadURL = "https://uploads.github.com"

	// RequestTimeout bounds every API call.
	RequestTimeout = 60 * time.Second

	maxPerPage = 100
)

// Client is a minimal GitHub REST client.
type Client struct {
	BaseURL   string
	UploadURL string
	Token     string
	HTTP      *http.Client
}

// NewClient returns a client for api.github.com authenticated with token.
// An empty token sends unauthenticated requests.
func NewClient(token string) *Client {
	return &Client{
		BaseURL:   DefaultBaseURL,
		UploadURL: DefaultUploadURL,
		Token:     token,
		HTTP:      &http.Client{Timeout: RequestTimeout},
	}
}

// NewRelease describes a release to create.
type NewRelease struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Prerelease bool   `json:"prerelease"`
}

// ListReleases returns up to limit releases of repo, newest first.
func (c *Client) ListReleases(ctx context.Context, repo string, limit int) ([]types.Release, error) {
	perPage := limit
	if perPage <= 0 || perPage > maxPerPage {
		perPage = maxPerPage
	}

	var all []types.Release
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s/repos/%s/releases?per_page=%d&page=%d", c.BaseURL, repo, perPage, page)
		var batch []types.Release
		if err := c.do(ctx, http.MethodGet, u, nil, "", &batch, http.StatusOK); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < perPage || (limit > 0 && len(all) >= limit) {
			break
		}
	}

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	log.Debugf("Listed %d release(s) of %s", len(all), repo)
	return all, nil
}

// ReleaseByTag returns the release of repo tagged tag.
func (c *Client) ReleaseByTag(ctx context.Context, repo, tag string) (*types.Release, error) {
	u := fmt.Sprintf("%s/repos/%s/releases/tags/%s", c.BaseURL, repo, url.PathEscape(tag))
	var rel types.Release
	if err := c.do(ctx, http.MethodGet, u, nil, "", &rel, http.StatusOK); err != nil {
		return nil, err
	}
	return &rel, nil
}

// FetchJSON decodes the JSON document at u into v.
func (c *Client) FetchJSON(ctx context.Context, u string, v any) error {
	return c.do(ctx, http.MethodGet, u, nil, "", v, http.StatusOK)
}

// CreateRelease creates a release of repo and uploads every file in assets.
func (c *Client) CreateRelease(ctx context.Context, repo string, rel NewRelease, assets []string) (*types.Release, error) {
	body, err := json.Marshal(rel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode release")
	}

	var created types.Release
	u := fmt.Sprintf("%s/repos/%s/releases", c.BaseURL, repo)
	if err := c.do(ctx, http.MethodPost, u, bytes.NewReader(body), "application/json", &created, http.StatusCreated); err != nil {
		return nil, errors.Wrapf(err, "failed to create release %s", rel.TagName)
	}
	log.Infof("Created release %s (%s)", rel.TagName, rel.Name)

	for _, path := range assets {
		if err := c.UploadAsset(ctx, repo, created.ID, path); err != nil {
			return nil, err
		}
	}
	return &created, nil
}

// UploadAsset attaches the file at path to release id of repo.
func (c *Client) UploadAsset(ctx context.Context, repo string, id int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open asset %s", path)
	}
	defer f.Close()

	name := filepath.Base(path)
	u := fmt.Sprintf("%s/repos/%s/releases/%d/assets?name=%s", c.UploadURL, repo, id, url.QueryEscape(name))

	// Uploads can take far longer than an API call.
	uploader := &http.Client{Transport: c.httpClient().Transport}
	req, err := c.newRequest(ctx, http.MethodPost, u, f, "application/vnd.android.package-archive")
	if err != nil {
		return err
	}
	if st, err := f.Stat(); err == nil {
		req.ContentLength = st.Size()
	}

	resp, err := uploader.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to upload %s", name)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API failed: upload %s returned %d: %s", name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	log.Infof("Uploaded %s", name)
	return nil
}

// DeleteRelease deletes the release of repo tagged tag. The tag itself is kept.
func (c *Client) DeleteRelease(ctx context.Context, repo, tag string) error {
	rel, err := c.ReleaseByTag(ctx, repo, tag)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/repos/%s/releases/%d", c.BaseURL, repo, rel.ID)
	return c.do(ctx, http.MethodDelete, u, nil, "", nil, http.StatusNoContent)
}

// DeleteTagRef deletes refs/tags/tag of repo through the API.
func (c *Client) DeleteTagRef(ctx context.Context, repo, tag string) error {
	u := fmt.Sprintf("%s/repos/%s/git/refs/tags/%s", c.BaseURL, repo, url.PathEscape(tag))
	return c.do(ctx, http.MethodDelete, u, nil, "", nil, http.StatusNoContent)
}

// DispatchWorkflow starts workflow of repo on ref with the given inputs.
func (c *Client) DispatchWorkflow(ctx context.Context, repo, workflow, ref string, inputs map[string]string) error {
	payload := struct {
		Ref    string            `json:"ref"`
		Inputs map[string]string `json:"inputs,omitempty"`
	}{Ref: ref, Inputs: inputs}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode dispatch")
	}
	u := fmt.Sprintf("%s/repos/%s/actions/workflows/%s/dispatches", c.BaseURL, repo, url.PathEscape(workflow))
	return c.do(ctx, http.MethodPost, u, bytes.NewReader(body), "application/json", nil, http.StatusNoContent)
}

// BlobToRaw rewrites a github.com blob link into its raw.githubusercontent.com form.
// Other URLs are returned unchanged.
func BlobToRaw(u string) string {
	if strings.Contains(u, "github.com") && strings.Contains(u, "/blob/") {
		u = strings.Replace(u, "https://github.com/", "https://raw.githubusercontent.com/", 1)
		return strings.Replace(u, "/blob/", "/", 1)
	}
	return u
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// isAPIHost reports whether u points at the API or upload host. The token is
// never sent anywhere else.
func (c *Client) isAPIHost(u *url.URL) bool {
	for _, base := range []string{c.BaseURL, c.UploadURL} {
		b, err := url.Parse(base)
		if err == nil && b.Host != "" && strings.EqualFold(b.Host, u.Host) {
			return true
		}
	}
	return false
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request for %s", u)
	}
	req.Header.Set("User-Agent", "peachmeow")
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" && c.isAPIHost(req.URL) {
		req.Header.Set("Authorization", "token "+c.Token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader, contentType string, out any, want int) error {
	req, err := c.newRequest(ctx, method, u, body, contentType)
	if err != nil {
		return err
	}

	log.Debugf("GitHub API: %s %s", method, u)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return errors.Wrapf(err, "GitHub API failed: %s", u)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API failed: %s returned %d: %s", u, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s", u)
	}
	return nil
}
