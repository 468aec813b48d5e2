// Package honeycomb talks to the Honeycomb API on behalf of the installer.
package honeycomb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAPIURL is the public Honeycomb API.
const DefaultAPIURL = "https://api.honeycomb.io"

// UIURL is the base of links into the Honeycomb UI.
const UIURL = "https://ui.honeycomb.io"

// ErrTeamLookup means the write key could not be resolved to a team.
var ErrTeamLookup = errors.New("there was an error resolving your Team Name, please verify your write key and try again, or let us know what happened")

// Client resolves write keys.
type Client struct {
	APIURL    string // DefaultAPIURL when empty
	HTTP      *http.Client
	UserAgent string
}

// TeamSlug turns a write key into the team slug used in UI links.
// Any non-200 answer fails, with the response body included in the error.
func (c *Client) TeamSlug(ctx context.Context, writeKey string) (string, error) {
	base := c.APIURL
	if base == "" {
		base = DefaultAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/1/team_slug", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTeamLookup, err)
	}
	req.Header.Set("X-Honeycomb-Team", writeKey)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTeamLookup, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTeamLookup, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w\n\t%s", ErrTeamLookup, strings.TrimSpace(string(body)))
	}

	var payload struct {
		TeamSlug string `json:"team_slug"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.TeamSlug == "" {
		return "", fmt.Errorf("%w: unexpected response %q", ErrTeamLookup, strings.TrimSpace(string(body)))
	}
	return payload.TeamSlug, nil
}

// DatasetURL links to a dataset in the Honeycomb UI.
// Dataset names are lower-cased and path-escaped the way the UI addresses them.
func DatasetURL(teamSlug, dataset string) string {
	return fmt.Sprintf("%s/%s/datasets/%s", UIURL, teamSlug, url.PathEscape(strings.ToLower(dataset)))
}
