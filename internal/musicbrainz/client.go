package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

const coverArtBase = "https://coverartarchive.org/release-group"

// Client queries the MusicBrainz web service. One Client is shared across
// requests; the User-Agent identifies this deployment as MusicBrainz's
// usage policy requires.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

// SearchArtists returns up to ten candidates for an autocomplete query.
// Queries shorter than two characters return nothing without a request.
func (c *Client) SearchArtists(ctx context.Context, query string) ([]Artist, error) {
	if len(query) < 2 {
		return []Artist{}, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("fmt", "json")
	params.Set("limit", "10")

	var body struct {
		Artists []struct {
			ID             string `json:"id"`
			Name           string `json:"name"`
			SortName       string `json:"sort-name"`
			Disambiguation string `json:"disambiguation"`
			Country        string `json:"country"`
		} `json:"artists"`
	}
	if err := c.get(ctx, "/ws/2/artist?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	artists := make([]Artist, 0, len(body.Artists))
	for _, artist := range body.Artists {
		artists = append(artists, Artist{
			ID:             artist.ID,
			Name:           artist.Name,
			SortName:       artist.SortName,
			Disambiguation: artist.Disambiguation,
			Country:        artist.Country,
		})
	}
	return artists, nil
}

// ArtistReleases returns the artist's studio albums, oldest first.
// Release groups stand in for albums so each album appears once;
// compilations, live albums and remixes are filtered out.
func (c *Client) ArtistReleases(ctx context.Context, artistID string) ([]Release, error) {
	params := url.Values{}
	params.Set("artist", artistID)
	params.Set("type", "album")
	params.Set("fmt", "json")
	params.Set("limit", "100")

	var body struct {
		ReleaseGroups []struct {
			ID               string   `json:"id"`
			Title            string   `json:"title"`
			PrimaryType      string   `json:"primary-type"`
			SecondaryTypes   []string `json:"secondary-types"`
			FirstReleaseDate string   `json:"first-release-date"`
		} `json:"release-groups"`
	}
	if err := c.get(ctx, "/ws/2/release-group?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	releases := make([]Release, 0, len(body.ReleaseGroups))
	for _, group := range body.ReleaseGroups {
		if group.PrimaryType != "Album" || hasExcludedType(group.SecondaryTypes) {
			continue
		}
		release := Release{
			ID:          group.ID,
			Title:       group.Title,
			ReleaseDate: group.FirstReleaseDate,
			CoverURL:    fmt.Sprintf("%s/%s/front-250", coverArtBase, group.ID),
		}
		if len(group.FirstReleaseDate) >= 4 {
			if year, err := strconv.Atoi(group.FirstReleaseDate[:4]); err == nil {
				release.Year = year
			}
		}
		releases = append(releases, release)
	}

	// Oldest first; undated releases at the end.
	sort.SliceStable(releases, func(i, j int) bool {
		if releases[i].Year == 0 {
			return false
		}
		if releases[j].Year == 0 {
			return true
		}
		return releases[i].Year < releases[j].Year
	})
	return releases, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func hasExcludedType(secondaryTypes []string) bool {
	for _, secondary := range secondaryTypes {
		switch secondary {
		case "Compilation", "Live", "Remix":
			return true
		}
	}
	return false
}
