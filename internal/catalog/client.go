package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const albumQuery = `*[_type == "album" && _id in $ids]{_id, title, artist, year, genre, "coverImage": coverImage.asset->url}`

// Client queries the content store's HTTP query endpoint. One Client is
// shared across requests; per-call deadlines come from the configured
// timeout, never from a held lock.
type Client struct {
	baseURL string
	dataset string
	token   string
	http    *http.Client
}

func NewClient(baseURL, dataset, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		dataset: dataset,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Albums resolves a set of album ids in a single batched query. Ids the
// store does not know are silently absent from the result; only transport
// failures, timeouts and server errors become ErrUnavailable.
func (c *Client) Albums(ctx context.Context, ids []string) (map[string]Album, error) {
	if len(ids) == 0 {
		return map[string]Album{}, nil
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal album ids: %w", err)
	}

	params := url.Values{}
	params.Set("query", albumQuery)
	params.Set("$ids", string(idsJSON))

	endpoint := fmt.Sprintf("%s/v2022-03-07/data/query/%s?%s", c.baseURL, c.dataset, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Result []Album `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	albums := make(map[string]Album, len(body.Result))
	for _, album := range body.Result {
		albums[album.ID] = album
	}
	return albums, nil
}
