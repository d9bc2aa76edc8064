// Package ytmusic is the catalog search collaborator: free-text queries
// against the YouTube Music InnerTube API, reduced to track descriptors.
package ytmusic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/tgym/config"
	"github.com/xeptore/tgym/errutil"
	"github.com/xeptore/tgym/grab"
	"github.com/xeptore/tgym/httputil"
)

const (
	searchURL = "https://music.youtube.com/youtubei/v1/search"

	clientName    = "WEB_REMIX"
	clientVersion = "1.20250203.01.00"

	// songsFilterParams restricts search results to the songs shelf.
	songsFilterParams = "EgWKAQIIAWoMEA4QChADEAQQCRAF"
)

var ErrUnavailable = errors.New("catalog search is unavailable")

type Client struct {
	http   *http.Client
	logger zerolog.Logger
}

func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		http:   &http.Client{}, //nolint:exhaustruct
		logger: logger,
	}
}

type searchRequest struct {
	Context searchContext `json:"context"`
	Query   string        `json:"query"`
	Params  string        `json:"params"`
}

type searchContext struct {
	Client searchClient `json:"client"`
}

type searchClient struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	HL            string `json:"hl"`
}

// Search returns up to limit song descriptors ranked by the catalog. An empty
// result set is not an error; only service unavailability is.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]grab.TrackDescriptor, error) {
	reqBody, err := json.Marshal(searchRequest{
		Context: searchContext{
			Client: searchClient{ClientName: clientName, ClientVersion: clientVersion, HL: "en"},
		},
		Query:  query,
		Params: songsFilterParams,
	})
	if nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to marshal search request body: %v", err)).Append(flawP)
	}

	reqCtx, cancel := context.WithTimeout(ctx, config.SearchRequestTimeout)
	defer cancel()

	var respBody []byte
	op := func() error {
		// Each attempt gets its own deadline; reqCtx stays the overall cap.
		// A single shared deadline would let one stalled request eat the
		// whole retry budget.
		attemptCtx, cancel := context.WithTimeout(reqCtx, config.SearchAttemptTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, searchURL, bytes.NewReader(reqBody))
		if nil != err {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", "https://music.youtube.com")

		resp, err := c.http.Do(req)
		if nil != err {
			if errutil.IsContext(reqCtx) {
				return backoff.Permanent(reqCtx.Err())
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("search endpoint responded with %s", resp.Status)
		default:
			flawP := flaw.P{"response": errutil.HTTPResponseFlawPayload(resp)}
			return backoff.Permanent(flaw.From(fmt.Errorf("search endpoint responded with unexpected status %s", resp.Status)).Append(flawP))
		}

		b, err := httputil.ReadResponseBody(attemptCtx, resp)
		if nil != err {
			if errutil.IsContext(reqCtx) {
				return backoff.Permanent(reqCtx.Err())
			}
			if errutil.IsTimeout(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		respBody = b
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), reqCtx)
	if err := backoff.Retry(op, bo); nil != err {
		switch {
		case errutil.IsContext(reqCtx):
			return nil, reqCtx.Err()
		case errutil.IsFlaw(err):
			return nil, err
		default:
			c.logger.Warn().Err(err).Msg("Catalog search request failed after retries")
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return parseSearchResponse(respBody, limit), nil
}

// parseSearchResponse walks the InnerTube renderer tree and extracts the song
// shelf items. Unrecognized nodes are skipped rather than failed on: the tree
// shape shifts frequently and a partial result beats none.
func parseSearchResponse(b []byte, limit int) []grab.TrackDescriptor {
	var out []grab.TrackDescriptor

	sections := gjson.GetBytes(b, "contents.tabbedSearchResultsRenderer.tabs.0.tabRenderer.content.sectionListRenderer.contents")
	sections.ForEach(func(_, section gjson.Result) bool {
		items := section.Get("musicShelfRenderer.contents")
		items.ForEach(func(_, item gjson.Result) bool {
			if len(out) >= limit {
				return false
			}
			renderer := item.Get("musicResponsiveListItemRenderer")
			if !renderer.Exists() {
				return true
			}

			videoID := renderer.Get("playlistItemData.videoId").String()
			title := renderer.Get("flexColumns.0.musicResponsiveListItemFlexColumnRenderer.text.runs.0.text").String()
			if videoID == "" || title == "" {
				return true
			}

			out = append(out, grab.TrackDescriptor{
				Title:        title,
				Artist:       artistsOf(renderer),
				SourceID:     videoID,
				ThumbnailURL: thumbnailOf(renderer),
			})
			return true
		})
		return len(out) < limit
	})

	return out
}

func artistsOf(renderer gjson.Result) string {
	var artists []grab.Artist
	runs := renderer.Get("flexColumns.1.musicResponsiveListItemFlexColumnRenderer.text.runs")
	runs.ForEach(func(_, run gjson.Result) bool {
		pageType := run.Get("navigationEndpoint.browseEndpoint.browseEndpointContextSupportedConfigs.browseEndpointContextMusicConfig.pageType").String()
		if pageType == "MUSIC_PAGE_TYPE_ARTIST" {
			artists = append(artists, grab.Artist{Name: run.Get("text").String()})
		}
		return true
	})
	if len(artists) == 0 {
		if text := runs.Get("0.text").String(); text != "" {
			artists = append(artists, grab.Artist{Name: text})
		}
	}
	return grab.JoinArtists(artists)
}

func thumbnailOf(renderer gjson.Result) string {
	thumbs := renderer.Get("thumbnail.musicThumbnailRenderer.thumbnail.thumbnails").Array()
	if len(thumbs) == 0 {
		return ""
	}
	return thumbs[len(thumbs)-1].Get("url").String()
}
