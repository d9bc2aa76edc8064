package ytmusic

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchResponseFixture = `{
	"contents": {
		"tabbedSearchResultsRenderer": {
			"tabs": [
				{
					"tabRenderer": {
						"content": {
							"sectionListRenderer": {
								"contents": [
									{"messageRenderer": {"text": "ignored"}},
									{
										"musicShelfRenderer": {
											"contents": [
												{
													"musicResponsiveListItemRenderer": {
														"playlistItemData": {"videoId": "abc123"},
														"thumbnail": {
															"musicThumbnailRenderer": {
																"thumbnail": {
																	"thumbnails": [
																		{"url": "https://i.ytimg.com/small.jpg", "width": 60},
																		{"url": "https://i.ytimg.com/large.jpg", "width": 400}
																	]
																}
															}
														},
														"flexColumns": [
															{
																"musicResponsiveListItemFlexColumnRenderer": {
																	"text": {"runs": [{"text": "Song A"}]}
																}
															},
															{
																"musicResponsiveListItemFlexColumnRenderer": {
																	"text": {
																		"runs": [
																			{
																				"text": "Artist B",
																				"navigationEndpoint": {
																					"browseEndpoint": {
																						"browseEndpointContextSupportedConfigs": {
																							"browseEndpointContextMusicConfig": {"pageType": "MUSIC_PAGE_TYPE_ARTIST"}
																						}
																					}
																				}
																			},
																			{"text": " & "},
																			{
																				"text": "Artist C",
																				"navigationEndpoint": {
																					"browseEndpoint": {
																						"browseEndpointContextSupportedConfigs": {
																							"browseEndpointContextMusicConfig": {"pageType": "MUSIC_PAGE_TYPE_ARTIST"}
																						}
																					}
																				}
																			}
																		]
																	}
																}
															}
														]
													}
												},
												{
													"musicResponsiveListItemRenderer": {
														"playlistItemData": {"videoId": "def456"},
														"flexColumns": [
															{
																"musicResponsiveListItemFlexColumnRenderer": {
																	"text": {"runs": [{"text": "Song B"}]}
																}
															},
															{
																"musicResponsiveListItemFlexColumnRenderer": {
																	"text": {"runs": [{"text": "Unlinked Artist"}]}
																}
															}
														]
													}
												},
												{
													"musicResponsiveListItemRenderer": {
														"flexColumns": [
															{
																"musicResponsiveListItemFlexColumnRenderer": {
																	"text": {"runs": [{"text": "No Video Id"}]}
																}
															}
														]
													}
												}
											]
										}
									}
								]
							}
						}
					}
				}
			]
		}
	}
}`

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	statuses := []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusOK}
	var deadlines []time.Time
	var calls int
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		deadline, ok := req.Context().Deadline()
		require.True(t, ok)
		deadlines = append(deadlines, deadline)

		status := statuses[calls]
		calls++
		body := "upstream error"
		if status == http.StatusOK {
			body = searchResponseFixture
		}
		return &http.Response{ //nolint:exhaustruct
			StatusCode: status,
			Status:     http.StatusText(status),
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	})
	c := &Client{
		http:   &http.Client{Transport: transport}, //nolint:exhaustruct
		logger: zerolog.Nop(),
	}

	tracks, err := c.Search(t.Context(), "song a", 5)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, 3, calls)

	// Each attempt carries its own deadline instead of sharing the first one.
	require.Len(t, deadlines, 3)
	assert.True(t, deadlines[1].After(deadlines[0]))
	assert.True(t, deadlines[2].After(deadlines[1]))
}

func TestParseSearchResponse(t *testing.T) {
	t.Parallel()

	t.Run("extracts_songs", func(t *testing.T) {
		t.Parallel()

		tracks := parseSearchResponse([]byte(searchResponseFixture), 5)
		require.Len(t, tracks, 2)

		assert.Equal(t, "Song A", tracks[0].Title)
		assert.Equal(t, "Artist B, Artist C", tracks[0].Artist)
		assert.Equal(t, "abc123", tracks[0].SourceID)
		assert.Equal(t, "https://i.ytimg.com/large.jpg", tracks[0].ThumbnailURL)

		assert.Equal(t, "Song B", tracks[1].Title)
		assert.Equal(t, "Unlinked Artist", tracks[1].Artist, "falls back to the first run when no artist link exists")
		assert.Empty(t, tracks[1].ThumbnailURL)
	})

	t.Run("honors_limit", func(t *testing.T) {
		t.Parallel()

		tracks := parseSearchResponse([]byte(searchResponseFixture), 1)
		require.Len(t, tracks, 1)
		assert.Equal(t, "abc123", tracks[0].SourceID)
	})

	t.Run("empty_body", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, parseSearchResponse([]byte(`{}`), 5))
	})
}
