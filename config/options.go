package config

import "time"

var (
	SearchRequestTimeout     = 10 * time.Second
	SearchAttemptTimeout     = 3 * time.Second
	ThumbnailDownloadTimeout = 5 * time.Second
	ProbeTimeout             = 30 * time.Second
	FetchTimeout             = 5 * time.Minute
)
