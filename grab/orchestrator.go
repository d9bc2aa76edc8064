package grab

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/xeptore/tgym/grab/fs"
	"github.com/xeptore/tgym/ratelimit"
)

// Orchestrator drives the candidate chain for one track at a time: probe each
// candidate in order, fetch on the first successful probe, walk the secondary
// selector chain on fetch failure, and guarantee that at most one file
// survives the run on disk.
type Orchestrator struct {
	gen          Generator
	fetcher      *Fetcher
	dir          fs.DownloadDir
	logger       zerolog.Logger
	attemptPause func() time.Duration
}

func NewOrchestrator(gen Generator, fetcher *Fetcher, dir fs.DownloadDir, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		gen:          gen,
		fetcher:      fetcher,
		dir:          dir,
		logger:       logger,
		attemptPause: ratelimit.CandidateAttemptSleep,
	}
}

// Run resolves and fetches one track. It returns the artifact path, or an
// *ExhaustedError once every candidate has failed. Candidates execute
// strictly sequentially: parallel probing against the same catalog would
// amplify the rate limiting the chain exists to evade.
//
// Before returning on any path, every file in the download directory whose
// name contains one of the run's source identifiers is removed, except the
// returned artifact.
func (o *Orchestrator) Run(ctx context.Context, track TrackDescriptor) (artifactPath string, err error) {
	ids := []string{track.SourceID}

	defer func() {
		if r := recover(); nil != r {
			if cleanupErr := o.dir.CleanupRun(ids, ""); nil != cleanupErr {
				o.logger.Error().Err(cleanupErr).Msg("Run cleanup after panic failed")
			}
			panic(r)
		}
		keep := ""
		if nil == err {
			keep = artifactPath
		}
		if cleanupErr := o.dir.CleanupRun(ids, keep); nil != cleanupErr {
			o.logger.Error().Err(cleanupErr).Msg("Run cleanup failed")
		}
	}()

	cands := o.gen.Generate(track)
	if len(cands) == 0 {
		return "", &ExhaustedError{Attempted: 0, LastReason: "no candidates"}
	}

	var (
		attempted  int
		lastReason string
	)
	for i, cand := range cands {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(o.attemptPause()):
			}
		}

		attempted++
		logger := o.logger.With().
			Int("candidate", i+1).
			Str("locator", cand.Locator).
			Str("auth", cand.Auth.String()).
			Bool("alternate_network_path", cand.AlternateNetworkPath).
			Logger()

		src, unres := o.fetcher.Probe(ctx, cand)
		if nil != unres {
			lastReason = unres.Reason
			logger.Warn().Str("reason", unres.Reason).Msg("Probe failed, advancing fallback chain")
			continue
		}
		ids = append(ids, src.ID)
		logger.Debug().Str("resolved_id", src.ID).Int("variants", len(src.Variants)).Msg("Probe succeeded")

		selectors := lo.Uniq(append([]string{SelectExpression(src.Variants)}, FallbackSelectors...))
		for _, selector := range selectors {
			path, unres := o.fetcher.Fetch(ctx, src, selector, cand.Auth, track.Title)
			if nil != unres {
				lastReason = unres.Reason
				logger.Warn().Str("selector", selector).Str("reason", unres.Reason).Msg("Fetch failed, trying next selector")
				continue
			}
			logger.Info().Str("artifact", path).Msg("Fetch succeeded")
			return path, nil
		}
		logger.Warn().Msg("All selectors failed for resolved source, abandoning candidate")
	}

	return "", &ExhaustedError{Attempted: attempted, LastReason: lastReason}
}
