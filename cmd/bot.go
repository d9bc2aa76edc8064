package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/styling"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/iyear/tdl/core/dcpool"
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"
	"gopkg.in/matryer/try.v1"

	"github.com/xeptore/tgym/cache"
	"github.com/xeptore/tgym/config"
	"github.com/xeptore/tgym/errutil"
	"github.com/xeptore/tgym/grab"
	"github.com/xeptore/tgym/httputil"
	"github.com/xeptore/tgym/log"
	"github.com/xeptore/tgym/must"
	"github.com/xeptore/tgym/pool"
	sessionstore "github.com/xeptore/tgym/session"
	"github.com/xeptore/tgym/tgutil"
	"github.com/xeptore/tgym/waitqueue"
	"github.com/xeptore/tgym/ytmusic"
)

type Worker struct {
	config   *config.Config
	client   *telegram.Client
	api      *tg.Client
	sender   *message.Sender
	store    *sessionstore.Store
	cache    *cache.Cache
	runs     *pool.Pool
	wq       *waitqueue.WaitQueue
	searcher *ytmusic.Client
	orch     *grab.Orchestrator
	logger   zerolog.Logger
}

func (w *Worker) newUploader(ctx context.Context) (*uploader.Uploader, func() error) {
	p := dcpool.NewPool(w.client, 8, tgutil.DefaultMiddlewares(ctx)...)
	return uploader.NewUploader(p.Default(ctx)).WithPartSize(uploader.MaximumPartSize).WithThreads(4), p.Close
}

func buildOnMessage(w *Worker, msgCtx context.Context) func(context.Context, tg.Entities, *tg.UpdateNewMessage) error {
	return func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		m, ok := update.Message.(*tg.Message)
		if !ok || m.Out {
			return nil
		}
		u, ok := m.PeerID.(*tg.PeerUser)
		if !ok || !slices.Contains(w.config.FromIDs, u.UserID) {
			return nil
		}
		reply := w.sender.Reply(e, update)

		msg := strings.TrimSpace(m.Message)
		if msg == "/start" {
			lines := []styling.StyledTextOption{
				styling.Plain("Send me a song name and I will find it for you."),
			}
			if _, err := reply.StyledText(msgCtx, lines...); nil != err {
				if errors.Is(msgCtx.Err(), context.Canceled) {
					return nil
				}
				flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
				w.logger.Error().Func(log.Flaw(flaw.From(err).Append(flawP))).Msg("Failed to send reply")
			}
			return nil
		}
		if msg == "" || strings.HasPrefix(msg, "/") {
			return nil
		}

		w.handleSearch(ctx, msgCtx, u.UserID, msg, reply)
		return nil
	}
}

func (w *Worker) handleSearch(ctx, msgCtx context.Context, requesterID int64, query string, reply *message.Builder) {
	logger := w.logger.With().Int64("requester_id", requesterID).Str("query", query).Logger()

	results, err := w.searcher.Search(ctx, query, w.config.SearchLimit)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return
		case errors.Is(err, ytmusic.ErrUnavailable), errutil.IsTimeout(err):
			logger.Warn().Err(err).Msg("Catalog search is unavailable")
			w.replyText(msgCtx, reply, "Search is currently unavailable. Try again in a bit.")
		case errutil.IsFlaw(err):
			logger.Error().Func(log.Flaw(err)).Msg("Catalog search failed")
			w.replyText(msgCtx, reply, "Search failed due to an internal error.")
		default:
			panic(errutil.UnknownError(err))
		}
		return
	}
	if len(results) == 0 {
		w.replyText(msgCtx, reply, "No songs matched your query.")
		return
	}

	w.store.RecordResults(requesterID, results)
	logger.Debug().Int("results", len(results)).Msg("Search session recorded")
	w.sendResultCard(msgCtx, requesterID, reply)
}

func (w *Worker) replyText(ctx context.Context, reply *message.Builder, text string) {
	if _, err := reply.Text(ctx, text); nil != err {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		w.logger.Error().Func(log.Flaw(flaw.From(err).Append(flawP))).Msg("Failed to send reply")
	}
}

func cardCaption(track grab.TrackDescriptor, cursor, total int) string {
	return fmt.Sprintf("%s\n%s\n\n%d of %d", track.Title, track.Artist, cursor+1, total)
}

// sendResultCard replies with the current search result of the requester, as a
// thumbnail photo when one is available, with Prev/Next/Download buttons.
func (w *Worker) sendResultCard(ctx context.Context, requesterID int64, reply *message.Builder) {
	track, ok := w.store.Current(requesterID)
	if !ok {
		return
	}
	cursor, total, ok := w.store.Position(requesterID)
	if !ok {
		return
	}

	var (
		caption = cardCaption(track, cursor, total)
		markup  = tgutil.ResultKeyboard(cursor > 0, cursor < total-1)
	)

	if track.ThumbnailURL != "" {
		thumb, err := w.uploadedThumbnail(ctx, track.ThumbnailURL)
		if nil != err {
			if errutil.IsContext(ctx) {
				return
			}
			w.logger.Warn().Err(err).Str("thumbnail_url", track.ThumbnailURL).Msg("Thumbnail unavailable, sending text card")
		} else {
			photo := message.UploadedPhoto(thumb, styling.Plain(caption))
			if _, err := reply.Markup(markup).Media(ctx, photo); nil != err {
				if errors.Is(ctx.Err(), context.Canceled) {
					return
				}
				flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
				w.logger.Error().Func(log.Flaw(flaw.From(err).Append(flawP))).Msg("Failed to send result card")
			}
			return
		}
	}

	if _, err := reply.Markup(markup).Text(ctx, caption); nil != err {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		w.logger.Error().Func(log.Flaw(flaw.From(err).Append(flawP))).Msg("Failed to send result card")
	}
}

// uploadedThumbnail downloads the thumbnail within its own deadline, memoizing
// the bytes so Prev/Next flips over the same result set hit the network once.
func (w *Worker) uploadedThumbnail(ctx context.Context, thumbnailURL string) (tg.InputFileClass, error) {
	item, err := w.cache.Thumbnails.Fetch(thumbnailURL, cache.DefaultThumbnailTTL, func() ([]byte, error) {
		reqCtx, cancel := context.WithTimeout(ctx, config.ThumbnailDownloadTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, thumbnailURL, nil)
		if nil != err {
			return nil, fmt.Errorf("failed to create thumbnail request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if nil != err {
			if errutil.IsContext(reqCtx) {
				return nil, reqCtx.Err()
			}
			return nil, fmt.Errorf("failed to download thumbnail: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("thumbnail endpoint responded with %s", resp.Status)
		}
		return httputil.ReadResponseBody(reqCtx, resp)
	})
	if nil != err {
		return nil, err
	}
	return uploader.NewUploader(w.api).FromBytes(ctx, "thumbnail.jpg", item.Value())
}

func buildOnCallbackQuery(w *Worker, msgCtx context.Context) func(context.Context, tg.Entities, *tg.UpdateBotCallbackQuery) error {
	return func(ctx context.Context, e tg.Entities, u *tg.UpdateBotCallbackQuery) error {
		if !slices.Contains(w.config.FromIDs, u.UserID) {
			return nil
		}
		peer, ok := tgutil.InputPeer(e, u.Peer)
		if !ok {
			w.logger.Warn().Msg("Failed to resolve callback query peer against update entities")
			return nil
		}

		switch data := string(u.Data); data {
		case tgutil.CallbackPrev, tgutil.CallbackNext:
			w.answerCallback(msgCtx, u.QueryID, "", false)
			delta := 1
			if data == tgutil.CallbackPrev {
				delta = -1
			}
			w.store.Advance(u.UserID, delta)
			w.editResultCard(msgCtx, peer, u.MsgID, u.UserID)
		case tgutil.CallbackDownload:
			track, ok := w.store.Current(u.UserID)
			if !ok {
				w.answerCallback(msgCtx, u.QueryID, "Search for a song first.", true)
				return nil
			}
			if err := w.runs.TryGo(func() { w.runDownload(msgCtx, peer, track) }); nil != err {
				if errors.Is(err, pool.ErrSaturated) {
					w.answerCallback(msgCtx, u.QueryID, "Too many downloads are in progress. Try again shortly.", true)
					return nil
				}
				panic(errutil.UnknownError(err))
			}
			w.answerCallback(msgCtx, u.QueryID, "", false)
		default:
			w.answerCallback(msgCtx, u.QueryID, "", false)
			w.logger.Warn().Str("data", data).Msg("Ignoring unknown callback query payload")
		}
		return nil
	}
}

func (w *Worker) answerCallback(ctx context.Context, queryID int64, text string, alert bool) {
	req := &tg.MessagesSetBotCallbackAnswerRequest{QueryID: queryID, Alert: alert} //nolint:exhaustruct
	if text != "" {
		req.SetMessage(text)
	}
	if _, err := w.api.MessagesSetBotCallbackAnswer(ctx, req); nil != err {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		w.logger.Warn().Err(err).Msg("Failed to answer callback query")
	}
}

// editResultCard rewrites an already sent result card in place after a
// Prev/Next flip.
func (w *Worker) editResultCard(ctx context.Context, peer tg.InputPeerClass, msgID int, requesterID int64) {
	track, ok := w.store.Current(requesterID)
	if !ok {
		return
	}
	cursor, total, ok := w.store.Position(requesterID)
	if !ok {
		return
	}

	//nolint:exhaustruct
	req := &tg.MessagesEditMessageRequest{Peer: peer, ID: msgID}
	req.SetMessage(cardCaption(track, cursor, total))
	req.SetReplyMarkup(tgutil.ResultKeyboard(cursor > 0, cursor < total-1))

	if track.ThumbnailURL != "" {
		thumb, err := w.uploadedThumbnail(ctx, track.ThumbnailURL)
		if nil != err {
			if errutil.IsContext(ctx) {
				return
			}
			w.logger.Warn().Err(err).Str("thumbnail_url", track.ThumbnailURL).Msg("Thumbnail unavailable, keeping previous card media")
		} else {
			req.SetMedia(&tg.InputMediaUploadedPhoto{File: thumb}) //nolint:exhaustruct
		}
	}

	if _, err := w.api.MessagesEditMessage(ctx, req); nil != err {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		w.logger.Warn().Err(err).Int("message_id", msgID).Msg("Failed to edit result card")
	}
}

// runDownload executes one download run end to end on a pool worker: status
// message, orchestrated fetch, audio upload, artifact removal.
func (w *Worker) runDownload(ctx context.Context, peer tg.InputPeerClass, track grab.TrackDescriptor) {
	logger := w.logger.With().Str("title", track.Title).Str("source_id", track.SourceID).Logger()
	logger.Info().Msg("Starting download run")

	w.notify(ctx, peer, fmt.Sprintf("⏳ Fetching %s by %s. This may take a while.", track.Title, track.Artist))

	artifactPath, err := w.orch.Run(ctx, track)
	if nil != err {
		var exhausted *grab.ExhaustedError
		switch {
		case errutil.IsContext(ctx):
			logger.Info().Msg("Download run canceled")
		case errors.As(err, &exhausted):
			logger.Warn().
				Int("attempted", exhausted.Attempted).
				Str("last_reason", exhausted.LastReason).
				Msg("Every fetch candidate failed")
			w.notify(ctx, peer, fmt.Sprintf(
				"❌ Could not fetch %s. Gave up after %d attempts. Last failure: %s",
				track.Title, exhausted.Attempted, exhausted.LastReason,
			))
		case errutil.IsFlaw(err):
			logger.Error().Func(log.Flaw(err)).Msg("Download run failed")
			w.notify(ctx, peer, "❌ Download failed due to an internal error.")
			w.reportFlaw(ctx, peer, err)
		default:
			panic(errutil.UnknownError(err))
		}
		return
	}

	if err := w.uploadAudio(ctx, peer, track, artifactPath); nil != err {
		switch {
		case errutil.IsContext(ctx):
		case errutil.IsFlaw(err):
			logger.Error().Func(log.Flaw(err)).Msg("Audio upload failed")
			w.notify(ctx, peer, fmt.Sprintf("❌ Fetched %s but failed to deliver it.", track.Title))
			w.reportFlaw(ctx, peer, err)
		default:
			logger.Error().Err(err).Msg("Audio upload failed")
			w.notify(ctx, peer, fmt.Sprintf("❌ Fetched %s but failed to deliver it.", track.Title))
		}
		return
	}

	if err := os.Remove(artifactPath); nil != err && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Str("artifact", artifactPath).Msg("Failed to remove delivered artifact")
	}
	logger.Info().Str("artifact", artifactPath).Msg("Track delivered")
}

// reportFlaw uploads the flaw record as a YAML document so the full diagnostic
// payload survives even when the log stream is gone.
func (w *Worker) reportFlaw(ctx context.Context, peer tg.InputPeerClass, flawErr error) {
	flawBytes, err := errutil.FlawToYAML(must.BeFlaw(flawErr))
	if nil != err {
		w.logger.Error().Func(log.Flaw(err)).Msg("Failed to convert flaw to YAML")
		return
	}

	up, cancel := w.newUploader(ctx)
	defer func() {
		if cancelErr := cancel(); nil != cancelErr {
			flawP := flaw.P{"err_debug_tree": errutil.Tree(cancelErr).FlawP()}
			w.logger.Error().Func(log.Flaw(flaw.From(cancelErr).Append(flawP))).Msg("Failed to close uploader pool")
		}
	}()

	upload, err := up.FromReader(ctx, "flaw.yaml", bytes.NewReader(flawBytes))
	if nil != err {
		if errutil.IsContext(ctx) {
			return
		}
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		w.logger.Error().Func(log.Flaw(flaw.From(err).Append(flawP))).Msg("Failed to upload flaw YAML")
		return
	}

	document := message.UploadedDocument(upload)
	document.
		MIME("application/yaml").
		Attributes(
			&tg.DocumentAttributeFilename{
				FileName: fmt.Sprintf("flaw-%s.yaml", time.Now().Format("2006-01-02-15-04-05")),
			},
		).
		ForceFile(true)
	if _, err := w.sender.To(peer).Media(ctx, document); nil != err {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		w.logger.Error().Func(log.Flaw(flaw.From(err).Append(flawP))).Msg("Failed to send flaw document")
	}
}

// notify sends one best-effort status message through the wait queue so
// concurrent runs stay within the send cap.
func (w *Worker) notify(ctx context.Context, peer tg.InputPeerClass, text string) {
	err := w.wq.SendSingle(ctx, func() error {
		_, err := w.sender.To(peer).Text(ctx, text)
		return err
	})
	if nil != err && !errutil.IsContext(ctx) {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		w.logger.Error().Func(log.Flaw(flaw.From(err).Append(flawP))).Msg("Failed to send status message")
	}
}

func (w *Worker) uploadAudio(ctx context.Context, peer tg.InputPeerClass, track grab.TrackDescriptor, artifactPath string) (err error) {
	up, cancel := w.newUploader(ctx)
	defer func() {
		if cancelErr := cancel(); nil != cancelErr {
			flawP := flaw.P{"err_debug_tree": errutil.Tree(cancelErr).FlawP()}
			w.logger.Error().Func(log.Flaw(flaw.From(cancelErr).Append(flawP))).Msg("Failed to close uploader pool")
		}
	}()

	return try.Do(func(attempt int) (retry bool, err error) {
		const maxAttempts = 3
		attemptRemained := attempt < maxAttempts
		time.Sleep(time.Duration(attempt-1) * 3 * time.Second)

		upload, err := up.FromPath(ctx, artifactPath)
		if nil != err {
			if errutil.IsContext(ctx) {
				return false, ctx.Err()
			}
			flawP := flaw.P{"artifact_path": artifactPath, "err_debug_tree": errutil.Tree(err).FlawP()}
			return attemptRemained, flaw.From(fmt.Errorf("failed to upload audio file: %v", err)).Append(flawP)
		}

		document := message.UploadedDocument(upload, styling.Plain(track.Title+"\n"+track.Artist))
		document.
			MIME("audio/mpeg").
			Attributes(
				&tg.DocumentAttributeFilename{
					FileName: filepath.Base(artifactPath),
				},
				//nolint:exhaustruct
				&tg.DocumentAttributeAudio{
					Title:     track.Title,
					Performer: track.Artist,
				},
			).
			Audio()
		if _, err := w.sender.To(peer).Media(ctx, document); nil != err {
			if errutil.IsContext(ctx) {
				return false, ctx.Err()
			}
			flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
			return attemptRemained, flaw.From(fmt.Errorf("failed to send audio message: %v", err)).Append(flawP)
		}
		return false, nil
	})
}
