package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/tgym/cache"
	"github.com/xeptore/tgym/config"
	"github.com/xeptore/tgym/constant"
	"github.com/xeptore/tgym/ctxutil"
	"github.com/xeptore/tgym/grab"
	"github.com/xeptore/tgym/grab/fs"
	"github.com/xeptore/tgym/log"
	"github.com/xeptore/tgym/pool"
	sessionstore "github.com/xeptore/tgym/session"
	"github.com/xeptore/tgym/tgutil"
	"github.com/xeptore/tgym/waitqueue"
	"github.com/xeptore/tgym/ytdlp"
	"github.com/xeptore/tgym/ytmusic"
)

const (
	flagConfigFilePath = "config"
)

func main() {
	logger := log.NewPretty(os.Stdout).Level(zerolog.TraceLevel)
	if err := godotenv.Load(); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Msg(".env file was not found")
		} else {
			logger.Fatal().Err(err).Msg("Failed to load .env file")
		}
	}

	//nolint:exhaustruct
	app := &cli.App{
		Name:     "tgym",
		Version:  constant.Version,
		Compiled: constant.CompileTime,
		Suggest:  true,
		Usage:    "Telegram YouTube Music Downloader",
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:    "run",
				Aliases: []string{"r"},
				Usage:   "Run the bot",
				Action:  run,
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:     flagConfigFilePath,
						Aliases:  []string{"c"},
						Usage:    "Config file path",
						Required: false,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			return
		}
		if flawErr := new(flaw.Flaw); errors.As(err, &flawErr) {
			logger.Fatal().Func(log.Flaw(flawErr)).Msg("Application exited with flaw")
			return
		}
		logger.Fatal().Err(err).Msg("Application exited with error")
	}
}

func run(cliCtx *cli.Context) (err error) {
	ctx, cancel := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.NewPretty(os.Stdout).Level(zerolog.TraceLevel)
	var (
		appHash  = os.Getenv("APP_HASH")
		cfgEnv   = os.Getenv("CONFIG")
		botToken = os.Getenv("BOT_TOKEN")
		cfg      *config.Config
	)
	cfgFilePath := cliCtx.String(flagConfigFilePath)
	switch {
	case cfgFilePath != "" && cfgEnv != "":
		return errors.New("config file path and config environment variable are both set. specify only one")
	case cfgFilePath == "" && cfgEnv == "":
		return errors.New("config file path and config environment variable are both empty. specify one")
	case cfgFilePath != "":
		logger.Debug().Str("config_file_path", cfgFilePath).Msg("Loading config from file")
		c, err := config.FromFile(cfgFilePath)
		if nil != err {
			return fmt.Errorf("failed to load config file: %v", err)
		}
		cfg = c
	default:
		logger.Debug().Msg("Loading config from environment variable")
		c, err := config.FromString(cfgEnv)
		if nil != err {
			return fmt.Errorf("failed to load config from environment variable: %v", err)
		}
		cfg = c
	}

	appID, err := strconv.Atoi(os.Getenv("APP_ID"))
	if nil != err {
		return errors.New("failed to parse APP_ID environment variable to integer")
	}

	downloadDir := fs.From(cfg.DownloadDir)
	if err := downloadDir.Create(); nil != err {
		return err
	}

	d := tg.NewUpdateDispatcher()
	updateHandler := updates.New(updates.Config{Handler: d}) //nolint:exhaustruct

	client := telegram.NewClient(
		appID,
		appHash,
		//nolint:exhaustruct
		telegram.Options{
			SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
			UpdateHandler:  updateHandler,
			MaxRetries:     -1,
			AckBatchSize:   100,
			AckInterval:    10 * time.Second,
			RetryInterval:  5 * time.Second,
			DialTimeout:    10 * time.Second,
			Device:         tgutil.Device,
			Middlewares:    tgutil.DefaultMiddlewares(ctx),
		},
	)
	logger.Debug().Msg("Telegram client initialized.")

	prim := ytdlp.New(
		os.Getenv("YTDLP_PATH"),
		cfg.CookiesFile,
		cfg.OAuthToken,
		logger.With().Str("module", "ytdlp").Logger(),
	)
	gen := grab.Generator{
		Mirrors:           cfg.Mirrors,
		HasCookieJar:      prim.HasCookieJar(),
		HasDelegatedToken: prim.HasDelegatedToken(),
	}
	fetcher := grab.NewFetcher(prim, downloadDir, logger.With().Str("module", "fetcher").Logger())

	wq := waitqueue.New(ctx)
	defer wq.Close()

	w := &Worker{
		config:   cfg,
		client:   client,
		api:      nil,
		sender:   nil,
		store:    sessionstore.NewStore(),
		cache:    cache.New(),
		runs:     pool.New(int64(cfg.MaxConcurrentRuns)),
		wq:       wq,
		searcher: ytmusic.NewClient(logger.With().Str("module", "ytmusic").Logger()),
		orch:     grab.NewOrchestrator(gen, fetcher, downloadDir, logger.With().Str("module", "orchestrator").Logger()),
		logger:   logger.With().Str("module", "worker").Logger(),
	}

	clientCtx, cancel := ctxutil.WithDelayedTimeout(ctx, 5*time.Second)
	defer cancel()

	// Intentionally ignore client-inherited context, which is inherited from clientCtx
	// for the run function to force it to use the parent context, which is inherited
	// from cli context. This allows all Telegram messaging operations context to still
	// be active a bit more after parent context cancellation.
	return client.Run(clientCtx, func(_ context.Context) error {
		status, err := client.Auth().Status(ctx)
		if nil != err {
			if errors.Is(ctx.Err(), context.Canceled) {
				return context.Canceled
			}
			return fmt.Errorf("failed to get Telegram client auth status: %v", err)
		}
		if !status.Authorized {
			if _, authErr := client.Auth().Bot(ctx, botToken); nil != authErr {
				if errors.Is(ctx.Err(), context.Canceled) {
					return context.Canceled
				}
				return fmt.Errorf("failed to authorize Telegram bot: %v", authErr)
			}
			logger.Debug().Msg("Telegram client authorized.")
		} else {
			logger.Debug().Msg("Telegram client has already been authorized.")
		}

		w.api = tg.NewClient(client)
		w.sender = message.NewSender(w.api)

		d.OnNewMessage(buildOnMessage(w, clientCtx))
		d.OnBotCallbackQuery(buildOnCallbackQuery(w, clientCtx))

		logger.Info().Msg("Bot is running")
		<-ctx.Done()

		logger.Debug().Msg("Stopping bot due to received signal. Waiting for in-flight downloads")
		if err := w.runs.Drain(clientCtx); nil != err {
			logger.Error().Err(err).Msg("Failed to drain download worker pool before shutdown")
		}
		return nil
	})
}
