/*
DESCRIPTION
  streamwatch monitors video channels, classifies new uploads by
  broadcast state, and dispatches ingestible ones through a supervised
  extractor/re-muxer pipeline into a local RTMP sink.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This file is part of streamwatch. streamwatch is free software: you
  can redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  streamwatch is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// streamwatch is a live-stream capture orchestrator for video channels.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ausocean/utils/logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/streamwatch/config"
	"github.com/ausocean/streamwatch/discovery"
	"github.com/ausocean/streamwatch/gauth"
	"github.com/ausocean/streamwatch/ingeststatus"
	"github.com/ausocean/streamwatch/ingestqueue"
	"github.com/ausocean/streamwatch/metadata"
	"github.com/ausocean/streamwatch/monitor"
	"github.com/ausocean/streamwatch/notify"
	"github.com/ausocean/streamwatch/pipeline"
	"github.com/ausocean/streamwatch/seenstore"
	"github.com/ausocean/streamwatch/youtube"
)

const projectID = "streamwatch"

const (
	logPath      = "/var/log/streamwatch/streamwatch.log"
	logMaxSize   = 10 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
)

func main() {
	var (
		channelID      = flag.Int64("channel_id", 0, "Monitor a single configured channel.")
		manualChannels = flag.String("manual_channels", "", "Comma-separated channel URLs to monitor without persistence.")
		executeURL     = flag.String("execute_url", "", "Run the capture pipeline once against a single video URL.")
		list           = flag.String("list", "", "Dump store contents: 'all' or a channel id.")
		debug          = flag.Bool("debug", false, "Run in debug mode (log to stderr, verbose).")
		rtmpDetails    = flag.String("rtmp_details", "", "Override the RTMP sink path, e.g. /live/test.")
		channelsFile   = flag.String("channels_file", "channels.json", "Path to the channel configuration JSON file.")
	)
	flag.Parse()

	log := newLogger(*debug)

	cfg := config.Default()
	cfg.ChannelsFile = *channelsFile
	if *rtmpDetails != "" {
		cfg.RTMPPath = *rtmpDetails
	}
	applyEnvConfig(&cfg)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("received shutdown signal")
		cancel()
	}()

	if err := run(ctx, cfg, log, *channelID, *manualChannels, *executeURL, *list); err != nil {
		log.Error("fatal error", "error", err.Error())
		os.Exit(1)
	}
}

func newLogger(debug bool) logging.Logger {
	level := logging.Info
	if debug {
		level = logging.Debug
	}

	var out io.Writer = os.Stderr
	if !debug {
		out = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAge,
		}
	}
	return logging.New(level, out, true)
}

func applyEnvConfig(cfg *config.Config) {
	if v := os.Getenv("STREAMWATCH_STORE_DIR"); v != "" {
		cfg.StoreDir = v
	}
	if v := os.Getenv("STREAMWATCH_CREDENTIAL_DIR"); v != "" {
		cfg.CredentialStorageDir = v
	}
	if v := os.Getenv("STREAMWATCH_INGEST_API_BASE"); v != "" {
		cfg.IngestAPIBase = v
	}
	if v := os.Getenv("STREAMWATCH_INGEST_USERNAME"); v != "" {
		cfg.IngestUsername = v
	}
	if v := os.Getenv("STREAMWATCH_INGEST_PASSWORD"); v != "" {
		cfg.IngestPassword = v
	}
	if v := os.Getenv("STREAMWATCH_YOUTUBE_API_KEY"); v != "" {
		cfg.YouTubeAPIKey = v
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger, channelID int64, manualChannels, executeURL, list string) error {
	switch {
	case executeURL != "":
		return runExecuteURL(ctx, cfg, log, executeURL)
	case list != "":
		return runList(ctx, cfg, log, list)
	case manualChannels != "":
		return runManual(ctx, cfg, log, manualChannels)
	case channelID != 0:
		return runChannel(ctx, cfg, log, channelID)
	default:
		return fmt.Errorf("one of --channel_id, --manual_channels, --execute_url, --list is required")
	}
}

// buildNotifier constructs the ops-alerting Notifier from Mailjet
// secrets. A missing or malformed secrets file simply leaves
// notifications disabled (logged, not fatal) rather than blocking
// startup on an ops-alerting dependency.
func buildNotifier(ctx context.Context, log logging.Logger) *notify.Notifier {
	secrets, err := gauth.GetSecrets(ctx, projectID, nil)
	if err != nil {
		log.Warning("could not load notifier secrets, notifications disabled", "error", err.Error())
		return nil
	}
	n, err := notify.NewMailjetNotifier(notify.WithSecrets(secrets))
	if err != nil {
		log.Warning("could not construct notifier, notifications disabled", "error", err.Error())
		return nil
	}
	return &n
}

func runExecuteURL(ctx context.Context, cfg config.Config, log logging.Logger, videoURL string) error {
	sup := pipeline.Supervisor{
		ExtractorBin:  cfg.ExtractorBin,
		RemuxerBin:    cfg.RemuxerBin,
		MaxRetries:    cfg.MaxRetries,
		ShutdownGrace: cfg.SubprocessShutdownGrace,
		Log:           printfLogger{log},
	}
	job := ingestqueue.NewJob(videoURL, cfg.RTMPPath)
	extractorExit, remuxerExit, attempts, err := sup.Run(ctx, job)
	log.Info("one-shot pipeline finished", "extractor_exit", extractorExit, "remuxer_exit", remuxerExit, "attempts", attempts)
	return err
}

func runList(ctx context.Context, cfg config.Config, log logging.Logger, which string) error {
	notifier := buildNotifier(ctx, log)

	refs, err := config.LoadChannels(cfg.ChannelsFile, func(id int64) {
		log.Warning("skipping channel with malformed urls field", "channel", id)
	})
	if err != nil {
		monitor.NotifyFatal(ctx, notifier, 0, fmt.Sprintf("could not load channel config %s: %v", cfg.ChannelsFile, err))
		return fmt.Errorf("could not load channels: %w", err)
	}

	var ids []int64
	if which == "all" {
		for _, r := range refs {
			ids = append(ids, r.ID)
		}
	} else {
		id, err := strconv.ParseInt(which, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid --list value %q: %w", which, err)
		}
		ids = []int64{id}
	}

	for _, id := range ids {
		store, err := openChannelStore(ctx, cfg, id, notifier)
		if err != nil {
			log.Error("could not open store", "channel", id, "error", err.Error())
			continue
		}
		snap, err := store.List(ctx, id)
		if err != nil {
			log.Error("could not list store", "channel", id, "error", err.Error())
			monitor.NotifyStoreFailure(ctx, notifier, id, err)
			continue
		}
		b, _ := json.MarshalIndent(snap, "", "  ")
		fmt.Printf("channel %d:\n%s\n", id, b)
	}
	return nil
}

func runManual(ctx context.Context, cfg config.Config, log logging.Logger, manualChannels string) error {
	notifier := buildNotifier(ctx, log)
	urls := strings.Split(manualChannels, ",")
	store := seenstore.NewMemoryStore()
	return monitorChannel(ctx, cfg, log, config.ChannelRef{ID: 0, URLs: urls}, store, notifier)
}

func runChannel(ctx context.Context, cfg config.Config, log logging.Logger, channelID int64) error {
	notifier := buildNotifier(ctx, log)

	refs, err := config.LoadChannels(cfg.ChannelsFile, func(id int64) {
		log.Warning("skipping channel with malformed urls field", "channel", id)
	})
	if err != nil {
		monitor.NotifyFatal(ctx, notifier, channelID, fmt.Sprintf("could not load channel config %s: %v", cfg.ChannelsFile, err))
		return fmt.Errorf("could not load channels: %w", err)
	}

	var ref *config.ChannelRef
	for i := range refs {
		if refs[i].ID == channelID {
			ref = &refs[i]
			break
		}
	}
	if ref == nil {
		monitor.NotifyFatal(ctx, notifier, channelID, fmt.Sprintf("channel %d not found in %s", channelID, cfg.ChannelsFile))
		return fmt.Errorf("channel %d not found in %s", channelID, cfg.ChannelsFile)
	}

	store, err := openChannelStore(ctx, cfg, channelID, notifier)
	if err != nil {
		return fmt.Errorf("could not open store for channel %d: %w", channelID, err)
	}

	return monitorChannel(ctx, cfg, log, *ref, store, notifier)
}

// openChannelStore opens the datastore-backed seen/notified store for a
// channel, raising a throttled notify.KindStore notification on failure
// since this happens before a monitor.Service exists to raise its own.
func openChannelStore(ctx context.Context, cfg config.Config, channelID int64, notifier *notify.Notifier) (*seenstore.DatastoreStore, error) {
	ds, err := newDatastore(ctx, cfg)
	if err != nil {
		monitor.NotifyStoreFailure(ctx, notifier, channelID, err)
		return nil, err
	}
	return seenstore.NewDatastoreStore(ds), nil
}

func monitorChannel(ctx context.Context, cfg config.Config, log logging.Logger, ref config.ChannelRef, store seenstore.Store, notifier *notify.Notifier) error {
	plog := printfLogger{log}

	var resolver metadata.Resolver = metadata.ExtractorResolver{Bin: cfg.ExtractorBin}
	if cfg.YouTubeAPIKey != "" {
		apiClient, err := youtube.NewAPIClient(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			log.Warning("could not create youtube api client, falling back to extractor resolver", "error", err.Error())
		} else {
			resolver = metadata.NewAPIResolver(apiClient)
		}
	}

	username, password := cfg.IngestUsername, cfg.IngestPassword
	if ref.Username != "" {
		username = ref.Username
	}
	if ref.Password != "" {
		password = ref.Password
	}

	statusClient := &ingeststatus.Client{
		BaseURL:           cfg.IngestAPIBase,
		Channel:           ref.ID,
		Username:          username,
		Password:          password,
		AssumeFreeOnError: cfg.AssumeFreeOnIngestError,
		Store: ingeststatus.FileCredentialStore{
			Dir:     cfg.CredentialStorageDir,
			Channel: ref.ID,
		},
		Notifier: notifier,
	}

	sup := pipeline.Supervisor{
		ExtractorBin:  cfg.ExtractorBin,
		RemuxerBin:    cfg.RemuxerBin,
		MaxRetries:    cfg.MaxRetries,
		ShutdownGrace: cfg.SubprocessShutdownGrace,
		Log:           plog,
	}
	queue := ingestqueue.New(sup, statusClient)
	queue.Log = plog
	queue.Channel = ref.ID
	queue.Notifier = notifier

	sched := discovery.Scheduler{
		Prober:          discovery.ExtractorProber{Bin: cfg.ExtractorBin},
		ChunkSize:       cfg.ProbeChunkSize,
		Concurrency:     int64(cfg.ProbeConcurrency),
		InterChunkPause: cfg.InterChunkPause,
		Log:             plog,
	}

	svc, err := monitor.NewService(ctx, ref, sched, resolver, store, queue, cfg, plog, notifier)
	if err != nil {
		return fmt.Errorf("could not construct monitor service: %w", err)
	}

	return svc.Run(ctx)
}
