/*
DESCRIPTION
  supervisor.go implements the Stream Pipeline Supervisor: a two-stage
  subprocess pipeline (extractor -> re-muxer) connected by an OS pipe,
  with continuous stderr draining, retry policy, and graceful shutdown.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package pipeline supervises the extractor/re-muxer subprocess pair
// that carries one video's bytes from the source platform to the local
// RTMP sink. It is a byte conduit with lifecycle management: it never
// buffers the stream beyond the OS pipe connecting the two children.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ausocean/streamwatch/ingestqueue"
)

// Logger is the narrow logging interface the supervisor needs.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Supervisor spawns and supervises the extractor/re-muxer pair for a
// single job, with retries and graceful shutdown.
type Supervisor struct {
	ExtractorBin  string // Defaults to "extractor".
	RemuxerBin    string // Defaults to "remuxer".
	MaxRetries    int    // Defaults to 3.
	ShutdownGrace time.Duration // Defaults to 5s.
	Log           Logger
}

func (s Supervisor) extractorBin() string {
	if s.ExtractorBin == "" {
		return "extractor"
	}
	return s.ExtractorBin
}

func (s Supervisor) remuxerBin() string {
	if s.RemuxerBin == "" {
		return "remuxer"
	}
	return s.RemuxerBin
}

func (s Supervisor) maxRetries() int {
	if s.MaxRetries <= 0 {
		return 3
	}
	return s.MaxRetries
}

func (s Supervisor) grace() time.Duration {
	if s.ShutdownGrace <= 0 {
		return 5 * time.Second
	}
	return s.ShutdownGrace
}

func (s Supervisor) logf(format string, args ...interface{}) {
	if s.Log != nil {
		s.Log.Printf(format, args...)
	}
}

// Run executes job's extractor/re-muxer pipeline, retrying on failure up
// to MaxRetries. It satisfies ingestqueue.Runner.
func (s Supervisor) Run(ctx context.Context, job ingestqueue.Job) (extractorExit, remuxerExit, attempts int, err error) {
	for attempts = 1; attempts <= s.maxRetries(); attempts++ {
		extractorExit, remuxerExit, err = s.runOnce(ctx, job)
		if err == nil && extractorExit == 0 && remuxerExit == 0 {
			return extractorExit, remuxerExit, attempts, nil
		}
		if ctx.Err() != nil {
			return extractorExit, remuxerExit, attempts, ctx.Err()
		}
		s.logf("pipeline: job %s attempt %d failed (extractor=%d remuxer=%d err=%v)", job.ID, attempts, extractorExit, remuxerExit, err)
	}
	return extractorExit, remuxerExit, attempts - 1, fmt.Errorf("job %s exhausted %d retries: extractor=%d remuxer=%d", job.ID, s.maxRetries(), extractorExit, remuxerExit)
}

// runOnce spawns one attempt of the extractor/re-muxer pair, wires
// extractor's stdout to re-muxer's stdin via an OS pipe, drains both
// stderr streams continuously, and waits for both to exit (or for ctx to
// be cancelled, in which case it signals re-muxer then extractor with a
// bounded grace before force-killing).
func (s Supervisor) runOnce(ctx context.Context, job ingestqueue.Job) (extractorExit, remuxerExit int, err error) {
	extractor := exec.Command(s.extractorBin(),
		"--hls-live-edge", "6",
		"--ringbuffer-size", "128M",
		"-4",
		"--stream-sorting-excludes", ">720p",
		"--default-stream", "best",
		"--url", job.VideoURL,
		"-o", "-",
	)
	remuxer := exec.Command(s.remuxerBin(),
		"-re", "-hide_banner", "-nostats", "-v", "level+error",
		"-i", "-",
		"-c:v", "copy", "-c:a", "copy",
		"-f", "flv",
		"rtmp://127.0.0.1"+job.RTMPPath,
	)

	pr, pw, err := os.Pipe()
	if err != nil {
		return -1, -1, fmt.Errorf("could not create pipe: %w", err)
	}
	extractor.Stdout = pw
	remuxer.Stdin = pr

	extractorStderr, err := extractor.StderrPipe()
	if err != nil {
		return -1, -1, fmt.Errorf("could not attach extractor stderr: %w", err)
	}
	remuxerStderr, err := remuxer.StderrPipe()
	if err != nil {
		return -1, -1, fmt.Errorf("could not attach re-muxer stderr: %w", err)
	}

	if err := extractor.Start(); err != nil {
		return -1, -1, fmt.Errorf("could not start extractor: %w", err)
	}
	if err := remuxer.Start(); err != nil {
		_ = extractor.Process.Kill()
		return -1, -1, fmt.Errorf("could not start re-muxer: %w", err)
	}

	// Both children now hold their own duplicated fds for the pipe; the
	// parent's copies must be closed so the re-muxer sees EOF on its
	// stdin once the extractor exits, rather than blocking forever on a
	// write end the parent is still holding open.
	_ = pw.Close()
	_ = pr.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go s.drainStderr(&wg, job.ID, "extractor", extractorStderr)
	go s.drainStderr(&wg, job.ID, "remuxer", remuxerStderr)

	extractorDone := make(chan error, 1)
	remuxerDone := make(chan error, 1)
	go func() { extractorDone <- extractor.Wait() }()
	go func() { remuxerDone <- remuxer.Wait() }()

	// Extractor exiting closes its duplicated stdout fd; the re-muxer
	// sees EOF on stdin and exits on its own shortly after.
	remaining := 2
	for remaining > 0 {
		select {
		case <-ctx.Done():
			s.shutdown(extractor, remuxer)
			<-extractorDone
			<-remuxerDone
			wg.Wait()
			return exitCode(extractor), exitCode(remuxer), ctx.Err()
		case <-extractorDone:
			remaining--
		case <-remuxerDone:
			remaining--
		}
	}
	wg.Wait()

	return exitCode(extractor), exitCode(remuxer), nil
}

// shutdown signals re-muxer then extractor (so the re-muxer can flush
// any buffered frames) with a bounded grace period before force-killing.
func (s Supervisor) shutdown(extractor, remuxer *exec.Cmd) {
	terminate := func(cmd *exec.Cmd) {
		if cmd.Process == nil {
			return
		}
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
	kill := func(cmd *exec.Cmd) {
		if cmd.Process == nil {
			return
		}
		_ = cmd.Process.Kill()
	}

	terminate(remuxer)
	terminate(extractor)

	timer := time.NewTimer(s.grace())
	defer timer.Stop()
	<-timer.C
	kill(remuxer)
	kill(extractor)
}

func (s Supervisor) drainStderr(wg *sync.WaitGroup, jobID uuid.UUID, name string, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.logf("pipeline: job %s %s: %s", jobID, name, scanner.Text())
	}
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}
