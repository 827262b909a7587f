package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean/streamwatch/ingestqueue"
)

// These tests stand in "extractor" and "remuxer" with tiny shell
// programs so the supervisor's piping and lifecycle logic can be
// exercised without a real stream source or ffmpeg-alike installed.

func TestSupervisorPipesExtractorToRemuxer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := testSupervisor(t, "echo hello", "cat >/dev/null")
	job := ingestqueue.Job{VideoURL: "u", RTMPPath: "/live/test"}

	extractorExit, remuxerExit, attempts, err := s.Run(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 0, extractorExit)
	assert.Equal(t, 0, remuxerExit)
	assert.Equal(t, 1, attempts)
}

func TestSupervisorRetriesOnFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := testSupervisor(t, "exit 1", "cat >/dev/null")
	s.MaxRetries = 2
	job := ingestqueue.Job{VideoURL: "u", RTMPPath: "/live/test"}

	_, _, attempts, err := s.Run(ctx, job)
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestSupervisorGracefulShutdown(t *testing.T) {
	s := testSupervisor(t, "sleep 5", "cat >/dev/null")
	s.ShutdownGrace = 200 * time.Millisecond
	job := ingestqueue.Job{VideoURL: "u", RTMPPath: "/live/test"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, _, err := s.Run(ctx, job)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 2*time.Second, "shutdown should complete within the grace period, not hang")
}

// testSupervisor builds a Supervisor whose ExtractorBin/RemuxerBin are
// tiny executable shell scripts. The supervisor always invokes them with
// the fixed extractor/remuxer argv, which a shell script happily ignores
// as positional parameters it never references.
func testSupervisor(t *testing.T, extractorScript, remuxerScript string) Supervisor {
	t.Helper()
	return Supervisor{
		ExtractorBin: scriptWrapper(t, extractorScript),
		RemuxerBin:   scriptWrapper(t, remuxerScript),
	}
}

func scriptWrapper(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, fmt.Sprintf("script-%d.sh", time.Now().UnixNano()))
	content := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
	return path
}
