package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlbstreamer/cache"
	"mlbstreamer/config"
	"mlbstreamer/internal/logger"
	"mlbstreamer/offset"
)

func TestOpenCacheStoreFile(t *testing.T) {
	dir := t.TempDir()

	store, err := openCacheStore(context.Background(), dir, config.CacheSettings{Backend: config.CacheBackendFile})
	require.NoError(t, err)
	defer store.Close()

	fs, ok := store.(*cache.FileStore)
	require.True(t, ok, "expected *cache.FileStore, got %T", store)
	assert.Equal(t, 0, fs.Len())
	assert.NoFileExists(t, filepath.Join(dir, "cache.json"), "store writes lazily")
}

func TestCmdCacheRequiresPurge(t *testing.T) {
	err := cmdCache(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache purge")

	err = cmdCache(context.Background(), []string{"clear"})
	require.Error(t, err)
}

func TestCmdPlayValidatesArguments(t *testing.T) {
	ctx := context.Background()

	err := cmdPlay(ctx, nil)
	assert.EqualError(t, err, "expected exactly one GAME argument")

	err = cmdPlay(ctx, []string{"-o", "game.ts", "-s", "2024-04-10/nyy"})
	assert.EqualError(t, err, "--output and --save are mutually exclusive")

	err = cmdPlay(ctx, []string{"2024-04-10"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATE/TEAM[/N]")

	err = cmdPlay(ctx, []string{"--offset", "X9", "745001"})
	var badOffset *offset.InvalidOffsetError
	assert.True(t, errors.As(err, &badOffset), "got %v", err)
}

func TestHelpFlagIsNotAnError(t *testing.T) {
	err := cmdLogin(context.Background(), []string{"-h"})
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestReportErrorPrintsOneLine(t *testing.T) {
	var logs bytes.Buffer
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	_, err := logger.Setup(logger.Options{})
	require.NoError(t, err)
	logger.SetOutput(&logs)

	var stderr bytes.Buffer
	reportError(&stderr, "login", fmt.Errorf("stage login: %w", errors.New("connection refused")))

	assert.Equal(t, "Error: stage login: connection refused\n", stderr.String())
	assert.Empty(t, logs.String(), "failure detail stays out of the default log level")

	_, err = logger.Setup(logger.Options{Verbosity: 1})
	require.NoError(t, err)
	logger.SetOutput(&logs)
	t.Cleanup(func() { logger.Setup(logger.Options{}) })

	stderr.Reset()
	reportError(&stderr, "login", errors.New("boom"))
	assert.Equal(t, "Error: boom\n", stderr.String())
	assert.Contains(t, logs.String(), "command failed")
	assert.Contains(t, logs.String(), "boom")
}
