package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	prompt "github.com/c-bata/go-prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/storage"
	"github.com/xtxerr/numass/internal/storage/backend"
	"github.com/xtxerr/numass/internal/storage/codec"
	"github.com/xtxerr/numass/internal/storage/config"
	ntesting "github.com/xtxerr/numass/internal/testing"
)

func testRun() ntesting.Run {
	return ntesting.Run{
		Meta: map[string]any{"description": "calibration"},
		Points: []ntesting.Point{
			ntesting.ClassicPoint("p2", 2, codec.Record{Channel: 300, Ticks: 1}),
			ntesting.ClassicPoint("p1", 1,
				codec.Record{Channel: 100, Ticks: 1},
				codec.Record{Channel: 200, Ticks: 2}),
		},
	}
}

func storageDir(t *testing.T) (string, *backend.Local) {
	t.Helper()
	dir := t.TempDir()
	local, err := backend.NewLocal(dir)
	require.NoError(t, err)
	ntesting.WriteRun(t, local, "2017_05/set_1", testRun())
	return dir, local
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	var out bytes.Buffer
	a.Root.SetOut(&out)
	a.Root.SetErr(io.Discard)
	a.Root.SetArgs(args)
	err := a.execute(context.Background())
	return out.String(), err
}

func TestLs(t *testing.T) {
	dir, _ := storageDir(t)

	out, err := run(t, "--root", dir, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "shelf")
	assert.Contains(t, out, "2017_05")

	out, err = run(t, "--root", dir, "ls", "/2017_05")
	require.NoError(t, err)
	assert.Contains(t, out, "set_1")
	assert.Contains(t, out, "calibration")

	out, err = run(t, "--root", dir, "ls", "2017_05/set_1")
	require.NoError(t, err)
	for _, f := range []string{"meta", "p1", "p2"} {
		assert.Contains(t, out, f)
	}

	_, err = run(t, "--root", dir, "ls", "/missing")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, errors.CodeNotFound, errors.ErrorToCode(err))
}

func TestPoints(t *testing.T) {
	dir, _ := storageDir(t)

	out, err := run(t, "--root", dir, "--log-level", "warn", "points", "/2017_05/set_1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "INDEX"))
	assert.True(t, strings.HasPrefix(lines[1], "1 "), lines[1])
	assert.Contains(t, lines[1], "p1")
	assert.Contains(t, lines[1], "14500.0")
	assert.True(t, strings.HasPrefix(lines[2], "2 "), lines[2])
}

func TestInspect(t *testing.T) {
	dir, _ := storageDir(t)

	out, err := run(t, "--root", dir, "inspect", "/2017_05/set_1")
	require.NoError(t, err)
	assert.Contains(t, out, "P50")
	assert.Contains(t, out, "total")

	out, err = run(t, "--root", dir, "inspect", "/2017_05/set_1", "p2")
	require.NoError(t, err)
	assert.NotContains(t, out, " p1 ")

	_, err = run(t, "--root", dir, "inspect", "/2017_05/set_1", "p7")
	assert.True(t, errors.IsNotFound(err))
}

func TestPushDirectory(t *testing.T) {
	dir, local := storageDir(t)

	src := t.TempDir()
	srcBackend, err := backend.NewLocal(src)
	require.NoError(t, err)
	ntesting.WriteRun(t, srcBackend, ".", testRun())

	out, err := run(t, "--root", dir, "push", "/2017_05", "set_2", src)
	require.NoError(t, err)
	assert.Contains(t, out, "pushed 2017_05/set_2.nm.zip")
	assert.NotContains(t, out, "overwritten")

	_, err = local.Stat("2017_05/set_2.nm.zip")
	require.NoError(t, err)

	out, err = run(t, "--root", dir, "points", "/2017_05/set_2")
	require.NoError(t, err)
	assert.Contains(t, out, "p1")

	out, err = run(t, "--root", dir, "push", "/2017_05", "set_2", src)
	require.NoError(t, err)
	assert.Contains(t, out, "overwritten")
}

func TestPushArchiveFile(t *testing.T) {
	dir, _ := storageDir(t)

	archive := filepath.Join(t.TempDir(), "run.nm.zip")
	require.NoError(t, os.WriteFile(archive, ntesting.ArchiveBytes(t, testRun()), 0644))

	_, err := run(t, "--root", dir, "push", "/", "set_3", archive)
	require.NoError(t, err)

	out, err := run(t, "--root", dir, "ls", "/")
	require.NoError(t, err)
	assert.Contains(t, out, "set_3")
}

func TestPushDirectoryWithoutMeta(t *testing.T) {
	dir, _ := storageDir(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "p1"), []byte("x"), 0644))

	_, err := run(t, "--root", dir, "push", "/2017_05", "set_2", src)
	assert.True(t, errors.IsConfiguration(err), "got %v", err)
}

func TestJournal(t *testing.T) {
	dir, _ := storageDir(t)
	journalPath := filepath.Join(t.TempDir(), "journal.duckdb")

	cfgPath := filepath.Join(t.TempDir(), "numass.yaml")
	cfgData := "root: " + dir + "\npush:\n  journal:\n    enabled: true\n    path: " + journalPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgData), 0644))

	archive := filepath.Join(t.TempDir(), "run.nm.zip")
	require.NoError(t, os.WriteFile(archive, ntesting.ArchiveBytes(t, testRun()), 0644))

	_, err := run(t, "--config", cfgPath, "push", "/2017_05", "set_2", archive)
	require.NoError(t, err)

	out, err := run(t, "--config", cfgPath, "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "set_2")
	assert.Contains(t, out, "numass-cli")

	out, err = run(t, "--config", cfgPath, "journal", "--shelves")
	require.NoError(t, err)
	assert.Contains(t, out, "/2017_05")

	_, err = run(t, "--root", dir, "journal")
	assert.True(t, errors.IsValidation(err), "got %v", err)
}

func TestFailedCommandClosesService(t *testing.T) {
	dir, _ := storageDir(t)
	journalPath := filepath.Join(t.TempDir(), "journal.duckdb")

	cfgPath := filepath.Join(t.TempDir(), "numass.yaml")
	cfgData := "root: " + dir + "\npush:\n  journal:\n    enabled: true\n    path: " + journalPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgData), 0644))

	a := newApp()
	a.Root.SetOut(io.Discard)
	a.Root.SetErr(io.Discard)
	a.Root.SetArgs([]string{"--config", cfgPath, "points", "/missing"})

	err := a.execute(context.Background())
	assert.True(t, errors.IsNotFound(err), "got %v", err)
	assert.Nil(t, a.svc)

	// The journal is released and opens again.
	_, err = run(t, "--config", cfgPath, "journal")
	require.NoError(t, err)
}

func TestBadFlags(t *testing.T) {
	_, err := run(t, "--backend", "tape", "ls")
	assert.True(t, errors.IsValidation(err), "got %v", err)

	_, err = run(t, "--log-level", "loud", "ls")
	assert.Error(t, err)
}

func TestShell(t *testing.T) {
	dir, _ := storageDir(t)
	cfg := config.DefaultConfig()
	cfg.Root = dir
	svc, err := storage.New(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()

	var out bytes.Buffer
	sh := newShell(context.Background(), svc, &out)

	sh.execute("cd 2017_05")
	assert.Equal(t, "/2017_05", sh.cwd)

	out.Reset()
	sh.execute("pwd")
	assert.Equal(t, "/2017_05\n", out.String())

	out.Reset()
	sh.execute("points set_1")
	assert.Contains(t, out.String(), "p2")

	out.Reset()
	sh.execute("cd set_1")
	assert.Contains(t, out.String(), "error:")
	assert.Equal(t, "/2017_05", sh.cwd)

	sh.execute("cd ..")
	assert.Equal(t, "/", sh.cwd)

	out.Reset()
	sh.execute("frobnicate")
	assert.Contains(t, out.String(), "unknown command")

	assert.True(t, isExit(" quit "))
	assert.False(t, isExit("ls"))
}

func TestShellCompletion(t *testing.T) {
	dir, _ := storageDir(t)
	cfg := config.DefaultConfig()
	cfg.Root = dir
	svc, err := storage.New(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()

	sh := newShell(context.Background(), svc, io.Discard)
	complete := func(text string) []string {
		b := prompt.NewBuffer()
		b.InsertText(text, false, true)
		var out []string
		for _, s := range sh.complete(*b.Document()) {
			out = append(out, s.Text)
		}
		return out
	}

	assert.Equal(t, []string{"points"}, complete("po"))
	assert.Equal(t, []string{"2017_05/"}, complete("cd 20"))
	assert.Equal(t, []string{"/2017_05/set_1"}, complete("points /2017_05/s"))
	assert.Empty(t, complete("ls nope/"))
}
