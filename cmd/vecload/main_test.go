package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/vecload/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	_ "modernc.org/sqlite"
)

// runApp runs the CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"vecload"}, args...))
	return out.String(), err
}

// fakeEmbeddingServer is an OpenAI-compatible /embeddings endpoint backed
// by the deterministic mock vectors.
func fakeEmbeddingServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": mock.GenerateVector(text, dim)}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	t.Cleanup(server.Close)
	return server
}

func writeMetadata(t *testing.T, path string, rows int) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE metadata (id TEXT, title TEXT, abstract TEXT)`)
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		_, err := db.Exec(`INSERT INTO metadata VALUES (?, ?, ?)`,
			fmt.Sprintf("paper-%d", i), fmt.Sprintf("Title %d", i), fmt.Sprintf("Abstract %d", i))
		require.NoError(t, err)
	}
}

func TestCommandFlags(t *testing.T) {
	app := newApp()

	findCommand := func(name string) *cli.Command {
		for _, cmd := range app.Commands {
			if cmd.Name == name {
				return cmd
			}
		}
		return nil
	}

	for _, name := range []string{"create-collection", "load", "embed", "job-status", "search"} {
		require.NotNil(t, findCommand(name), name)
	}

	t.Run("load chunk-size defaults to 10000", func(t *testing.T) {
		var chunkFlag *cli.IntFlag
		for _, flag := range findCommand("load").Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "chunk-size" {
				chunkFlag = f
			}
		}
		require.NotNil(t, chunkFlag)
		assert.Equal(t, 10000, chunkFlag.Value)
	})

	t.Run("embed max-concurrent defaults to 10", func(t *testing.T) {
		var concurrentFlag *cli.IntFlag
		for _, flag := range findCommand("embed").Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "max-concurrent" {
				concurrentFlag = f
			}
		}
		require.NotNil(t, concurrentFlag)
		assert.Equal(t, 10, concurrentFlag.Value)
	})
}

func TestCommandValidation(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "jobs")

	t.Run("load requires job and collection", func(t *testing.T) {
		_, err := runApp(t, "--db", db, "load", "--collection", "papers")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job")
	})

	t.Run("invalid index backend", func(t *testing.T) {
		_, err := runApp(t, "--db", db, "--index", "faiss", "job-status")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid index")
	})

	t.Run("create-collection rejects zero dim", func(t *testing.T) {
		_, err := runApp(t, "--db", db, "create-collection", "-c", "papers", "--dim", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dim")
	})

	t.Run("load requires metadata", func(t *testing.T) {
		_, err := runApp(t, "--db", db, "load", "--job", "1", "-c", "papers")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "metadata")
	})

	t.Run("job-status rejects unknown status", func(t *testing.T) {
		_, err := runApp(t, "--db", db, "job-status", "--status", "done")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid job status")
	})

	t.Run("embed rejects zero batch size", func(t *testing.T) {
		_, err := runApp(t, "--db", db, "embed", "--batch-size", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch size")
	})
}

func TestEmbedLoadSearch(t *testing.T) {
	dir := t.TempDir()
	metadata := filepath.Join(dir, "metadata.db")
	writeMetadata(t, metadata, 30)
	server := fakeEmbeddingServer(t, 8)

	global := []string{
		"--log-level", "error",
		"--db", filepath.Join(dir, "jobs"),
		"--data-dir", filepath.Join(dir, "data"),
		"--metadata", metadata,
	}
	run := func(args ...string) string {
		t.Helper()
		out, err := runApp(t, append(append([]string{}, global...), args...)...)
		require.NoError(t, err, out)
		return out
	}
	embedding := []string{"--embedding-host", server.URL, "--embedding-model", "test-model"}

	out := run(append([]string{"embed", "--batch-size", "8", "--max-concurrent", "2"}, embedding...)...)
	assert.Contains(t, out, "Job 1 completed: 30 vectors of dimension 8")

	out = run("job-status")
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "test-model")

	out = run("job-status", "--status", "failed")
	assert.NotContains(t, out, "test-model")
	out = run("job-status", "-s", "completed")
	assert.Contains(t, out, "test-model")

	out = run("create-collection", "-c", "papers", "--dim", "8")
	assert.Contains(t, out, "Created collection papers")

	out = run("load", "--job", "1", "-c", "papers", "--chunk-size", "10")
	assert.Contains(t, out, "Loaded 30 vectors into papers in 3 chunks")

	out = run("load", "--job", "2", "-c", "papers")
	assert.Contains(t, out, "Job 2 skipped")

	out = run(append([]string{"search", "-c", "papers", "-q", "Title 7\n\nAbstract 7", "--limit", "1"}, embedding...)...)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "#7 ")
	assert.Contains(t, lines[0], "paper-7")
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"WaRn", slog.LevelWarn},
			{"ERROR", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						assert.True(t, slog.Default().Enabled(c.Context, tc.expected))
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		_, err := runApp(t, "--log-level", "invalid", "job-status")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}

func TestLimiterStoreKey(t *testing.T) {
	store := limiterStore("localhost:6379", "requests")
	defer store.Close()
	assert.Equal(t, "vecload:ratelimit:requests", store.Key())
}
