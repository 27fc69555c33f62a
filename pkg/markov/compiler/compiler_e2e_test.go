package compiler_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/cognicore/markov/pkg/markov/compiler"
	"github.com/cognicore/markov/pkg/markov/config"
	"github.com/cognicore/markov/pkg/markov/store/sqlite"
)

type corpusMessage struct {
	userID  int64
	content string
}

func createSource(t *testing.T, dir string, msgs []corpusMessage) string {
	t.Helper()
	path := filepath.Join(dir, "source.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
CREATE TABLE users (userID INTEGER PRIMARY KEY, username TEXT, discriminator TEXT);
CREATE TABLE messages (messageID INTEGER PRIMARY KEY, content TEXT);
CREATE TABLE user_messages (userID INTEGER NOT NULL, messageID INTEGER NOT NULL);
INSERT INTO users VALUES (100, 'alice', '0001'), (200, 'bob', '0002'), (300, 'carol', '0003');
`)
	require.NoError(t, err)

	for i, m := range msgs {
		id := int64(i + 1)
		_, err := db.Exec(`INSERT INTO messages (messageID, content) VALUES (?, ?)`, id, m.content)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO user_messages (userID, messageID) VALUES (?, ?)`, m.userID, id)
		require.NoError(t, err)
	}
	return path
}

// dumpModel renders every model table as sorted lines.
func dumpModel(t *testing.T, path string) map[string][]string {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	queries := map[string]string{
		"users":         `SELECT userID, username, discriminator FROM users`,
		"links":         `SELECT linkID, startWord, endWord FROM links`,
		"user_links":    `SELECT userID, linkID, frequency FROM user_links`,
		"user_lexicons": `SELECT userID, word, frequency FROM user_lexicons`,
	}
	out := make(map[string][]string)
	for table, q := range queries {
		rows, err := db.Query(q)
		require.NoError(t, err)
		var lines []string
		for rows.Next() {
			var a, b, c interface{}
			require.NoError(t, rows.Scan(&a, &b, &c))
			lines = append(lines, fmt.Sprintf("%v|%v|%v", a, b, c))
		}
		require.NoError(t, rows.Err())
		rows.Close()
		sort.Strings(lines)
		out[table] = lines
	}
	return out
}

func compileOnce(t *testing.T, sourcePath, modelPath string, merge *config.MergeDirective) compiler.Result {
	t.Helper()
	ctx := context.Background()

	src, err := sqlite.OpenSource(ctx, sourcePath)
	require.NoError(t, err)
	defer src.Close()
	model, err := sqlite.OpenModel(ctx, modelPath)
	require.NoError(t, err)
	defer model.Close()

	c, err := compiler.New(compiler.Options{Source: src, Model: model, Merge: merge, Logger: zap.NewNop()})
	require.NoError(t, err)
	res, err := c.Run(ctx)
	require.NoError(t, err)
	return res
}

var corpus = []corpusMessage{
	{100, "The cat sat on the mat"},
	{100, "the cat ran"},
	{100, "hello"},
	{200, "a  b"},
	{200, "The dog sat"},
	{300, "cat sat"},
}

func TestCompileSQLiteEndToEnd(t *testing.T) {
	dir := t.TempDir()
	sourcePath := createSource(t, dir, corpus)
	modelPath := filepath.Join(dir, "model.db")

	res := compileOnce(t, sourcePath, modelPath, nil)
	assert.Equal(t, 3, res.Users)

	dump := dumpModel(t, modelPath)
	assert.Len(t, dump["users"], 3)

	// Bijection: link IDs are exactly 0..N-1
	require.Len(t, dump["links"], res.Links)
	ids := make(map[string]bool)
	for _, line := range dump["links"] {
		ids[strings.SplitN(line, "|", 2)[0]] = true
	}
	for i := 0; i < res.Links; i++ {
		assert.True(t, ids[fmt.Sprint(i)], "missing link id %d", i)
	}

	for _, line := range dump["user_lexicons"] {
		assert.NotContains(t, line, "||", "empty word stored: %s", line)
	}

	ctx := context.Background()
	model, err := sqlite.OpenModel(ctx, modelPath)
	require.NoError(t, err)
	defer model.Close()

	next, err := model.LinksFrom(ctx, "the")
	require.NoError(t, err)
	// "The cat", "the mat", "the cat", "The dog" all fold to start word "the"
	assert.Equal(t, map[string]int64{"cat": 2, "mat": 1, "dog": 1}, next)

	next, err = model.LinksFromFor(ctx, 200, "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"": 1}, next)

	freq, err := model.WordFrequency(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, int64(3), freq)

	freq, err = model.WordFrequencyFor(ctx, 100, "The")
	require.NoError(t, err)
	assert.Equal(t, int64(1), freq, "lexicon keeps case")
}

func TestCompileSQLiteIdempotentRebuild(t *testing.T) {
	dir := t.TempDir()
	sourcePath := createSource(t, dir, corpus)
	modelPath := filepath.Join(dir, "model.db")

	compileOnce(t, sourcePath, modelPath, nil)
	first := dumpModel(t, modelPath)
	compileOnce(t, sourcePath, modelPath, nil)
	second := dumpModel(t, modelPath)

	assert.Equal(t, first, second)
}

func TestCompileSQLiteMerge(t *testing.T) {
	dir := t.TempDir()
	sourcePath := createSource(t, dir, corpus)
	modelPath := filepath.Join(dir, "model.db")

	res := compileOnce(t, sourcePath, modelPath, &config.MergeDirective{Target: 300, Source: 200})
	assert.True(t, res.Merged)

	ctx := context.Background()
	model, err := sqlite.OpenModel(ctx, modelPath)
	require.NoError(t, err)
	defer model.Close()

	// carol (300) now includes bob's (200) words; bob keeps his own
	n, err := model.WordFrequencyFor(ctx, 300, "dog")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = model.WordFrequencyFor(ctx, 200, "dog")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = model.WordFrequencyFor(ctx, 100, "dog")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
