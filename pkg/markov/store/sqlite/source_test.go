package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/markov/pkg/markov/internalerr"
	"github.com/cognicore/markov/pkg/markov/store"
)

type seedMessage struct {
	id      int64
	userID  int64
	content interface{} // string or nil
}

// seedSource creates a source database with the given users and messages.
func seedSource(t *testing.T, path string, users []store.User, messages []seedMessage) {
	t.Helper()

	db, err := sql.Open(driverName, path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	defer db.Close()

	const schema = `
CREATE TABLE users (userID INTEGER PRIMARY KEY, username TEXT, discriminator TEXT);
CREATE TABLE messages (messageID INTEGER PRIMARY KEY, content TEXT);
CREATE TABLE user_messages (userID INTEGER NOT NULL, messageID INTEGER NOT NULL, UNIQUE(userID, messageID));
`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create source schema: %v", err)
	}
	for _, u := range users {
		if _, err := db.Exec(`INSERT INTO users (userID, username, discriminator) VALUES (?, ?, ?)`, u.ID, u.Username, u.Discriminator); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	for _, m := range messages {
		if _, err := db.Exec(`INSERT INTO messages (messageID, content) VALUES (?, ?)`, m.id, m.content); err != nil {
			t.Fatalf("seed message: %v", err)
		}
		if _, err := db.Exec(`INSERT INTO user_messages (userID, messageID) VALUES (?, ?)`, m.userID, m.id); err != nil {
			t.Fatalf("seed user_message: %v", err)
		}
	}
}

func TestOpenSourceMissingFile(t *testing.T) {
	ctx := context.Background()

	_, err := OpenSource(ctx, filepath.Join(t.TempDir(), "missing.db"))
	if err == nil {
		t.Fatal("OpenSource should fail for a missing file")
	}
	if !errors.Is(err, internalerr.ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}
}

func TestOpenSourceEmptyPath(t *testing.T) {
	_, err := OpenSource(context.Background(), "")
	if !errors.Is(err, internalerr.ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSourceListUsers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "source.db")
	seedSource(t, path, []store.User{
		{ID: 20, Username: "bob", Discriminator: "0002"},
		{ID: 10, Username: "alice", Discriminator: "0001"},
	}, nil)

	src, err := OpenSource(ctx, path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	users, err := src.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	if users[0].ID != 10 || users[0].Username != "alice" || users[0].Discriminator != "0001" {
		t.Errorf("Unexpected first user: %+v", users[0])
	}
	if users[1].ID != 20 {
		t.Errorf("Users should be ordered by ID, got %+v", users)
	}
}

func TestSourceMessagesForUser(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "source.db")
	seedSource(t, path,
		[]store.User{{ID: 1, Username: "a"}, {ID: 2, Username: "b"}},
		[]seedMessage{
			{id: 100, userID: 1, content: "hello there"},
			{id: 101, userID: 2, content: "other user"},
			{id: 102, userID: 1, content: "general  kenobi"},
			{id: 103, userID: 1, content: nil},
		})

	src, err := OpenSource(ctx, path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	msgs, err := src.MessagesForUser(ctx, 1)
	if err != nil {
		t.Fatalf("MessagesForUser: %v", err)
	}
	want := []string{"hello there", "general  kenobi"}
	if len(msgs) != len(want) {
		t.Fatalf("Expected %d messages, got %d: %q", len(want), len(msgs), msgs)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i], want[i])
		}
	}
}

func TestSourceMessagesForUserWithoutMessages(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "source.db")
	seedSource(t, path, []store.User{{ID: 7, Username: "quiet"}}, nil)

	src, err := OpenSource(ctx, path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	msgs, err := src.MessagesForUser(ctx, 7)
	if err != nil {
		t.Fatalf("MessagesForUser: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected no messages, got %q", msgs)
	}

	// Unknown users yield nothing rather than an error
	msgs, err = src.MessagesForUser(ctx, 999)
	if err != nil {
		t.Fatalf("MessagesForUser unknown: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected no messages for unknown user, got %q", msgs)
	}
}

func TestSourceIsReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "source.db")
	seedSource(t, path, []store.User{{ID: 1}}, nil)

	src, err := OpenSource(ctx, path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	if _, err := src.db.ExecContext(ctx, `DELETE FROM users`); err == nil {
		t.Error("Source connection should reject writes")
	}
}

func TestReadOnlyDSNEscapesPath(t *testing.T) {
	dir := t.TempDir()
	dsn, err := readOnlyDSN(filepath.Join(dir, "a?b#c.db"))
	if err != nil {
		t.Fatalf("readOnlyDSN: %v", err)
	}
	if !strings.HasPrefix(dsn, "file://") || !strings.HasSuffix(dsn, "?mode=ro") {
		t.Errorf("Unexpected DSN shape: %s", dsn)
	}
	if !strings.Contains(dsn, "a%3Fb%23c.db") {
		t.Errorf("'?' and '#' should be escaped in %s", dsn)
	}
	if strings.Count(dsn, "?") != 1 {
		t.Errorf("Only the mode query may contain '?': %s", dsn)
	}
}

func TestOpenSourceSpecialCharactersInPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.db")
	seedSource(t, plain, []store.User{{ID: 7, Username: "gus"}}, []seedMessage{{id: 1, userID: 7, content: "hi there"}})

	odd := filepath.Join(dir, "odd?name#1.db")
	if err := os.Rename(plain, odd); err != nil {
		t.Fatalf("rename: %v", err)
	}

	src, err := OpenSource(ctx, odd)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	users, err := src.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].ID != 7 {
		t.Errorf("Expected user 7 from the renamed file, got %+v", users)
	}
	if _, err := os.Stat(filepath.Join(dir, "odd")); !os.IsNotExist(err) {
		t.Error("Opening must not create a truncated file name")
	}
}
