package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/cognicore/markov/pkg/markov/internalerr"
	"github.com/cognicore/markov/pkg/markov/store"
)

// SourceStore reads users and messages from an existing source database.
// Expected tables: users(userID, username, discriminator),
// messages(messageID, content) and user_messages(userID, messageID).
type SourceStore struct {
	db *sql.DB
}

var _ store.Source = (*SourceStore)(nil)

// OpenSource opens the source database read-only. The file must exist.
func OpenSource(ctx context.Context, path string) (*SourceStore, error) {
	if err := requireFile(path); err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	dsn, err := readOnlyDSN(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	db, err := openDB(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}
	return &SourceStore{db: db}, nil
}

// readOnlyDSN builds a read-only SQLite URI for path. The path is made
// absolute and escaped so that '?' and '#' in file names survive.
func readOnlyDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}
	return u.String(), nil
}

// Close closes the database connection
func (s *SourceStore) Close() error {
	return s.db.Close()
}

// ListUsers returns all users ordered by ID.
func (s *SourceStore) ListUsers(ctx context.Context) ([]store.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT userID, username, discriminator FROM users ORDER BY userID`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []store.User
	for rows.Next() {
		var u store.User
		var name, disc sql.NullString
		if err := rows.Scan(&u.ID, &name, &disc); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Username = nullString(name)
		u.Discriminator = nullString(disc)
		users = append(users, u)
	}
	return users, rows.Err()
}

// MessagesForUser returns the content of every message linked to the user.
// Messages with NULL content are skipped.
func (s *SourceStore) MessagesForUser(ctx context.Context, userID int64) ([]string, error) {
	const query = `
SELECT messages.content
FROM users
JOIN user_messages ON users.userID = user_messages.userID
JOIN messages ON user_messages.messageID = messages.messageID
WHERE users.userID = ? AND messages.content IS NOT NULL
ORDER BY messages.messageID;
`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("messages for user %d: %w", userID, err)
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, content)
	}
	return messages, rows.Err()
}
