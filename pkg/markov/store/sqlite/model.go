package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cognicore/markov/pkg/markov/chain"
	"github.com/cognicore/markov/pkg/markov/internalerr"
	"github.com/cognicore/markov/pkg/markov/store"
)

// ModelStore implements store.Model and store.ModelReader on SQLite
type ModelStore struct {
	db *sql.DB
}

var (
	_ store.Model       = (*ModelStore)(nil)
	_ store.ModelReader = (*ModelStore)(nil)
)

// OpenModel opens (creating if needed) the model database with WAL mode and
// foreign keys enabled, and creates any missing tables.
func OpenModel(ctx context.Context, path string) (*ModelStore, error) {
	if path == "" {
		return nil, fmt.Errorf("open model: %w: empty database path", internalerr.ErrStoreUnavailable)
	}
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}

	// One connection keeps per-connection pragmas in effect for every statement
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open model %s: %w: %v", path, internalerr.ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open model %s: %w: %v", path, internalerr.ErrStoreUnavailable, err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init model schema: %w", err)
	}

	return &ModelStore{db: db}, nil
}

// Close closes the database connection
func (s *ModelStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
	userID INTEGER PRIMARY KEY,
	username TEXT,
	discriminator TEXT
);

CREATE TABLE IF NOT EXISTS links (
	linkID INTEGER PRIMARY KEY,
	startWord TEXT NOT NULL,
	endWord TEXT NOT NULL,
	UNIQUE(startWord, endWord)
);

CREATE TABLE IF NOT EXISTS user_links (
	userID INTEGER NOT NULL,
	linkID INTEGER NOT NULL,
	frequency INTEGER NOT NULL,
	PRIMARY KEY(userID, linkID),
	FOREIGN KEY(userID) REFERENCES users(userID)
);

CREATE TABLE IF NOT EXISTS user_lexicons (
	userID INTEGER NOT NULL,
	word TEXT NOT NULL,
	frequency INTEGER NOT NULL,
	PRIMARY KEY(userID, word),
	FOREIGN KEY(userID) REFERENCES users(userID)
);

CREATE INDEX IF NOT EXISTS idx_links_start ON links(startWord);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertUsers inserts or updates every user in one transaction.
func (s *ModelStore) UpsertUsers(ctx context.Context, users []store.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO users (userID, username, discriminator) VALUES (?, ?, ?)
ON CONFLICT(userID) DO UPDATE SET
	username=excluded.username,
	discriminator=excluded.discriminator;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range users {
		if _, err := stmt.ExecContext(ctx, u.ID, u.Username, u.Discriminator); err != nil {
			return fmt.Errorf("upsert user %d: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// ClearDerived deletes all compiled rows. user_links goes before links since
// its rows reference link IDs.
func (s *ModelStore) ClearDerived(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"user_links", "links", "user_lexicons"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// WriteUserFacts stores a user's lexicon and chain in one transaction.
func (s *ModelStore) WriteUserFacts(ctx context.Context, facts store.UserFacts) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertUserLexicon(ctx, tx, facts); err != nil {
		return err
	}
	if err := insertUserLinks(ctx, tx, facts); err != nil {
		return err
	}
	return tx.Commit()
}

func insertUserLexicon(ctx context.Context, tx *sql.Tx, facts store.UserFacts) error {
	if len(facts.Lexicon) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO user_lexicons (userID, word, frequency) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, word := range facts.Lexicon.Words() {
		if word == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, facts.UserID, word, facts.Lexicon[word]); err != nil {
			return fmt.Errorf("insert lexicon word %q: %w", word, err)
		}
	}
	return nil
}

func insertUserLinks(ctx context.Context, tx *sql.Tx, facts store.UserFacts) error {
	if len(facts.Chain) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO user_links (userID, linkID, frequency) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range facts.Chain.SortedIDs() {
		if _, err := stmt.ExecContext(ctx, facts.UserID, int64(id), facts.Chain[id]); err != nil {
			return fmt.Errorf("insert user link %d: %w", id, err)
		}
	}
	return nil
}

// WriteLinks stores link definitions in one transaction.
func (s *ModelStore) WriteLinks(ctx context.Context, links []chain.LinkDef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO links (linkID, startWord, endWord) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, def := range links {
		if _, err := stmt.ExecContext(ctx, int64(def.ID), def.From, def.To); err != nil {
			return fmt.Errorf("insert link %d: %w", def.ID, err)
		}
	}
	return tx.Commit()
}
