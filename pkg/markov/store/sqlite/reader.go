package sqlite

import (
	"context"
	"database/sql"
	"strings"
)

// LinksFrom returns the words that follow word across all users, mapped to
// their summed frequency. word is lower-cased to match how links are keyed.
func (s *ModelStore) LinksFrom(ctx context.Context, word string) (map[string]int64, error) {
	const query = `
SELECT links.endWord, SUM(user_links.frequency)
FROM user_links
JOIN links ON user_links.linkID = links.linkID
WHERE links.startWord = ?
GROUP BY links.endWord;
`
	return s.queryLinks(ctx, query, strings.ToLower(word))
}

// LinksFromFor is LinksFrom restricted to one user.
func (s *ModelStore) LinksFromFor(ctx context.Context, userID int64, word string) (map[string]int64, error) {
	const query = `
SELECT links.endWord, SUM(user_links.frequency)
FROM user_links
JOIN links ON user_links.linkID = links.linkID
WHERE user_links.userID = ? AND links.startWord = ?
GROUP BY links.endWord;
`
	return s.queryLinks(ctx, query, userID, strings.ToLower(word))
}

func (s *ModelStore) queryLinks(ctx context.Context, query string, args ...interface{}) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	next := make(map[string]int64)
	for rows.Next() {
		var word string
		var freq int64
		if err := rows.Scan(&word, &freq); err != nil {
			return nil, err
		}
		next[word] = freq
	}
	return next, rows.Err()
}

// LexiconSize returns the number of distinct words across all users.
func (s *ModelStore) LexiconSize(ctx context.Context) (int64, error) {
	return s.queryCount(ctx, `SELECT COUNT(DISTINCT word) FROM user_lexicons`)
}

// LexiconSizeFor returns the number of distinct words one user has used.
func (s *ModelStore) LexiconSizeFor(ctx context.Context, userID int64) (int64, error) {
	return s.queryCount(ctx, `SELECT COUNT(word) FROM user_lexicons WHERE userID = ?`, userID)
}

// WordFrequency returns how many times any user used word.
func (s *ModelStore) WordFrequency(ctx context.Context, word string) (int64, error) {
	return s.queryCount(ctx, `SELECT COALESCE(SUM(frequency), 0) FROM user_lexicons WHERE word = ?`, word)
}

// WordFrequencyFor returns how many times one user used word.
func (s *ModelStore) WordFrequencyFor(ctx context.Context, userID int64, word string) (int64, error) {
	return s.queryCount(ctx, `SELECT frequency FROM user_lexicons WHERE userID = ? AND word = ?`, userID, word)
}

// LinkCount returns the number of link definitions.
func (s *ModelStore) LinkCount(ctx context.Context) (int64, error) {
	return s.queryCount(ctx, `SELECT COUNT(*) FROM links`)
}

func (s *ModelStore) queryCount(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}
