package store

import (
	"context"

	"github.com/cognicore/markov/pkg/markov/chain"
	"github.com/cognicore/markov/pkg/markov/lexicon"
)

// Source is the read-only message corpus a model is compiled from
type Source interface {
	Close() error

	// ListUsers returns every user in the source, in store order.
	ListUsers(ctx context.Context) ([]User, error)
	// MessagesForUser returns the raw content of every message the user sent.
	MessagesForUser(ctx context.Context, userID int64) ([]string, error)
}

// Model is the destination of a compilation run. Each method that writes
// rows commits them as one unit.
type Model interface {
	Close() error

	// UpsertUsers mirrors users into the model without duplicating rows.
	UpsertUsers(ctx context.Context, users []User) error
	// ClearDerived deletes every user link, link and user lexicon row.
	ClearDerived(ctx context.Context) error
	// WriteUserFacts stores one user's lexicon and chain atomically.
	WriteUserFacts(ctx context.Context, facts UserFacts) error
	// WriteLinks stores the link definitions of a run.
	WriteLinks(ctx context.Context, links []chain.LinkDef) error
}

// ModelReader queries a compiled model
type ModelReader interface {
	// LinksFrom returns next word -> frequency summed over all users.
	LinksFrom(ctx context.Context, word string) (map[string]int64, error)
	// LinksFromFor returns next word -> frequency for one user.
	LinksFromFor(ctx context.Context, userID int64, word string) (map[string]int64, error)
	LexiconSize(ctx context.Context) (int64, error)
	LexiconSizeFor(ctx context.Context, userID int64) (int64, error)
	WordFrequency(ctx context.Context, word string) (int64, error)
	WordFrequencyFor(ctx context.Context, userID int64, word string) (int64, error)
	LinkCount(ctx context.Context) (int64, error)
}

// User represents a message author
type User struct {
	ID            int64
	Username      string
	Discriminator string
}

// UserFacts holds everything compiled for one user.
type UserFacts struct {
	UserID  int64
	Lexicon lexicon.Lexicon
	Chain   chain.Chain
}
