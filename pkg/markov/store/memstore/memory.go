package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cognicore/markov/pkg/markov/chain"
	"github.com/cognicore/markov/pkg/markov/internalerr"
	"github.com/cognicore/markov/pkg/markov/store"
)

// Source is an in-memory implementation of store.Source for tests.
type Source struct {
	mu       sync.RWMutex
	users    []store.User
	messages map[int64][]string
}

var _ store.Source = (*Source)(nil)

// NewSource creates an empty in-memory source.
func NewSource() *Source {
	return &Source{messages: make(map[int64][]string)}
}

// AddUser appends a user to the source.
func (s *Source) AddUser(u store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

// AddMessages appends messages sent by userID.
func (s *Source) AddMessages(userID int64, msgs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[userID] = append(s.messages[userID], msgs...)
}

// Close implements store.Source.
func (s *Source) Close() error { return nil }

// ListUsers returns users in insertion order.
func (s *Source) ListUsers(ctx context.Context) ([]store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.User(nil), s.users...), nil
}

// MessagesForUser returns a copy of the user's messages.
func (s *Source) MessagesForUser(ctx context.Context, userID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.messages[userID]...), nil
}

// Model is an in-memory implementation of store.Model and store.ModelReader.
type Model struct {
	mu        sync.RWMutex
	users     map[int64]store.User
	links     map[chain.LinkID]chain.Link
	userLinks map[int64]map[chain.LinkID]int64
	lexicons  map[int64]map[string]int64
}

var (
	_ store.Model       = (*Model)(nil)
	_ store.ModelReader = (*Model)(nil)
)

// NewModel creates an empty in-memory model.
func NewModel() *Model {
	return &Model{
		users:     make(map[int64]store.User),
		links:     make(map[chain.LinkID]chain.Link),
		userLinks: make(map[int64]map[chain.LinkID]int64),
		lexicons:  make(map[int64]map[string]int64),
	}
}

// Close implements store.Model.
func (m *Model) Close() error { return nil }

// UpsertUsers inserts or replaces users keyed by ID.
func (m *Model) UpsertUsers(ctx context.Context, users []store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		m.users[u.ID] = u
	}
	return nil
}

// ClearDerived drops all links, user links and lexicons.
func (m *Model) ClearDerived(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userLinks = make(map[int64]map[chain.LinkID]int64)
	m.links = make(map[chain.LinkID]chain.Link)
	m.lexicons = make(map[int64]map[string]int64)
	return nil
}

// WriteUserFacts stores a user's facts. Like a primary key, a user's rows may
// only be written once between clears.
func (m *Model) WriteUserFacts(ctx context.Context, facts store.UserFacts) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lexicons[facts.UserID]; ok {
		return fmt.Errorf("%w: facts for user %d", internalerr.ErrInvalidInput, facts.UserID)
	}
	if _, ok := m.userLinks[facts.UserID]; ok {
		return fmt.Errorf("%w: facts for user %d", internalerr.ErrInvalidInput, facts.UserID)
	}

	lex := make(map[string]int64, len(facts.Lexicon))
	for w, n := range facts.Lexicon {
		if w == "" {
			continue
		}
		lex[w] = n
	}
	links := make(map[chain.LinkID]int64, len(facts.Chain))
	for id, n := range facts.Chain {
		links[id] = n
	}
	m.lexicons[facts.UserID] = lex
	m.userLinks[facts.UserID] = links
	return nil
}

// WriteLinks stores link definitions, rejecting duplicate IDs.
func (m *Model) WriteLinks(ctx context.Context, defs []chain.LinkDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[chain.LinkID]struct{}, len(defs))
	for _, d := range defs {
		if _, ok := m.links[d.ID]; ok {
			return fmt.Errorf("%w: duplicate link %d", internalerr.ErrInvalidInput, d.ID)
		}
		if _, ok := seen[d.ID]; ok {
			return fmt.Errorf("%w: duplicate link %d", internalerr.ErrInvalidInput, d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	for _, d := range defs {
		m.links[d.ID] = d.Link
	}
	return nil
}

// Users returns the mirrored users ordered by ID.
func (m *Model) Users() []store.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Links returns the stored link definitions ordered by ID.
func (m *Model) Links() []chain.LinkDef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]chain.LinkDef, 0, len(m.links))
	for id, l := range m.links {
		out = append(out, chain.LinkDef{ID: id, Link: l})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UserLinks returns a copy of one user's link frequencies.
func (m *Model) UserLinks(userID int64) map[chain.LinkID]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[chain.LinkID]int64, len(m.userLinks[userID]))
	for id, n := range m.userLinks[userID] {
		out[id] = n
	}
	return out
}

// UserLexicon returns a copy of one user's word frequencies.
func (m *Model) UserLexicon(userID int64) map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.lexicons[userID]))
	for w, n := range m.lexicons[userID] {
		out[w] = n
	}
	return out
}

// LinksFrom implements store.ModelReader.
func (m *Model) LinksFrom(ctx context.Context, word string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	next := make(map[string]int64)
	for _, links := range m.userLinks {
		m.collectNext(next, links, strings.ToLower(word))
	}
	return next, nil
}

// LinksFromFor implements store.ModelReader.
func (m *Model) LinksFromFor(ctx context.Context, userID int64, word string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	next := make(map[string]int64)
	m.collectNext(next, m.userLinks[userID], strings.ToLower(word))
	return next, nil
}

// collectNext assumes m.mu is held.
func (m *Model) collectNext(next map[string]int64, links map[chain.LinkID]int64, from string) {
	for id, n := range links {
		l, ok := m.links[id]
		if !ok || l.From != from {
			continue
		}
		next[l.To] += n
	}
}

// LexiconSize implements store.ModelReader.
func (m *Model) LexiconSize(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	words := make(map[string]struct{})
	for _, lex := range m.lexicons {
		for w := range lex {
			words[w] = struct{}{}
		}
	}
	return int64(len(words)), nil
}

// LexiconSizeFor implements store.ModelReader.
func (m *Model) LexiconSizeFor(ctx context.Context, userID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.lexicons[userID])), nil
}

// WordFrequency implements store.ModelReader.
func (m *Model) WordFrequency(ctx context.Context, word string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, lex := range m.lexicons {
		total += lex[word]
	}
	return total, nil
}

// WordFrequencyFor implements store.ModelReader.
func (m *Model) WordFrequencyFor(ctx context.Context, userID int64, word string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lexicons[userID][word], nil
}

// LinkCount implements store.ModelReader.
func (m *Model) LinkCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.links)), nil
}
