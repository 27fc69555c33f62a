package compiler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/markov/pkg/markov/chain"
	"github.com/cognicore/markov/pkg/markov/config"
	"github.com/cognicore/markov/pkg/markov/ingest"
	"github.com/cognicore/markov/pkg/markov/lexicon"
	"github.com/cognicore/markov/pkg/markov/store"
)

// Compiler rebuilds a Markov model from a message source.
type Compiler struct {
	source    store.Source
	model     store.Model
	merge     *config.MergeDirective
	tokenizer *ingest.Tokenizer
	logger    *zap.Logger
}

// Options configures a Compiler
type Options struct {
	Source store.Source
	Model  store.Model

	// Merge optionally pools Merge.Source's messages into Merge.Target.
	Merge *config.MergeDirective

	// Tokenizer defaults to ingest.NewTokenizer(nil).
	Tokenizer *ingest.Tokenizer
	Logger    *zap.Logger
}

// Result summarizes a compilation run.
type Result struct {
	RunID       string
	Users       int
	Merged      bool
	Links       int
	LexiconRows int
	LinkRows    int
	Duration    time.Duration
}

// New creates a Compiler with the given collaborators
func New(opts Options) (*Compiler, error) {
	if opts.Source == nil || opts.Model == nil {
		return nil, errors.New("compiler: source and model are required")
	}
	tok := opts.Tokenizer
	if tok == nil {
		tok = ingest.NewTokenizer(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		source:    opts.Source,
		model:     opts.Model,
		merge:     opts.Merge,
		tokenizer: tok,
		logger:    logger,
	}, nil
}

// Run performs a full rebuild: mirror users, clear derived tables, compile
// and store each user's facts, then store the link definitions. Any error
// aborts the run; users already written stay committed.
func (c *Compiler) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{RunID: newRunID()}
	log := c.logger.With(zap.String("run_id", res.RunID))

	users, err := c.source.ListUsers(ctx)
	if err != nil {
		return res, fmt.Errorf("list users: %w", err)
	}
	if err := c.model.UpsertUsers(ctx, users); err != nil {
		return res, fmt.Errorf("mirror users: %w", err)
	}
	log.Debug("users mirrored", zap.Int("users", len(users)))

	if err := c.model.ClearDerived(ctx); err != nil {
		return res, fmt.Errorf("clear derived tables: %w", err)
	}

	registry := chain.NewRegistry()
	builder := chain.NewBuilder(c.tokenizer, registry)

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log.Info("adding user", zap.Int64("user_id", u.ID))

		messages, merged, err := c.messagesFor(ctx, u.ID)
		if err != nil {
			return res, fmt.Errorf("compile user %d: %w", u.ID, err)
		}
		if merged {
			res.Merged = true
			log.Info("pooled merge source", zap.Int64("user_id", u.ID), zap.Int64("source_user_id", c.merge.Source))
		}

		facts := store.UserFacts{
			UserID:  u.ID,
			Chain:   builder.Build(messages),
			Lexicon: lexicon.Build(c.tokenizer, messages),
		}
		if err := c.model.WriteUserFacts(ctx, facts); err != nil {
			return res, fmt.Errorf("compile user %d: %w", u.ID, err)
		}

		res.Users++
		res.LexiconRows += len(facts.Lexicon)
		res.LinkRows += len(facts.Chain)
	}

	if c.merge != nil && !res.Merged {
		log.Warn("merge target not found among users", zap.Int64("target_user_id", c.merge.Target))
	}

	links := registry.Links()
	if err := c.model.WriteLinks(ctx, links); err != nil {
		return res, fmt.Errorf("write links: %w", err)
	}
	res.Links = len(links)
	res.Duration = time.Since(start)

	log.Info("compile complete",
		zap.Int("users", res.Users),
		zap.Int("links", res.Links),
		zap.Int("lexicon_rows", res.LexiconRows),
		zap.Int("link_rows", res.LinkRows),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// messagesFor returns the user's messages, preceded by the merge source's
// messages when userID is the configured merge target.
func (c *Compiler) messagesFor(ctx context.Context, userID int64) ([]string, bool, error) {
	own, err := c.source.MessagesForUser(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("read messages: %w", err)
	}
	sourceID, ok := c.merge.SourceFor(userID)
	if !ok {
		return own, false, nil
	}

	pooled, err := c.source.MessagesForUser(ctx, sourceID)
	if err != nil {
		return nil, false, fmt.Errorf("read merge source %d: %w", sourceID, err)
	}
	return append(pooled, own...), true, nil
}

func newRunID() string {
	return ulid.MustNew(ulid.Now(), ulid.Monotonic(rand.Reader, 0)).String()
}
