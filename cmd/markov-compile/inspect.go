package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cognicore/markov/pkg/markov/store"
	"github.com/cognicore/markov/pkg/markov/store/sqlite"
)

var (
	inspectWord  string
	inspectUser  int64
	inspectLimit int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print statistics of a compiled model",
	Long: `inspect reads the model database and prints its link and lexicon sizes.
With --word it also prints the word's frequency and the words that follow it.
With --user the statistics are restricted to one user.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectWord, "word", "", "Show frequency and successors of this word")
	inspectCmd.Flags().Int64Var(&inspectUser, "user", 0, "Restrict statistics to this user ID")
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 10, "Maximum successors to print")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	model, err := sqlite.OpenModel(ctx, cfg.Model.Path)
	if err != nil {
		return fmt.Errorf("open model: %w", err)
	}
	defer model.Close()

	q := inspectQuery{Word: inspectWord, Limit: inspectLimit}
	if cmd.Flags().Changed("user") {
		q.UserID = &inspectUser
	}
	return printInspect(ctx, cmd.OutOrStdout(), model, q)
}

type inspectQuery struct {
	Word   string
	UserID *int64
	Limit  int
}

type successor struct {
	Word string
	Freq int64
}

func printInspect(ctx context.Context, out io.Writer, r store.ModelReader, q inspectQuery) error {
	links, err := r.LinkCount(ctx)
	if err != nil {
		return fmt.Errorf("link count: %w", err)
	}
	var lexSize int64
	if q.UserID != nil {
		lexSize, err = r.LexiconSizeFor(ctx, *q.UserID)
	} else {
		lexSize, err = r.LexiconSize(ctx)
	}
	if err != nil {
		return fmt.Errorf("lexicon size: %w", err)
	}
	fmt.Fprintf(out, "links:   %d\n", links)
	fmt.Fprintf(out, "lexicon: %d\n", lexSize)

	if q.Word == "" {
		return nil
	}

	var freq int64
	var next map[string]int64
	if q.UserID != nil {
		if freq, err = r.WordFrequencyFor(ctx, *q.UserID, q.Word); err == nil {
			next, err = r.LinksFromFor(ctx, *q.UserID, q.Word)
		}
	} else {
		if freq, err = r.WordFrequency(ctx, q.Word); err == nil {
			next, err = r.LinksFrom(ctx, q.Word)
		}
	}
	if err != nil {
		return fmt.Errorf("word %q: %w", q.Word, err)
	}

	fmt.Fprintf(out, "word %q: %d\n", q.Word, freq)
	writeSuccessors(out, next, q.Limit)
	return nil
}

// writeSuccessors prints successors by descending frequency, ties by word.
func writeSuccessors(out io.Writer, next map[string]int64, limit int) {
	list := make([]successor, 0, len(next))
	for w, n := range next {
		list = append(list, successor{Word: w, Freq: n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Freq != list[j].Freq {
			return list[i].Freq > list[j].Freq
		}
		return list[i].Word < list[j].Word
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	for _, s := range list {
		fmt.Fprintf(out, "  -> %q %d\n", s.Word, s.Freq)
	}
}
