// Command showsearch is the interactive front end: it loads the corpus,
// builds the index once and answers queries typed at a prompt.
//
// Usage:
//
//	go run ./cmd/showsearch [-config path] [-csv netflix_titles.csv] [-q "query"] [-chart]
//	go run ./cmd/showsearch -import netflix_titles.csv   # copy a CSV into the SQL corpus
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/showsearch/showsearch/internal/corpus"
	"github.com/showsearch/showsearch/internal/indexer"
	"github.com/showsearch/showsearch/internal/indexer/stemmer"
	"github.com/showsearch/showsearch/internal/indexer/tokenizer"
	"github.com/showsearch/showsearch/internal/report"
	"github.com/showsearch/showsearch/internal/searcher/executor"
	"github.com/showsearch/showsearch/internal/searcher/parser"
	"github.com/showsearch/showsearch/pkg/config"
	"github.com/showsearch/showsearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	csvPath := flag.String("csv", "", "read the corpus from this CSV file")
	query := flag.String("q", "", "run one query and exit")
	chart := flag.Bool("chart", false, "print the per-release-year chart")
	limit := flag.Int("limit", 0, "maximum results to print (0 prints all)")
	importPath := flag.String("import", "", "import this CSV into the configured SQL corpus and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *csvPath != "" {
		cfg.Corpus.Driver = config.DriverCSV
		cfg.Corpus.Path = *csvPath
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *importPath != "" {
		err = importCSV(ctx, cfg, *importPath)
	} else {
		err = run(ctx, cfg, *query, *chart, *limit, os.Stdin, os.Stdout)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "showsearch: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, query string, chart bool, limit int, in io.Reader, out io.Writer) error {
	provider, err := stemmer.New(cfg.Stemmer.Language, cfg.Stemmer.ExtraStopwords)
	if err != nil {
		return err
	}
	source, err := corpus.New(ctx, cfg)
	if err != nil {
		return err
	}
	engine := indexer.NewEngine(source, tokenizer.NewAnalyzer(provider), cfg.Corpus, nil)
	defer engine.Close()
	snap, err := engine.Load(ctx)
	if err != nil {
		return err
	}
	exec := executor.New(engine, cfg.Search)

	search := func(q string) error {
		result, err := exec.Execute(ctx, parser.Parse(q, engine.Analyzer()), limit)
		if err != nil {
			return err
		}
		printResult(out, result)
		return nil
	}

	switch {
	case query != "":
		if err := search(query); err != nil {
			return err
		}
	case !chart:
		if err := prompt(ctx, in, out, search); err != nil {
			return err
		}
	}
	if chart {
		fmt.Fprintln(out, "Shows by release year:")
		return report.RenderBars(out, report.CountByReleaseYear(snap.Records.All()), 60)
	}
	return nil
}

// prompt reads one query per line until EOF, "quit" or cancellation.
func prompt(ctx context.Context, in io.Reader, out io.Writer, search func(string) error) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Please enter search word: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		if err := search(line); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func importCSV(ctx context.Context, cfg *config.Config, path string) error {
	if cfg.Corpus.Driver == config.DriverCSV {
		return errors.New("-import needs corpus.driver sqlite or postgres")
	}
	records, err := corpus.NewCSVSource(path).Load(ctx)
	if err != nil {
		return err
	}
	source, err := corpus.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer source.Close()
	sqlSource, ok := source.(*corpus.SQLSource)
	if !ok {
		return fmt.Errorf("corpus %s does not accept imports", source.Name())
	}
	if err := sqlSource.Import(ctx, records); err != nil {
		return err
	}
	fmt.Printf("imported %d shows into %s\n", len(records), sqlSource.Name())
	return nil
}
