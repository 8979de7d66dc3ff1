// internal/cli/search.go
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/forumgrep/internal/engine/batch"
	"github.com/law-makers/forumgrep/internal/reqctx"
	"github.com/law-makers/forumgrep/internal/ui"
	"github.com/law-makers/forumgrep/internal/utils/output"
)

var (
	keywordsText string
	keywordsFile string
	onePageOnly  bool
	maxPages     int
	outputPath   string
	outputFormat string
	noProgress   bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [keyword...]",
	Short: "Search a site for keywords and export matching messages",
	Long: `Searches the selected site for every keyword and writes each message that
mentions it as a row: keyword, timestamp, username, link and text.

Keywords come from arguments, from --keywords (newline-separated) or from
--keywords-file ("-" reads stdin). A keyword with no results is skipped; a
server outage or a rejected session stops the whole batch.`,
	Example: `  # Search bhf for a phone prefix, first result page only
  forumgrep search "+380" --one-page -o results.csv

  # Search lolz through the web index, up to 3 result pages per keyword
  forumgrep search --site lolz --max-pages 3 --keywords-file keywords.txt -o report.html

  # Pipe keywords in and write Markdown
  cat keywords.txt | forumgrep search --keywords-file - --format md -o report.md`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&keywordsText, "keywords", "k", "", "Newline-separated keywords")
	searchCmd.Flags().StringVarP(&keywordsFile, "keywords-file", "f", "", "File with one keyword per line (\"-\" for stdin)")
	searchCmd.Flags().BoolVar(&onePageOnly, "one-page", false, "Only visit the first result page of each keyword")
	searchCmd.Flags().IntVar(&maxPages, "max-pages", 0, "Maximum result pages per keyword (default from config)")
	searchCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default stdout)")
	searchCmd.Flags().StringVar(&outputFormat, "format", "", "Output format: csv, json, html, md, xlsx (default from extension)")
	searchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	keywords, err := collectKeywords(args, keywordsText, keywordsFile, os.Stdin)
	if err != nil {
		return err
	}
	if len(keywords) == 0 {
		return fmt.Errorf("no keywords given (use arguments, --keywords or --keywords-file)")
	}

	pages := maxPages
	if pages <= 0 {
		pages = a.Config.MaxPages
	}
	format := outputFormat
	if format == "" && outputPath == "" {
		format = a.Config.Format
	}

	crawler, err := a.NewCrawler(siteFlag(cmd))
	if err != nil {
		return err
	}

	writer, err := output.New(format, outputPath)
	if err != nil {
		return err
	}

	ctx := reqctx.WithRequestContext(cmd.Context(), crawler.Name())
	logger := reqctx.Logger(ctx)
	logger.Info().
		Int("keywords", len(keywords)).
		Bool("one_page", onePageOnly).
		Int("max_pages", pages).
		Msg("Starting search")

	bar := newProgressBar(len(keywords), !noProgress && a.Config.LogLevel != "debug" && !a.Config.JSONLog)
	runner := batch.New(crawler, writer, batch.Options{
		OnePageOnly: onePageOnly,
		MaxPages:    pages,
		Progress: func(e batch.Event) {
			if bar == nil {
				return
			}
			bar.Describe(fmt.Sprintf("%-20s", truncate(e.Keyword, 20)))
			_ = bar.Add(1)
		},
	})

	stats, runErr := runner.Run(ctx, keywords)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	// Rows found before a failure are still written out
	if err := writer.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to write output: %w", err)
	}
	if runErr != nil {
		return runErr
	}

	printSummary(stats, outputPath)
	return nil
}

func siteFlag(cmd *cobra.Command) string {
	site, _ := cmd.Flags().GetString("site")
	return site
}

// collectKeywords merges keywords from arguments, the inline list and the
// keyword file, in that order.
func collectKeywords(args []string, inline, file string, stdin io.Reader) ([]string, error) {
	var keywords []string
	for _, arg := range args {
		if kw := strings.TrimSpace(arg); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	keywords = append(keywords, batch.ParseKeywords(inline)...)

	if file == "" {
		return keywords, nil
	}

	var r io.Reader = stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open keywords file: %w", err)
		}
		defer f.Close()
		r = f
	}

	fromFile, err := batch.ReadKeywords(r)
	if err != nil {
		return nil, err
	}
	return append(keywords, fromFile...), nil
}

func newProgressBar(total int, enabled bool) *progressbar.ProgressBar {
	if !enabled || total < 2 || !isTerminal(os.Stderr) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("searching"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func printSummary(stats batch.Stats, path string) {
	fmt.Fprintf(os.Stderr, "\n%s\n", ui.Success("✓ Search complete"))
	fmt.Fprintf(os.Stderr, "  %s %d (%d without results)\n", ui.Bold("Keywords:"), stats.Keywords, stats.NoResults)
	fmt.Fprintf(os.Stderr, "  %s %d\n", ui.Bold("Pages:"), stats.Pages)
	fmt.Fprintf(os.Stderr, "  %s %d\n", ui.Bold("Messages:"), stats.Rows)
	if stats.MalformedPages > 0 {
		fmt.Fprintf(os.Stderr, "  %s %d\n", ui.Bold("Unreadable pages:"), stats.MalformedPages)
	}
	if path != "" {
		fmt.Fprintf(os.Stderr, "  %s %s\n", ui.Bold("Saved to:"), path)
	}
	fmt.Fprintln(os.Stderr)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
