package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/ahsanj/local-log-analyzer/internal/services"
	"github.com/ahsanj/local-log-analyzer/internal/storage"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
)

var (
	entryLimit   int
	levelFilter  string
	serviceFilt  string
	searchFilter string
	intervalFlag string
	patternLimit int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Analyze one or more log files",
	Long: `Analyze log files (or glob patterns) and print the summary.

Examples:
  loglens analyze app.log
  loglens analyze "/var/log/**/*.log" --output json
  loglens analyze app.log --entries 20 --level ERROR`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

var detectCmd = &cobra.Command{
	Use:   "detect [paths...]",
	Short: "Print the detected format of each file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDetect,
}

func init() {
	analyzeCmd.Flags().IntVarP(&entryLimit, "entries", "n", 0, "also print up to N matching entries")
	analyzeCmd.Flags().StringVarP(&levelFilter, "level", "l", "", "entry filter: exact level")
	analyzeCmd.Flags().StringVar(&serviceFilt, "service", "", "entry filter: exact service")
	analyzeCmd.Flags().StringVarP(&searchFilter, "search", "s", "", "entry filter: message substring")
	analyzeCmd.Flags().StringVarP(&intervalFlag, "interval", "i", "", "time series bucket width (1m, 5m, 15m, 1h, 1d, ...)")
	analyzeCmd.Flags().IntVarP(&patternLimit, "patterns", "p", 10, "number of patterns to print (text output)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(detectCmd)
}

// expandPaths resolves globs (including **) into a sorted, de-duplicated
// list of regular files.
func expandPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, arg := range args {
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() || seen[m] {
				continue
			}
			seen[m] = true
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files matched the given patterns: %v", args)
	}
	return paths, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	renderer, err := NewRenderer(outputFmt, cmd.OutOrStdout(), patternLimit)
	if err != nil {
		return err
	}

	acfg := appConfig.AnalyzerConfig()
	if intervalFlag != "" {
		d, err := services.ParseInterval(intervalFlag)
		if err != nil {
			return err
		}
		acfg.BucketInterval = d
	}
	analyzer := services.NewLogAnalyzer(storage.NewMemoryStore(), acfg)

	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		analysis, entries, err := analyzer.AnalyzeContent(ctx, path, content)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		report := Report{File: path, Analysis: analysis}
		if entryLimit > 0 {
			page := services.QueryEntries(entries, services.EntryQuery{
				Limit:   entryLimit,
				Level:   levelFilter,
				Service: serviceFilt,
				Search:  searchFilter,
			})
			report.Entries = &page
		}
		if err := renderer.Render(report); err != nil {
			return err
		}
	}
	return renderer.Flush()
}

func runDetect(cmd *cobra.Command, args []string) error {
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		// read past the detection window so a cut-off line can be recognized
		buf := make([]byte, 4096)
		n, _ := io.ReadFull(f, buf)
		f.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", services.DetectFormat(path, buf[:n]), path)
	}
	return nil
}
