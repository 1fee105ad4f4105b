package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/apresai/readcast/internal/assembly"
	"github.com/apresai/readcast/internal/config"
	"github.com/apresai/readcast/internal/publish"
)

var (
	flagPublishSource string
	flagPublishLines  int
	flagHistoryLimit  int
	flagHistoryCursor string
)

var publishCmd = &cobra.Command{
	Use:   "publish <mp3-file>",
	Short: "Upload an existing episode to S3 and record it in the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded episodes, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(historyCmd)
	publishCmd.Flags().StringVar(&flagPublishSource, "source-url", "", "Original article URL")
	publishCmd.Flags().IntVar(&flagPublishLines, "lines", 0, "Number of script lines, if known")
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Maximum episodes to show")
	historyCmd.Flags().StringVar(&flagHistoryCursor, "cursor", "", "Continue from a previous page")
}

func publishOverrides(cfg *config.Config) {
	cfg.Publish.Enabled = true
}

func (a *app) publisher(cmd *cobra.Command) (*publish.Publisher, error) {
	awsCfg, err := a.loadAWS(cmd.Context())
	if err != nil {
		return nil, err
	}
	return publish.NewAWSPublisher(awsCfg, a.cfg.Publish.Bucket, a.cfg.Publish.CDNBaseURL, a.cfg.Publish.Table, a.log), nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	mp3Path := args[0]
	if !strings.HasSuffix(strings.ToLower(mp3Path), ".mp3") {
		return fmt.Errorf("file must have .mp3 extension: %s", mp3Path)
	}
	info, err := os.Stat(mp3Path)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", mp3Path)
	}

	ctx := cmd.Context()
	a, err := setup(ctx, false, publishOverrides)
	if err != nil {
		return err
	}
	defer a.shutdown()

	pub, err := a.publisher(cmd)
	if err != nil {
		return err
	}

	duration := "unknown"
	prober := assembly.NewFFmpegAssembler(assembly.Options{FFprobePath: a.cfg.Output.FFprobePath, Logger: a.log})
	if d, err := prober.ProbeDuration(ctx, mp3Path); err == nil {
		duration = assembly.FormatDuration(d)
	} else {
		a.log.WarnContext(ctx, "Could not probe duration", "path", mp3Path, "error", err)
	}

	source := flagPublishSource
	if source == "" {
		source = mp3Path
	}
	id, err := pub.Begin(ctx, source, "", "")
	if err != nil {
		return err
	}
	url, err := pub.Finish(ctx, id, mp3Path, flagPublishLines, duration)
	if err != nil {
		return err
	}

	fmt.Printf("Published %s (%s, %.1f MB)\n", id, duration, float64(info.Size())/(1024*1024))
	fmt.Printf("  Audio: %s\n", url)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if flagHistoryLimit <= 0 {
		return errors.New("--limit must be positive")
	}

	ctx := cmd.Context()
	a, err := setup(ctx, false, nil)
	if err != nil {
		return err
	}
	defer a.shutdown()

	pub, err := a.publisher(cmd)
	if err != nil {
		return err
	}

	episodes, next, err := pub.Ledger().List(ctx, flagHistoryLimit, flagHistoryCursor)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		fmt.Println("No episodes recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tDURATION\tSOURCE")
	for _, e := range episodes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.EpisodeID, e.Status, e.CreatedAt, e.Duration, e.Source)
	}
	tw.Flush()
	if next != "" {
		fmt.Printf("\nMore: --cursor %s\n", next)
	}
	return nil
}
