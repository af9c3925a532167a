package app

import (
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskradar/internal/api"
	"taskradar/internal/domain"
	"taskradar/internal/scan"
)

type runtimeLoader func() (*runtime, error)

func newServeCmd(load runtimeLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scan scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if rt.cfg.PatternsPath != "" {
				go func() {
					if err := rt.patterns.Watch(ctx); err != nil {
						log.Printf("pattern watch disabled: %v", err)
					}
				}()
			}
			if rt.cfg.AutoScanOnStart {
				rt.scheduler.Start(ctx)
				log.Printf("auto-scan started on boot")
			}

			server := api.NewServer(ctx, rt.service, rt.scheduler, rt.ledger)
			return server.ListenAndServe(ctx, rt.cfg.ListenAddr)
		},
	}
}

func newScanCmd(load runtimeLoader) *cobra.Command {
	p := scan.DefaultNeedParams()
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Classify posts from one subreddit with the general-need classifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateLimit(p.Limit); err != nil {
				return err
			}
			rt, err := load()
			if err != nil {
				return err
			}
			defer rt.Close()

			res := rt.service.NeedScan(cmd.Context(), p)
			out := cmd.OutOrStdout()
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
				return nil
			}
			renderNeedTable(out, res.Posts)
			s := res.Stats
			fmt.Fprintf(out, "total=%d product_needs=%d personal_issues=%d worth_looking=%d unclear=%d\n",
				s.Total, s.ProductNeeds, s.PersonalIssues, s.WorthLooking, s.Unclear)
			return nil
		},
	}
	cmd.Flags().StringVarP(&p.Subreddit, "subreddit", "s", p.Subreddit, "Subreddit to search")
	cmd.Flags().StringVarP(&p.Keyword, "keyword", "k", p.Keyword, "Search query")
	cmd.Flags().IntVarP(&p.Limit, "limit", "n", p.Limit, "Maximum posts to fetch (1-100)")
	cmd.Flags().StringVar(&p.TimeFilter, "time-filter", p.TimeFilter, "Recency window: hour, day, week, month, year, all")
	cmd.Flags().BoolVar(&p.UseMock, "mock", false, "Use built-in mock posts instead of Reddit")
	cmd.Flags().BoolVar(&p.VerifyLinks, "verify", p.VerifyLinks, "Verify post URLs still resolve")
	cmd.Flags().IntVar(&p.MaxVerify, "max-verify", p.MaxVerify, "Number of leading posts to verify")
	return cmd
}

func newTasksCmd(load runtimeLoader) *cobra.Command {
	var p scan.TaskParams
	var subreddits string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Scan task subreddits and classify against the skill profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateLimit(p.Limit); err != nil {
				return err
			}
			rt, err := load()
			if err != nil {
				return err
			}
			defer rt.Close()

			for _, sub := range strings.Split(subreddits, ",") {
				if sub = strings.TrimSpace(sub); sub != "" {
					p.Subreddits = append(p.Subreddits, sub)
				}
			}
			res := rt.service.TaskScan(cmd.Context(), p)
			out := cmd.OutOrStdout()
			for _, fe := range res.Errors {
				fmt.Fprintf(out, "warning: r/%s: %s\n", fe.Subreddit, fe.Error)
			}
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
				return nil
			}
			renderTaskTable(out, res.Posts)
			s := res.Stats
			fmt.Fprintf(out, "total=%d skill_match=%d maybe_match=%d irrelevant=%d danger=%d\n",
				s.Total, s.SkillMatch, s.MaybeMatch, s.Irrelevant, s.Danger)
			return nil
		},
	}
	cmd.Flags().StringVar(&subreddits, "subreddits", "", "Comma-separated subreddits (default: configured list)")
	cmd.Flags().StringVarP(&p.Keyword, "keyword", "k", "", "Search query (default: configured skill keywords)")
	cmd.Flags().IntVarP(&p.Limit, "limit", "n", scan.DefaultLimit, "Maximum posts per subreddit (1-100)")
	cmd.Flags().StringVar(&p.TimeFilter, "time-filter", scan.DefaultTaskTimeFilter, "Recency window: hour, day, week, month, year, all")
	return cmd
}

func newNotifyCmd(load runtimeLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Run one scan-and-notify cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.service.ScanAndNotify(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), scan.FormatCycleSummary(res))
			return err
		},
	}
}

// validateLimit applies the same 1-100 range as the API and scan_limit.
func validateLimit(n int) error {
	if n < 1 || n > 100 {
		return fmt.Errorf("invalid --limit %d: must be between 1 and 100", n)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func renderNeedTable(w io.Writer, posts []domain.NeedResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "Conf", "Need", "Personal", "Score", "Comments", "Title"})
	table.SetAutoWrapText(false)
	for _, p := range posts {
		table.Append([]string{
			string(p.Category),
			strconv.FormatFloat(p.Confidence, 'f', 2, 64),
			strconv.Itoa(p.NeedScore),
			strconv.Itoa(p.PersonalScore),
			strconv.Itoa(p.Score),
			strconv.Itoa(p.NumComments),
			truncate(p.Title, 60),
		})
	}
	table.Render()
}

func renderTaskTable(w io.Writer, posts []domain.EnrichedPost) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "Conf", "Skill", "Budget", "Fresh", "AI", "Subreddit", "Title"})
	table.SetAutoWrapText(false)
	for _, p := range posts {
		budget := "-"
		if p.Budget != nil {
			budget = "$" + strconv.FormatFloat(*p.Budget, 'f', -1, 64)
		}
		ai := "-"
		if p.Analysis != nil {
			ai = "yes"
			if !p.Analysis.WorthTaking {
				ai = "no"
			}
		}
		table.Append([]string{
			string(p.EffectiveCategory()),
			strconv.FormatFloat(p.Confidence, 'f', 2, 64),
			strconv.Itoa(p.SkillScore),
			budget,
			p.FreshnessLabel,
			ai,
			p.Subreddit,
			truncate(p.Title, 60),
		})
	}
	table.Render()
}
