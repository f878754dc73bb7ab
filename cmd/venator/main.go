package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/venatordev/venator/internal/app"
	"github.com/venatordev/venator/internal/common"
	"github.com/venatordev/venator/internal/models"
)

const usage = `Usage: venator <command> [flags]

Commands:
  search   Run a job search and store the results
  job      Fetch one job's detail page by URL or id
  serve    Run the long-lived service loop
  status   Report browser and session health
  close    Terminate the shared browser

Run "venator <command> -h" for command flags.
`

// listFlag collects repeatable string flags.
type listFlag []string

func (l *listFlag) String() string { return fmt.Sprintf("%v", *l) }

func (l *listFlag) Set(value string) error {
	*l = append(*l, value)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command := os.Args[1]
	if command == "-v" || command == "-version" || command == "--version" {
		fmt.Printf("Venator version %s\n", common.GetFullVersion())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "search":
		err = runSearch(ctx, os.Args[2:])
	case "job":
		err = runJob(ctx, os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "status":
		err = runStatus(ctx, os.Args[2:])
	case "close":
		err = runClose(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		common.GetLogger().Fatal().Err(err).Str("command", command).Msg("Command failed")
		os.Exit(1)
	}
}

// commonFlags registers the flags every command shares and returns the
// override holder they write into.
func commonFlags(fs *flag.FlagSet) (*listFlag, *common.FlagOverrides) {
	configs := &listFlag{}
	fs.Var(configs, "config", "Configuration file path (repeatable, later files override earlier ones)")

	overrides := &common.FlagOverrides{}
	fs.Func("headless", "Run the browser headless (true/false)", func(v string) error {
		b := strings.EqualFold(v, "true") || v == "1"
		overrides.Headless = &b
		return nil
	})
	fs.IntVar(&overrides.DebugPort, "debug-port", 0, "Browser debug port (overrides config)")
	fs.StringVar(&overrides.StateDir, "state-dir", "", "State directory (overrides config)")
	fs.StringVar(&overrides.LogLevel, "log-level", "", "Log level (overrides config)")
	return configs, overrides
}

// setup follows the startup order: config, flag overrides, logger, banner.
func setup(configs listFlag, overrides common.FlagOverrides) (*app.App, error) {
	if len(configs) == 0 {
		if _, err := os.Stat("venator.toml"); err == nil {
			configs = append(configs, "venator.toml")
		} else if _, err := os.Stat("deployments/local/venator.toml"); err == nil {
			configs = append(configs, "deployments/local/venator.toml")
		}
	}

	config, err := common.LoadFromFiles(configs...)
	if err != nil {
		return nil, err
	}
	common.ApplyFlagOverrides(config, overrides)

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	return app.New(config, logger)
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configs, overrides := commonFlags(fs)

	var keywords, locations listFlag
	fs.Var(&keywords, "keywords", "Search keywords (repeatable, required)")
	fs.Var(&locations, "location", "Location name or numeric geo id (repeatable)")
	limit := fs.Int("limit", 0, "Maximum results (default from config)")
	distance := fs.Int("distance", 0, "Location radius (default from config)")
	timeFilter := fs.String("time-filter", "", "Posting age: 24h, week, month")
	sortBy := fs.String("sort", "", "Result order: recent, relevant")
	easyApply := fs.Bool("easy-apply", false, "Only quick-apply postings")
	company := fs.String("company", "", "Company id filter")

	var jobTypes, experience, workTypes listFlag
	fs.Var(&jobTypes, "job-type", "Job type filter (repeatable): full-time, part-time, contract, ...")
	fs.Var(&experience, "experience", "Experience filter (repeatable): entry, associate, mid-senior, ...")
	fs.Var(&workTypes, "work-type", "Workplace filter (repeatable): onsite, remote, hybrid")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(keywords) == 0 {
		return fmt.Errorf("search requires -keywords")
	}
	if len(locations) == 0 {
		locations = listFlag{""}
	}

	a, err := setup(*configs, *overrides)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	// One query per (keywords, location) pair; results merge by job id.
	var queries []models.SearchQuery
	for _, kw := range keywords {
		for _, loc := range locations {
			query := models.SearchQuery{
				Keywords:         kw,
				Location:         loc,
				Limit:            *limit,
				Distance:         *distance,
				TimeFilter:       *timeFilter,
				SortBy:           *sortBy,
				CompanyID:        *company,
				JobTypes:         []string(jobTypes),
				ExperienceLevels: []string(experience),
				WorkTypes:        []string(workTypes),
			}
			if *easyApply {
				yes := true
				query.EasyApply = &yes
			}
			queries = append(queries, query)
		}
	}

	jobs, err := a.RunSearch(ctx, queries)
	if err != nil {
		return err
	}
	return printJSON(jobs)
}

func runJob(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("job", flag.ExitOnError)
	configs, overrides := commonFlags(fs)

	jobURL := fs.String("url", "", "Job view URL")
	jobID := fs.String("id", "", "Job id (alternative to -url)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobURL == "" && *jobID == "" {
		return fmt.Errorf("job requires -url or -id")
	}
	target := *jobURL
	if target == "" {
		target = fmt.Sprintf("https://www.linkedin.com/jobs/view/%s/", *jobID)
	}

	a, err := setup(*configs, *overrides)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	result, err := a.RunJobDetail(ctx, target)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configs, overrides := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(*configs, *overrides)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	return a.Serve(ctx)
}

func runStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configs, overrides := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(*configs, *overrides)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	return printJSON(a.CurrentStatus(ctx))
}

func runClose(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	configs, overrides := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(*configs, *overrides)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	a.TerminateBrowser(ctx)
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
