// Command crontabber runs one pass over a configured set of batch jobs:
// resolving which are due, honoring their dependency order, retrying and
// backfilling as needed, and exiting. It is invoked repeatedly by an external
// scheduler (cron, a Kubernetes CronJob, systemd timers) — it never loops or
// daemonizes itself.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/crontabber/crontabber/internal/admin"
	"github.com/crontabber/crontabber/internal/config"
	"github.com/crontabber/crontabber/internal/corelog"
	"github.com/crontabber/crontabber/internal/events"
	"github.com/crontabber/crontabber/internal/nagios"
	"github.com/crontabber/crontabber/internal/registry"
	"github.com/crontabber/crontabber/internal/runner"
	"github.com/crontabber/crontabber/internal/runnererr"
	"github.com/crontabber/crontabber/internal/store"
	"github.com/crontabber/crontabber/internal/store/postgres"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("crontabber", pflag.ContinueOnError)
	adminConf := flags.String("admin.conf", "admin.yaml", "path to the admin configuration file")
	list := flags.Bool("list", false, "list configured jobs and their last-run state, then exit")
	resetJob := flags.String("reset-job", "", "clear persisted state for the named job, then exit")
	jobFilter := flags.String("job", "", "run only the named job")
	force := flags.Bool("force", false, "with --job, run it immediately regardless of due time")
	configTest := flags.Bool("configtest", false, "validate configuration without running any job")
	nagiosMode := flags.Bool("nagios", false, "print a Nagios-compatible status line and exit with its code")
	showVersion := flags.Bool("version", false, "print the version and exit")
	verbose := flags.Bool("verbose", false, "enable debug logging")

	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if *showVersion {
		fmt.Println("crontabber", version)
		return 0
	}

	cfg, err := config.Load(*adminConf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "crontabber:", err)
		return 2
	}
	if *verbose {
		cfg.Verbose = true
	}

	logger, err := corelog.NewZap(cfg.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "crontabber: building logger:", err)
		return 2
	}

	lines, lineErrs := cfg.ConfigLines()
	loader := builtinLoader()
	reg, buildErrs := registry.Build(lines, loader)
	allErrs := append(append([]error(nil), lineErrs...), buildErrs...)

	if *configTest {
		errs := admin.ConfigTest(reg, allErrs)
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		if len(errs) == 0 {
			fmt.Println("configuration OK")
		}
		return len(errs)
	}
	if len(allErrs) > 0 {
		for _, e := range allErrs {
			fmt.Fprintln(os.Stderr, e)
		}
		return 2
	}

	ctx := context.Background()
	s, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "crontabber: connecting to store:", err)
		return 2
	}
	defer closeStore()

	switch {
	case *list:
		summaries, err := admin.List(ctx, s, reg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "crontabber:", err)
			return 2
		}
		fmt.Print(admin.FormatList(summaries))
		return 0

	case *resetJob != "":
		if err := admin.Reset(ctx, s, *resetJob); err != nil {
			fmt.Fprintln(os.Stderr, "crontabber:", err)
			return 2
		}
		fmt.Printf("reset %s\n", *resetJob)
		return 0
	}

	opts := runner.Options{
		BaseBackoff:   cfg.BaseBackoff(),
		MaxOngoingAge: cfg.MaxOngoingAge(),
		OnlyJob:       *jobFilter,
		Force:         *force,
	}

	emitter := events.Emitter(events.LogSink{Logger: logger})
	report, err := runner.Run(ctx, s, reg, emitter, logger, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "crontabber:", err)
		if *nagiosMode {
			fmt.Println(nagios.Critical.String() + " - " + err.Error())
			return nagios.Critical.ExitCode()
		}
		if runnererr.Is(err, runnererr.KindLockHeldProcess) {
			return 3
		}
		return 2
	}

	for _, res := range report.Results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(os.Stderr, "%s: %v\n", res.Identifier, res.Err)
		case res.Ran:
			fmt.Printf("%s: ok\n", res.Identifier)
		case res.Skipped:
			fmt.Printf("%s: skipped (%s)\n", res.Identifier, res.SkipReason)
		}
	}

	if *nagiosMode {
		status, line := nagios.Summarize(ctx, s, report)
		fmt.Println(line)
		return status.ExitCode()
	}
	return report.ExitCode
}

// openStore connects a Postgres-backed store per cfg.Database.DSN, migrating
// the schema on first use.
func openStore(ctx context.Context, cfg *config.Config) (store.StateStore, func(), error) {
	s, err := postgres.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, s.Close, nil
}

// builtinLoader returns the StaticLoader the CLI resolves class paths
// against. No job is registered in it, so every class path in the
// configuration fails to load.
func builtinLoader() *registry.StaticLoader {
	return registry.NewStaticLoader()
}
