// Command pharmactl runs operational tasks against a PharmaDesk deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pharmadesk/pharmadesk/cmd/pharmactl/cli"
	"github.com/pharmadesk/pharmadesk/internal/app"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/jobs"
)

const usage = `usage: pharmactl <command> [flags]

commands:
  trigger <job>   enqueue a job now (%s)
  queue           show default queue statistics
  migrate         apply pending database migrations
`

func main() {
	if app.InTestMode() {
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintf(stderr, usage, jobs.TaskTypes)
		return 2
	}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	jsonOut := fs.Bool("json", false, "print JSON instead of text")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	out := cli.Output{JSON: *jsonOut, Stdout: stdout, Stderr: stderr}

	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	switch args[0] {
	case "trigger", "queue":
		jobsCLI, err := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
		defer func() { _ = jobsCLI.Close() }()
		if args[0] == "queue" {
			return jobsCLI.QueueCommand(ctx, out)
		}
		if fs.NArg() != 1 {
			_, _ = fmt.Fprintf(stderr, "trigger: expected one job name, one of %v\n", jobs.TaskTypes)
			return 2
		}
		return jobsCLI.TriggerCommand(ctx, fs.Arg(0), out)
	case "migrate":
		pool, err := db.New(ctx, cfg.PGDSN, 2)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "connect postgres: %v\n", err)
			return 1
		}
		defer pool.Close()
		return cli.MigrateCommand(ctx, func(ctx context.Context) ([]string, error) {
			return db.Migrate(ctx, pool)
		}, out)
	default:
		_, _ = fmt.Fprintf(stderr, usage, jobs.TaskTypes)
		return 2
	}
}
