package cli

import (
	"context"
	"fmt"
)

// MigrateFunc applies pending migrations and returns their names.
type MigrateFunc func(ctx context.Context) ([]string, error)

// MigrateCommand runs migrate and reports what was applied.
func MigrateCommand(ctx context.Context, migrate MigrateFunc, out Output) int {
	out.defaults()
	applied, err := migrate(ctx)
	for _, name := range applied {
		_, _ = fmt.Fprintf(out.Stdout, "applied %s\n", name)
	}
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "migrate: %v\n", err)
		return 1
	}
	if len(applied) == 0 {
		_, _ = fmt.Fprintln(out.Stdout, "schema up to date")
	}
	return 0
}
