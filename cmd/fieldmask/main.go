// Fieldmask masks sensitive fields in fixed-width or delimited text files.
//
// Usage:
//
//	fieldmask -i customers.dat -o customers.masked.dat -r rules.yaml --salt uat
//
// Every flag can also be set through a FIELDMASK_* environment variable
// (FIELDMASK_SALT, FIELDMASK_PREFIX_WIDTH, ...), a .env file passed with
// --env-file, or a YAML/JSON/TOML file passed with --config. Flags win over
// the environment, which wins over the config file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
