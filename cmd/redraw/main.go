// Command redraw builds county-level presidential election maps. Each
// subcommand pulls one vote source, joins it with Census boundaries and
// populations, and writes a simplified TopoJSON file.
//
// Usage:
//
//	redraw 2020 out/2020.topo.json -m 5
//	redraw 2024 out/2024.topo.json --crosswalk resources/ct2022tractcrosswalk.csv
//	redraw mit out/2008.topo.json --csv countypres_2000-2020.csv --year 2008
//	redraw 2016 --check-only
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/election-map-etl/internal/pipeline"
)

func main() {
	_ = godotenv.Load(".env.local")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		stop()
		os.Exit(1)
	}
}

// describe renders err as "stage: error", defaulting to the config stage for
// failures raised before a pipeline ran.
func describe(err error) string {
	var serr *pipeline.StageError
	if errors.As(err, &serr) {
		return serr.Error()
	}
	return fmt.Sprintf("%s: %v", pipeline.StageConfig, err)
}
