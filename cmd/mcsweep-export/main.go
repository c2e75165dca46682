package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"mcsweep/internal/config"
	"mcsweep/internal/export"
	"mcsweep/internal/model"
	"mcsweep/internal/store"
	"mcsweep/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "mcsweep-export",
		Usage:   "convert a result store to SQLite, JSONL, CSV or text",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Value: config.DefaultResultsPath, Usage: "result store to read"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "-", Usage: "output file (- for stdout; required for sqlite)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "jsonl", Usage: "sqlite, jsonl, csv or text"},
			&cli.StringSliceFlag{Name: "platform", Usage: "only export these platform tags (repeatable)"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mcsweep-export: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	recs, err := store.New(c.String("in"), nil).Load()
	if err != nil {
		return err
	}
	recs = filterPlatforms(recs, c.StringSlice("platform"))

	out := c.String("out")
	format := strings.ToLower(c.String("format"))

	if format == "sqlite" {
		if out == "-" {
			return fmt.Errorf("sqlite export needs --out")
		}
		db, err := export.OpenDB(out)
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := export.SaveSQLite(context.Background(), db, recs)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "exported %d servers to %s\n", n, out)
		return nil
	}

	var w io.Writer = os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := export.WriteStream(w, format, recs); err != nil {
		return err
	}
	if out != "-" {
		fmt.Fprintf(os.Stderr, "exported %d servers to %s\n", len(recs), out)
	}
	return nil
}

func filterPlatforms(recs []model.StatusRecord, tags []string) []model.StatusRecord {
	if len(tags) == 0 {
		return recs
	}
	keep := make(map[string]bool, len(tags))
	for _, t := range tags {
		keep[strings.ToLower(strings.TrimSpace(t))] = true
	}
	out := recs[:0]
	for _, r := range recs {
		if keep[r.PlatformTag] {
			out = append(out, r)
		}
	}
	return out
}
