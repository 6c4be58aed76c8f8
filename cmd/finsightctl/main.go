package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"finsight/internal/backend"
	"finsight/internal/cli"
	"finsight/internal/config"
	"finsight/internal/core"
	apphttp "finsight/internal/http"
	"finsight/internal/log"
)

// runContext is shared by every command. The store is opened on first use so
// commands that need no data never touch the backend.
type runContext struct {
	ctx    context.Context
	cfg    *config.Config
	logger *log.Logger
	out    io.Writer

	svc     *apphttp.Services
	backend *backend.BackendResult
}

func (r *runContext) services() (apphttp.Services, error) {
	if r.svc != nil {
		return *r.svc, nil
	}
	res, err := cli.OpenStore(r.ctx, r.logger, r.cfg)
	if err != nil {
		return apphttp.Services{}, err
	}
	r.backend = res
	svc := cli.NewServices(res.Store, r.cfg, r.logger, nil)
	r.svc = &svc
	return svc, nil
}

func (r *runContext) close() {
	if r.backend == nil {
		return
	}
	if err := r.backend.Cleanup(); err != nil {
		r.logger.Error("Failed to close storage", log.FieldError, err.Error())
	}
}

func (r *runContext) print(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type importCmd struct {
	File  string `arg help:"CSV file with date, description, amount and optional category columns."`
	Owner string `required help:"User ID the transactions belong to."`
}

func (c *importCmd) Run(r *runContext) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	svc, err := r.services()
	if err != nil {
		return err
	}
	res, err := svc.Transactions.Import(r.ctx, c.Owner, f)
	if err != nil {
		if res != nil && len(res.Errors) > 0 {
			_ = r.print(res.Errors)
		}
		return err
	}
	return r.print(res)
}

type summaryCmd struct {
	Owner string `required help:"User ID to report on."`
	Month string `required help:"Month in YYYY-MM form."`
}

func (c *summaryCmd) Run(r *runContext) error {
	svc, err := r.services()
	if err != nil {
		return err
	}
	summary, err := svc.Dashboard.Summary(r.ctx, c.Owner, c.Month)
	if err != nil {
		return err
	}
	return r.print(summary)
}

type insightCmd struct {
	Owner string `required help:"User ID to analyze."`
	Month string `required help:"Month in YYYY-MM form."`
}

func (c *insightCmd) Run(r *runContext) error {
	svc, err := r.services()
	if err != nil {
		return err
	}
	summary, err := svc.Insights.Analyze(r.ctx, c.Owner, c.Month)
	if err != nil {
		return err
	}
	return r.print(summary)
}

type classifyCmd struct {
	Description []string `arg help:"Transaction description to classify."`
}

func (c *classifyCmd) Run(r *runContext) error {
	_, err := fmt.Fprintln(r.out, core.Classify(strings.Join(c.Description, " ")))
	return err
}

var commands struct {
	Import   importCmd   `cmd help:"Import a CSV file of transactions."`
	Summary  summaryCmd  `cmd help:"Print the dashboard summary for a month."`
	Insight  insightCmd  `cmd help:"Generate and store the AI summary for a month."`
	Classify classifyCmd `cmd help:"Print the category a description maps to."`
}

func main() {
	cli.LoadEnvFile()

	kctx := kong.Parse(&commands,
		kong.Name("finsightctl"),
		kong.Description("Command line access to finsight transactions, reports and insights."))

	cfg, err := cli.LoadAndValidateConfig()
	kctx.FatalIfErrorf(err)

	ctx, cancel := cli.SignalContext(log.Discard())
	defer cancel()

	r := &runContext{
		ctx:    ctx,
		cfg:    cfg,
		logger: cli.SetupLoggerTo(cfg, log.ComponentCLI, os.Stderr),
		out:    os.Stdout,
	}
	err = kctx.Run(r)
	r.close()
	kctx.FatalIfErrorf(err)
}
