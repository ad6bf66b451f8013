package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/lox/eurorates/internal/ageband"
	"github.com/lox/eurorates/internal/config"
	"github.com/lox/eurorates/internal/ingest"
	"github.com/lox/eurorates/internal/metrics"
	"github.com/lox/eurorates/internal/models"
	"github.com/lox/eurorates/internal/pipeline"
	"github.com/lox/eurorates/internal/standardize"
	"github.com/lox/eurorates/internal/store"
)

type Globals struct {
	Config      string `help:"Analyses YAML file; built-in analyses when empty." env:"EURORATES_CONFIG" type:"path"`
	DataDir     string `help:"Directory of downloaded snapshots." env:"EURORATES_DATA_DIR" default:"data" type:"path"`
	OutDir      string `help:"Output directory for built-in analyses." env:"EURORATES_OUT_DIR" default:"out" type:"path"`
	DB          string `help:"SQLite run archive; disabled when empty." env:"EURORATES_DB" type:"path"`
	MetricsFile string `help:"Write Prometheus metrics to this textfile on exit." env:"EURORATES_METRICS_FILE" type:"path"`
	Verbose     bool   `help:"Log every rejected row." short:"v" env:"EURORATES_VERBOSE"`

	ctx context.Context
}

type CLI struct {
	Globals

	Run       RunCmd       `cmd:"" default:"withargs" help:"Run analyses."`
	Fetch     FetchCmd     `cmd:"" help:"Download dataset snapshots."`
	Normalize NormalizeCmd `cmd:"" help:"Show how age labels normalize."`
	Weights   WeightsCmd   `cmd:"" help:"Print standard population weights."`
}

func (g *Globals) analyses(names []string) ([]config.Analysis, error) {
	var f *config.File
	var err error
	if g.Config != "" {
		f, err = config.Load(g.Config)
	} else {
		f, err = config.Defaults(g.DataDir, g.OutDir)
	}
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return f.Analyses, nil
	}
	byName := make(map[string]config.Analysis, len(f.Analyses))
	for _, a := range f.Analyses {
		byName[a.Name] = a
	}
	var out []config.Analysis
	for _, n := range names {
		a, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown analysis %q", n)
		}
		out = append(out, a)
	}
	return out, nil
}

func (g *Globals) openStore() (*store.Store, error) {
	if g.DB == "" {
		return nil, nil
	}
	st, err := store.Open(g.DB)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if v, err := st.MigrationVersion(); err == nil {
		log.Printf("store: %s at migration %d", g.DB, v)
	}
	return st, nil
}

type RunCmd struct {
	Analyses []string `arg:"" optional:"" help:"Analysis names; all when omitted."`
}

func (c *RunCmd) Run(g *Globals) error {
	analyses, err := g.analyses(c.Analyses)
	if err != nil {
		return err
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	results, err := pipeline.NewRunner(st, g.Verbose).RunAll(g.ctx, analyses)
	for _, res := range results {
		for _, p := range res.Outputs {
			fmt.Println(p)
		}
	}
	return err
}

type FetchCmd struct {
	BaseURL  string   `help:"Dataset endpoint (http, https or ftp)." env:"EURORATES_BASE_URL" default:"${base_url}"`
	KeepDays int      `help:"Drop archived payloads older than this many days; 0 keeps all." default:"0"`
	Analyses []string `arg:"" optional:"" help:"Analysis names whose datasets to fetch; all when omitted."`
}

func (c *FetchCmd) Run(g *Globals) error {
	analyses, err := g.analyses(c.Analyses)
	if err != nil {
		return err
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	snapshots := pipeline.Snapshots(analyses)
	if len(snapshots) == 0 {
		return errors.New("no dataset codes configured")
	}
	if err := pipeline.Fetch(g.ctx, ingest.NewFetcher(c.BaseURL), st, snapshots); err != nil {
		return err
	}
	if st != nil && c.KeepDays > 0 {
		n, err := st.CleanupOldRawPayloads(c.KeepDays)
		if err != nil {
			return err
		}
		log.Printf("fetch: removed %d archived payloads", n)
	}
	return nil
}

type NormalizeCmd struct {
	Vocabulary ageband.Vocabulary `help:"Label vocabulary (single_year, range, code)." default:"single_year" enum:"single_year,range,code"`
	Domain     models.Domain      `help:"Target domain (mortality, fertility)." default:"mortality" enum:"mortality,fertility"`
	Labels     []string           `arg:"" help:"Age labels."`
}

func (c *NormalizeCmd) Run(g *Globals) error {
	n := ageband.New(c.Vocabulary, c.Domain)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, l := range c.Labels {
		group, err := n.Normalize(l)
		if err != nil {
			fmt.Fprintf(w, "%q\t%v\n", l, err)
			continue
		}
		fmt.Fprintf(w, "%q\t%s\n", l, group)
	}
	return w.Flush()
}

type WeightsCmd struct {
	Analysis string        `arg:"" optional:"" help:"Analysis whose weights to print."`
	Domain   models.Domain `help:"Domain default when no analysis is named." default:"mortality" enum:"mortality,fertility"`
}

func (c *WeightsCmd) Run(g *Globals) error {
	ws := standardize.ForDomain(c.Domain)
	if c.Analysis != "" {
		analyses, err := g.analyses([]string{c.Analysis})
		if err != nil {
			return err
		}
		if ws, err = analyses[0].StandardWeights(); err != nil {
			return err
		}
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "age_group\tweight")
	for _, e := range ws.Entries() {
		fmt.Fprintf(w, "%s\t%.6f\n", e.AgeGroup, e.Weight)
	}
	return w.Flush()
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("eurorates"),
		kong.Description("Age-standardized mortality and fertility deviations from Eurostat snapshots."),
		kong.UsageOnError(),
		kong.Vars{"base_url": ingest.DefaultBaseURL},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cli.Globals.ctx = ctx

	err := kctx.Run(&cli.Globals)
	if cli.MetricsFile != "" {
		if merr := metrics.WriteTextfile(cli.MetricsFile); merr != nil {
			log.Printf("metrics: %v", merr)
		}
	}
	kctx.FatalIfErrorf(err)
}
