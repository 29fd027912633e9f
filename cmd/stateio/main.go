// Command stateio disaggregates a national input-output table into state
// tables.  The build is driven by a yaml run config naming the national
// table, the raw source extracts, and the output targets.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	s "github.com/stateio/stateio"
	"github.com/stateio/stateio/disagg"
	"github.com/stateio/stateio/raw"
)

type dbConfig struct {
	Provider string `yaml:"provider"`
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

type outputConfig struct {
	File string    `yaml:"file"`
	DB   *dbConfig `yaml:"db"`
}

// runConfig is the yaml run config.  Sources are keyed by the pipeline's
// source names (gdp, labor, capital, pce, sgf, trade_shares, rpc, ...).
type runConfig struct {
	National  string            `yaml:"national"`
	Sources   map[string]string `yaml:"sources"`
	Output    outputConfig      `yaml:"output"`
	Tolerance float64           `yaml:"tolerance"`
}

func loadConfig(path string) (*runConfig, error) {
	b, e := os.ReadFile(path)
	if e != nil {
		return nil, e
	}

	cfg := &runConfig{Tolerance: 1e-6}
	if e = yaml.Unmarshal(b, cfg); e != nil {
		return nil, fmt.Errorf("config %s: %w", path, e)
	}

	if cfg.National == "" {
		return nil, fmt.Errorf("config %s: national table path required", path)
	}

	return cfg, nil
}

// loadRaw reads one source extract: year, region, code, name, value per
// line.  Suppressed cells are dropped, matching the adapter behavior.
func loadRaw(f *s.Files, path string) (raw.Table, error) {
	recs, e := f.Read(path)
	if e != nil {
		return nil, e
	}

	var out raw.Table
	for ind, rec := range recs {
		if len(rec) != 5 {
			return nil, fmt.Errorf("%s line %d: want 5 fields, got %d", path, ind+1, len(rec))
		}

		year, e2 := strconv.Atoi(rec[0])
		if e2 != nil {
			return nil, fmt.Errorf("%s line %d: year: %w", path, ind+1, e2)
		}

		v, ok := raw.ParseValue(rec[4], raw.Billions)
		if !ok {
			continue
		}

		out = append(out, raw.Row{Year: year, Region: rec[1], Code: rec[2], Name: rec[3], Value: v})
	}

	return out, nil
}

// attachCatalog rebuilds the catalogs a saved fact table loses: the standard
// sets, the parameters present, and the sector/commodity/margin elements
// implied by the supply facts.
func attachCatalog(t *s.Table) *s.Table {
	t = t.Extend(s.StandardSets(), s.ParameterElements(t.Parameters()...))

	seen := make(map[string]bool)
	var elems []s.Element
	for _, f := range t.Facts(s.IntermediateSupply) {
		if !seen[f.Row] {
			seen[f.Row] = true
			elems = append(elems, s.Element{Name: f.Row, Sets: []string{s.SetCommodity}})
		}
		if !seen["col:"+f.Col] {
			seen["col:"+f.Col] = true
			elems = append(elems, s.Element{Name: f.Col, Sets: []string{s.SetSector}})
		}
	}
	for _, f := range t.Facts(s.MarginSupply) {
		if !seen["marg:"+f.Col] {
			seen["marg:"+f.Col] = true
			elems = append(elems, s.Element{Name: f.Col, Sets: []string{s.SetMargin}})
		}
	}

	return t.Extend(nil, elems)
}

func connect(cfg *dbConfig) (*sql.DB, error) {
	switch cfg.Provider {
	case "clickhouse":
		return s.NewConnectCH(cfg.Host, cfg.User, cfg.Password)
	case "postgres":
		return s.NewConnectPG(cfg.Host, cfg.User, cfg.Password, cfg.Database)
	}

	return nil, fmt.Errorf("unknown db provider %s", cfg.Provider)
}

func build(cfgPath string, lg zerolog.Logger) error {
	cfg, e := loadConfig(cfgPath)
	if e != nil {
		return e
	}

	files := s.NewFiles(s.FileHeader(true))

	var nat *s.Table
	if nat, e = files.Load(cfg.National); e != nil {
		return fmt.Errorf("national table: %w", e)
	}
	nat = attachCatalog(nat)

	data := make(disagg.Data, len(cfg.Sources))
	for name, path := range cfg.Sources {
		var t raw.Table
		if t, e = loadRaw(files, path); e != nil {
			return fmt.Errorf("source %s: %w", name, e)
		}

		lg.Info().Str("source", name).Int("rows", len(t)).Ints("years", t.Years()).Msg("loaded")
		data[disagg.Source(name)] = t
	}

	var p *disagg.Pipeline
	if p, e = disagg.New(nat, data, disagg.Tolerance(cfg.Tolerance), disagg.Logger(lg)); e != nil {
		return e
	}

	var out *s.Table
	if out, e = p.Run(); e != nil {
		return e
	}

	for _, rep := range disagg.Validate(out, cfg.Tolerance, lg) {
		lg.Info().Str("identity", rep.Identity).Int("cells", rep.Cells).
			Float64("max_abs", rep.MaxAbs).Msg("identity check")
	}

	if cfg.Output.File != "" {
		if e = files.Save(cfg.Output.File, out); e != nil {
			return e
		}

		lg.Info().Str("file", cfg.Output.File).Int("rows", out.RowCount()).Msg("saved")
	}

	if cfg.Output.DB != nil {
		var db *sql.DB
		if db, e = connect(cfg.Output.DB); e != nil {
			return e
		}
		defer func() { _ = db.Close() }()

		var d *s.Dialect
		if d, e = s.NewDialect(cfg.Output.DB.Provider, db); e != nil {
			return e
		}

		if e = d.Save(out, cfg.Output.DB.Table, true); e != nil {
			return e
		}

		lg.Info().Str("table", cfg.Output.DB.Table).Msg("saved to database")
	}

	return nil
}

func check(path string, tol float64, lg zerolog.Logger) error {
	files := s.NewFiles(s.FileHeader(true))

	t, e := files.Load(path)
	if e != nil {
		return e
	}

	for _, rep := range disagg.Validate(t, tol, lg) {
		fmt.Printf("%-18s cells %7d  max |imbalance| %.3e  worst %s/%s/%s/%d\n",
			rep.Identity, rep.Cells, rep.MaxAbs,
			rep.Worst.Row, rep.Worst.Col, rep.Worst.Region, rep.Worst.Year)
	}

	return nil
}

func main() {
	lg := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var cfgPath string
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "run the disaggregation and write the state tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(cfgPath, lg)
		},
	}
	buildCmd.Flags().StringVarP(&cfgPath, "config", "c", "stateio.yaml", "run config")

	var tol float64
	checkCmd := &cobra.Command{
		Use:   "check <table.csv>",
		Short: "evaluate the accounting identities on a saved table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(args[0], tol, lg)
		},
	}
	checkCmd.Flags().Float64Var(&tol, "tol", 1e-6, "imbalance tolerance")

	root := &cobra.Command{Use: "stateio", SilenceUsage: true}
	root.AddCommand(buildCmd, checkCmd)

	if root.Execute() != nil {
		os.Exit(1)
	}
}
