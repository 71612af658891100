package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/mat"

	"github.com/causalgo/grouplasso"
	"github.com/causalgo/grouplasso/metrics"
)

type options struct {
	data       string
	configPath string
	family     string
	groups     []int
	lambda     []float64
	verbose    bool
	metrics    bool
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "grouplasso",
		Short: "Fit a sparse group-lasso path",
		Long: `Fits a generalized linear model under a group-lasso penalty along a path of
penalty values and prints the coefficient path.

Without --data a small built-in demo dataset is used.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), opts)
		},
	}
	addFlags(rootCmd.Flags(), opts)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVar(&opts.data, "data", "", "CSV file, one row per observation, response in the last column")
	fs.StringVar(&opts.configPath, "config", "", "YAML solver config")
	fs.StringVar(&opts.family, "family", grouplasso.GaussianName, "gaussian or binomial")
	fs.IntSliceVar(&opts.groups, "groups", nil, "group sizes in column order (default: one group per column)")
	fs.Float64SliceVar(&opts.lambda, "lambda", []float64{1, 0.5, 0.1, 0.05, 0.01, 0.001}, "penalty path")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log solver progress")
	fs.BoolVar(&opts.metrics, "metrics", false, "print solver metrics after the fit")
}

func run(out io.Writer, opts *options) error {
	cfg := grouplasso.NewDefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = grouplasso.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}
	if opts.verbose {
		cfg.Verbose = true
	}

	reg := prometheus.NewRegistry()
	if opts.metrics {
		collector, err := metrics.NewCollector(reg)
		if err != nil {
			return err
		}
		cfg.Observer = collector
	}

	X, y, err := loadData(opts.data)
	if err != nil {
		return err
	}
	if opts.data == "" {
		cfg.Standardize = true
	}
	_, nFeatures := X.Dims()

	groups := opts.groups
	if len(groups) == 0 {
		groups = make([]int, nFeatures)
		for j := range groups {
			groups[j] = 1
		}
	}

	var fam grouplasso.Family
	switch opts.family {
	case grouplasso.GaussianName:
		fam = grouplasso.Gaussian()
	case grouplasso.BinomialName:
		fam = grouplasso.Binomial()
	default:
		return fmt.Errorf("unknown family %q", opts.family)
	}

	path, err := grouplasso.Solve(&grouplasso.Problem{
		X:      X,
		Y:      y,
		Groups: grouplasso.ContiguousGroups(groups...),
		Lambda: opts.lambda,
		Family: fam,
	}, cfg)
	if err != nil {
		return err
	}

	printPath(out, path, X, y)
	if err := path.Err(); err != nil {
		log.Warn().Err(err).Msg("some path steps did not converge")
	}
	if opts.metrics {
		return printMetrics(out, reg)
	}
	return nil
}

func loadData(file string) (*mat.Dense, []float64, error) {
	if file == "" {
		X := mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})
		return X, []float64{3, 7, 11, 15}, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open data: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read data CSV: %w", err)
	}
	if len(records) == 0 || len(records[0]) < 2 {
		return nil, nil, fmt.Errorf("data CSV needs at least one row with two columns")
	}

	nSamples, nFeatures := len(records), len(records[0])-1
	X := mat.NewDense(nSamples, nFeatures, nil)
	y := make([]float64, nSamples)
	for i, rec := range records {
		if len(rec) != nFeatures+1 {
			return nil, nil, fmt.Errorf("data CSV row %d has %d fields, want %d", i+1, len(rec), nFeatures+1)
		}
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("data CSV row %d field %d: %w", i+1, j+1, err)
			}
			if j < nFeatures {
				X.Set(i, j, v)
			} else {
				y[i] = v
			}
		}
	}
	return X, y, nil
}

func printPath(out io.Writer, path *grouplasso.Path, X *mat.Dense, y []float64) {
	fmt.Fprintf(out, "%10s %10s %8s %10s  %s\n", "lambda", "intercept", "groups", "mse", "coefficients")
	for step := 0; step < path.Len(); step++ {
		coef := path.Coefficients(step)
		parts := make([]string, len(coef))
		for j, c := range coef {
			parts[j] = fmt.Sprintf("%.4f", c)
		}
		fmt.Fprintf(out, "%10.4g %10.4f %8d %10.4g  [%s]\n",
			path.Lambda[step], path.Intercept[step], len(path.NonZeroGroups(step)),
			path.MSE(step, X, y), strings.Join(parts, " "))
	}
}

func printMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	fmt.Fprintln(out)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return fmt.Errorf("failed to write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
