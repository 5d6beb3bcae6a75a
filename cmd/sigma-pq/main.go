// sigma-pq converts Sigma detection rules into SentinelOne PowerQuery
// queries.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/craftedsignal/sigma-powerquery/convert"
	"github.com/craftedsignal/sigma-powerquery/logging"
	"github.com/craftedsignal/sigma-powerquery/pipeline"
	"github.com/craftedsignal/sigma-powerquery/powerquery"
	"github.com/craftedsignal/sigma-powerquery/sigma"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("conversion failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sigma-pq [flags] <rule-file-or-dir>...",
		Short: "Convert Sigma rules to SentinelOne PowerQuery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.Flags()
	flags.String("format", "plain", "output format: plain or json")
	flags.StringP("output", "o", "", "write output to file instead of stdout")
	flags.String("mappings", "", "YAML file with extra field mappings")
	flags.Bool("no-pipeline", false, "skip field-name mapping")
	flags.Int("workers", 0, "conversion workers (0 = number of CPUs)")
	flags.Bool("fail-fast", false, "abort on the first rule that fails")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "console", "log format: console or json")

	viper.SetDefault("format", "plain")
	viper.SetDefault("workers", 0)
	viper.SetEnvPrefix("SIGMA_PQ")
	viper.AutomaticEnv()
	for _, name := range []string{"format", "output", "mappings", "no-pipeline", "workers", "fail-fast", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if err := logging.Configure(viper.GetString("log-level"), viper.GetString("log-format")); err != nil {
		return err
	}

	format := viper.GetString("format")
	if format != "plain" && format != "json" {
		return fmt.Errorf("invalid format %q: want plain or json", format)
	}

	var p *pipeline.Pipeline
	if !viper.GetBool("no-pipeline") {
		p = pipeline.New()
		if mappings := viper.GetString("mappings"); mappings != "" {
			if err := p.LoadOverlay(mappings); err != nil {
				return err
			}
		}
	}

	files, err := discoverRules(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no rule files found under %v", args)
	}
	log.Debug().Int("files", len(files)).Msg("discovered rule files")

	failFast := viper.GetBool("fail-fast")
	jobs, loadFailures, err := loadRules(files, failFast)
	if err != nil {
		return err
	}

	converter := convert.New(p)
	results := converter.ConvertAll(jobs, viper.GetInt("workers"))

	failures := loadFailures
	var records []powerquery.Record
	var queries []string
	for _, res := range results {
		if res.Err != nil {
			failures++
			log.Error().Str("source", res.Source).Err(res.Err).Msg("rule failed")
			if failFast {
				return res.Err
			}
			continue
		}
		records = append(records, res.Record)
		queries = append(queries, res.Query)
	}

	out, err := renderOutput(format, queries, records)
	if err != nil {
		return err
	}
	if err := writeOutput(viper.GetString("output"), out); err != nil {
		return err
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d rules failed to convert", failures, len(files))
	}
	return nil
}

// loadRules parses each file into a conversion job. Parse failures are
// counted (or fatal under fail-fast) but never stop the other files.
func loadRules(files []string, failFast bool) ([]convert.Job, int, error) {
	jobs := make([]convert.Job, 0, len(files))
	failures := 0
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			if failFast {
				return nil, 0, err
			}
			failures++
			log.Error().Str("source", file).Err(err).Msg("cannot read rule")
			continue
		}
		rule, err := sigma.ParseRule(content)
		if err != nil {
			if failFast {
				return nil, 0, fmt.Errorf("%s: %w", file, err)
			}
			failures++
			log.Error().Str("source", file).Err(err).Msg("cannot parse rule")
			continue
		}
		jobs = append(jobs, convert.Job{Source: file, Rule: rule})
	}
	return jobs, failures, nil
}

// renderOutput shapes the batch result: plain mode is one query per
// line, json mode is the aggregated {"queries": [...]} report with one
// record per rule.
func renderOutput(format string, queries []string, records []powerquery.Record) ([]byte, error) {
	if format == "plain" {
		var out []byte
		for _, q := range queries {
			out = append(out, q...)
			out = append(out, '\n')
		}
		return out, nil
	}

	report := struct {
		Queries []powerquery.Record `json:"queries"`
	}{Queries: records}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	return append(out, '\n'), nil
}

func writeOutput(path string, out []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
