package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/canopy-network/govlens/pkg/config"
	"github.com/canopy-network/govlens/pkg/db/clickhouse"
	"github.com/canopy-network/govlens/pkg/filter"
	"github.com/canopy-network/govlens/pkg/logging"
	"github.com/canopy-network/govlens/pkg/source"
)

// cli carries what every subcommand needs once flags are parsed.
type cli struct {
	out     io.Writer
	output  string
	envFile string

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:           "govlens",
		Short:         "Governance voting analytics",
		Long:          "Compare validator voting records, filter validators and precompute proposal distributions across chains.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "json", "Output format: json|yaml")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Environment file loaded before configuration; missing is fine")

	root.AddCommand(
		c.precomputeCmd(),
		c.similarityCmd(),
		c.statsCmd(),
		c.validatorsCmd(),
	)
	return root
}

func (c *cli) setup() error {
	switch c.output {
	case "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", c.output)
	}
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg

	logger, err := logging.New()
	if err != nil {
		return err
	}
	c.logger = logger
	c.logger.Debug("Configuration loaded", zap.String("config", cfg.DebugString()))
	return nil
}

func (c *cli) render(v any) error {
	if c.output == "yaml" {
		enc := yaml.NewEncoder(c.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) openLoader(cmd *cobra.Command) (source.Loader, error) {
	return source.NewLoader(cmd.Context(), c.logger, c.cfg, clickhouse.ComponentCLI)
}

// querySpec reads the spec file when given; --chain overrides its chain.
func querySpec(path, chain string) (filter.Spec, error) {
	var spec filter.Spec
	if path != "" {
		var err error
		if spec, err = filter.LoadSpecFile(path); err != nil {
			return filter.Spec{}, err
		}
	}
	if chain != "" {
		spec.Chain = chain
	}
	return spec, spec.Validate()
}
