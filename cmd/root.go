package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/geodata-cli/internal/config"
)

var cfg *config.Config

var (
	flagDialect   string
	flagEncoding  string
	flagOutputDir string
	flagSummary   string
	flagEnvFile   string
)

var rootCmd = &cobra.Command{
	Use:   "geodata-cli",
	Short: "Enrich address datasets with Dadata geodata",
	Long: `Reads a CSV dataset, looks up every distinct key in the Dadata address
service (at most 30 calls per second, each key once) and writes an augmented
copy of the dataset next to the original columns.

Credentials are read from DADATA_API_KEY and DADATA_SECRET_KEY, optionally
loaded from a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(flagEnvFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if flagOutputDir != "" {
			c.Output.Dir = flagOutputDir
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// normalizeFlagName lets --csv_dialect and --csv-dialect name the same flag.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDialect, "csv-dialect", "unix", "CSV dialect of input and output: excel, excel_tab or unix")
	pf.StringVar(&flagEncoding, "encoding", "", "character encoding of the input, e.g. windows-1251 (default UTF-8)")
	pf.StringVar(&flagOutputDir, "output-dir", "", "directory for the enriched file (default: output.dir setting)")
	pf.StringVar(&flagSummary, "summary", "", "write a YAML run summary to this path")
	pf.StringVar(&flagEnvFile, "env-file", ".env", "dotenv file with Dadata credentials")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
