package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/geodata-cli/internal/enrich"
	"github.com/sells-group/geodata-cli/internal/geodata"
	"github.com/sells-group/geodata-cli/pkg/dadata"
)

var (
	reverseLatColumn string
	reverseLonColumn string
)

var reverseCmd = &cobra.Command{
	Use:   "reverse <dataset_filename>",
	Short: "Add administrative subdivisions of the address nearest to each coordinate",
	Long: `Finds the address nearest to each record's latitude and longitude and
appends its region, area, city, settlement and street along with their FIAS
ids. Records without usable coordinates get empty values. Writes
updated_<dataset_filename>.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := geodata.ReverseOptions{LatColumn: reverseLatColumn, LonColumn: reverseLonColumn}
		return runEnrichment(cmd.Context(), geodata.ProfileReverse, args[0], func(c dadata.Client) enrich.Profile {
			return geodata.Reverse(c, opts)
		})
	},
}

func init() {
	reverseCmd.Flags().StringVar(&reverseLatColumn, "lat-column", "lat", "column holding the latitude")
	reverseCmd.Flags().StringVar(&reverseLonColumn, "lon-column", "long", "column holding the longitude")
	rootCmd.AddCommand(reverseCmd)
}
