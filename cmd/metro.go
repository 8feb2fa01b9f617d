package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/geodata-cli/internal/enrich"
	"github.com/sells-group/geodata-cli/internal/geodata"
	"github.com/sells-group/geodata-cli/pkg/dadata"
)

var (
	metroAddressColumn string
	metroCityColumn    string
)

var metroCmd = &cobra.Command{
	Use:   "metro <dataset_filename>",
	Short: "Add the three nearest metro stations for addresses in metro cities",
	Long: `Standardizes the address of every record located in a city with a metro
system and appends the name, line and distance of up to three nearest
stations. Writes with_metro_<dd_mm_yy>_<dataset_filename>.

Requires DADATA_SECRET_KEY in addition to DADATA_API_KEY.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := geodata.MetroOptions{
			AddressColumn: metroAddressColumn,
			CityColumn:    metroCityColumn,
			Cities:        cfg.Metro.Cities,
		}
		return runEnrichment(cmd.Context(), geodata.ProfileMetro, args[0], func(c dadata.Client) enrich.Profile {
			return geodata.Metro(c, opts)
		})
	},
}

func init() {
	metroCmd.Flags().StringVar(&metroAddressColumn, "address-column", "address_rus", "column holding the free-text address")
	metroCmd.Flags().StringVar(&metroCityColumn, "city-column", "city_fias_id", "column holding the city FIAS id")
	rootCmd.AddCommand(metroCmd)
}
