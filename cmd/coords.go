package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/geodata-cli/internal/enrich"
	"github.com/sells-group/geodata-cli/internal/geodata"
	"github.com/sells-group/geodata-cli/pkg/dadata"
)

var coordsCmd = &cobra.Command{
	Use:   "coords <dataset_filename>",
	Short: "Add coordinates of the city, region, street, area and settlement",
	Long: `Looks up every distinct city_fias_id, region_fias_id, street_fias_id,
area_fias_id and settlement_fias_id and appends their coordinates, plus the
city district of the street. Writes with_coord_<dd_mm_yy>_<dataset_filename>.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnrichment(cmd.Context(), geodata.ProfileCoords, args[0], func(c dadata.Client) enrich.Profile {
			return geodata.Coords(c)
		})
	},
}

func init() {
	rootCmd.AddCommand(coordsCmd)
}
