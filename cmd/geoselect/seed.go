package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andreiashu/geoselect/internal/units"
)

var seedCountries string

var seedCmd = &cobra.Command{
	Use:   "seed <units.yaml>",
	Short: "Load consular units from a YAML seed file into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedCountries, "countries", "",
		"GeoNames countryInfo.txt used to name units that only give a country_code")
}

func runSeed(cmd *cobra.Command, args []string) error {
	var names units.CountryNames
	if seedCountries != "" {
		cf, err := os.Open(seedCountries)
		if err != nil {
			return fmt.Errorf("opening country names: %w", err)
		}
		names, err = units.ReadCountryNames(cf)
		cf.Close()
		if err != nil {
			return err
		}
		logger.Debug("country names loaded", zap.Int("countries", len(names)))
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	list, err := units.ReadSeed(f, names)
	if err != nil {
		return err
	}

	store, err := units.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := units.Seed(cmd.Context(), store, list); err != nil {
		return err
	}
	logger.Info("units seeded",
		zap.String("database", cfg.Database.Path),
		zap.Int("units", len(list)),
		zap.Int("countries", len(units.BuildTable(list))))
	return nil
}
