// cmd/root.go
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vpucost/vpucost/vpu"
)

var (
	logLevel        string
	modelPath       string
	deviceTablePath string
	shaveTablePath  string
	cacheCapacity   int
	batchSize       int
)

var rootCmd = &cobra.Command{
	Use:   "vpucost",
	Short: "Cycle-cost estimator for VPU inference accelerators",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if deviceTablePath != "" {
			if err := vpu.LoadDeviceOverrides(deviceTablePath); err != nil {
				return err
			}
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newCostModel builds the cost model the subcommands share, loading the
// estimator buffer when --model was given.
func newCostModel() (*vpu.VPUCostModel, error) {
	cfg := vpu.CostModelConfig{
		BatchSize:      batchSize,
		CacheCapacity:  cacheCapacity,
		ShaveTablePath: shaveTablePath,
	}
	if modelPath != "" {
		buf, err := os.ReadFile(modelPath)
		if err != nil {
			return nil, err
		}
		cfg.ModelBuffer = buf
		cfg.CopyModelBuffer = true
	}
	return vpu.NewVPUCostModel(cfg)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Serialized estimator model (optional; analytical model otherwise)")
	rootCmd.PersistentFlags().StringVar(&deviceTablePath, "device-table", "", "YAML device calibration overrides")
	rootCmd.PersistentFlags().StringVar(&shaveTablePath, "shave-table", "", "YAML SHAVE kernel constants")
	rootCmd.PersistentFlags().IntVar(&cacheCapacity, "cache", 0, "Descriptor cache capacity (0 = default, negative = disabled)")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch", 1, "Estimator batch size")
}
