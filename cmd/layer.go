package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vpucost/vpucost/vpu"
	"github.com/vpucost/vpucost/vpu/tiling"
)

var (
	layerWorkloadFile string
	layerStrategy     string
	layerTiles        uint
	layerDPUs         uint
	layerInputDDR     bool
	layerOutputDDR    bool
	layerPrefetch     bool
)

var layerCmd = &cobra.Command{
	Use:   "layer",
	Short: "Split a layer across tiles and estimate its cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := newCostModel()
		if err != nil {
			return err
		}
		workloads, err := loadDPUWorkloads(layerWorkloadFile)
		if err != nil {
			return err
		}
		if len(workloads) != 1 {
			return fmt.Errorf("layer command expects exactly one workload, got %d", len(workloads))
		}
		strategy, ok := vpu.ParseTilingStrategy(layerStrategy)
		if !ok {
			return fmt.Errorf("unknown tiling strategy %q", layerStrategy)
		}

		tiler := tiling.NewLayerCostModel(model)
		layer := tiling.NewDPULayer(workloads[0])
		cycles, details := tiler.LayerWithDetails(layer, strategy, layerDPUs, layerTiles,
			layerInputDDR, layerOutputDDR, layerPrefetch)

		if vpu.IsErrorCode(cycles) {
			return fmt.Errorf("layer estimate failed: %s", vpu.CyclesCodeName(cycles))
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Tile", "Output", "ISI", "Workloads", "Cycles"})
		for i, tile := range details.Tiles {
			table.Append([]string{
				fmt.Sprintf("%d", i),
				tile.Layer.Output0().String(),
				tile.Layer.ISI.String(),
				fmt.Sprintf("%d", len(tile.Workloads)),
				cyclesCell(tile.Cycles),
			})
		}
		table.Render()
		fmt.Printf("compute=%d dma=%d total=%d cycles (%s over %d tiles, %d DPU/tile)\n",
			details.ComputeCost, details.DMACost, cycles, strategy, layerTiles, layerDPUs)
		return nil
	},
}

func init() {
	layerCmd.Flags().StringVar(&layerWorkloadFile, "workload", "", "YAML layer description")
	layerCmd.Flags().StringVar(&layerStrategy, "strategy", "SOH", "Tiling strategy (CLUSTERING, SOH, SOK, SOW, SOHW, SOHK, SOH_OVERLAPPED)")
	layerCmd.Flags().UintVar(&layerTiles, "tiles", 2, "Tile count")
	layerCmd.Flags().UintVar(&layerDPUs, "dpus", 1, "DPUs per tile")
	layerCmd.Flags().BoolVar(&layerInputDDR, "input-ddr", false, "Input starts in DDR")
	layerCmd.Flags().BoolVar(&layerOutputDDR, "output-ddr", false, "Output spills to DDR")
	layerCmd.Flags().BoolVar(&layerPrefetch, "prefetch", true, "Weights are prefetched")
	if err := layerCmd.MarkFlagRequired("workload"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(layerCmd)
}
