package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vpucost/vpucost/vpu"
)

var (
	dmaDevice      string
	dmaBytes       uint
	dmaSrc         string
	dmaDst         string
	dmaCompression bool
	dmaPermute     bool
)

var dmaCmd = &cobra.Command{
	Use:   "dma",
	Short: "Estimate DMA transfer cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := newCostModel()
		if err != nil {
			return err
		}
		device, ok := vpu.ParseVPUDevice(dmaDevice)
		if !ok {
			return fmt.Errorf("unknown device %q", dmaDevice)
		}
		src, ok := vpu.ParseMemoryLocation(dmaSrc)
		if !ok {
			return fmt.Errorf("unknown source location %q", dmaSrc)
		}
		dst, ok := vpu.ParseMemoryLocation(dmaDst)
		if !ok {
			return fmt.Errorf("unknown destination location %q", dmaDst)
		}

		buffer := vpu.NewVPUTensor(dmaBytes, 1, 1, 1, vpu.TypeUInt8, vpu.LayoutZXY, false)
		w := vpu.DMAWorkload{
			Device:         device,
			Input:          buffer,
			Output:         buffer,
			InputLocation:  src,
			OutputLocation: dst,
			Compression:    dmaCompression,
			Permute:        dmaPermute,
		}
		cycles := model.DMA(w)
		if vpu.IsErrorCode(cycles) {
			return fmt.Errorf("DMA estimate failed: %s", vpu.CyclesCodeName(cycles))
		}
		fmt.Printf("%d cycles (%d bytes %s→%s on %s)\n", cycles, dmaBytes, src, dst, device)
		return nil
	},
}

func init() {
	dmaCmd.Flags().StringVar(&dmaDevice, "device", "VPU_2_7", "Device generation")
	dmaCmd.Flags().UintVar(&dmaBytes, "bytes", 1<<20, "Transfer size in bytes")
	dmaCmd.Flags().StringVar(&dmaSrc, "from", "DRAM", "Source location (DRAM, CMX, CSRAM, UPA)")
	dmaCmd.Flags().StringVar(&dmaDst, "to", "CMX", "Destination location")
	dmaCmd.Flags().BoolVar(&dmaCompression, "compression", false, "Transfer with compression enabled")
	dmaCmd.Flags().BoolVar(&dmaPermute, "permute", false, "Transfer with on-the-fly permutation")
	rootCmd.AddCommand(dmaCmd)
}
