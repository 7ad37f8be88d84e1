package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vpucost/vpucost/vpu"
)

var (
	shaveDevice string
	shaveKernel string
	shaveBytes  uint
	shaveList   bool
)

var shaveCmd = &cobra.Command{
	Use:   "shave",
	Short: "Estimate SHAVE kernel cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := newCostModel()
		if err != nil {
			return err
		}
		if shaveList {
			names := model.ShaveKernels().Names()
			sort.Strings(names)
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		}

		device, ok := vpu.ParseVPUDevice(shaveDevice)
		if !ok {
			return fmt.Errorf("unknown device %q", shaveDevice)
		}
		out := vpu.NewVPUTensor(shaveBytes, 1, 1, 1, vpu.TypeUInt8, vpu.LayoutZXY, false)
		w := vpu.SHAVEWorkload{
			Name:    shaveKernel,
			Device:  device,
			Inputs:  []vpu.VPUTensor{out},
			Outputs: []vpu.VPUTensor{out},
		}
		cycles := model.SHAVE(w)
		if vpu.IsErrorCode(cycles) {
			return fmt.Errorf("SHAVE estimate failed: %s", vpu.CyclesCodeName(cycles))
		}
		fmt.Printf("%d cycles (%s over %d output bytes on %s)\n", cycles, shaveKernel, shaveBytes, device)
		return nil
	},
}

func init() {
	shaveCmd.Flags().StringVar(&shaveDevice, "device", "VPU_2_7", "Device generation")
	shaveCmd.Flags().StringVar(&shaveKernel, "kernel", "sigmoid", "Kernel name")
	shaveCmd.Flags().UintVar(&shaveBytes, "bytes", 65536, "Output bytes")
	shaveCmd.Flags().BoolVar(&shaveList, "list", false, "List known kernels and exit")
	rootCmd.AddCommand(shaveCmd)
}
