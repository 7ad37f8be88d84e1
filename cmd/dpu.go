package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vpucost/vpucost/vpu"
)

var dpuWorkloadFile string

var dpuCmd = &cobra.Command{
	Use:   "dpu",
	Short: "Estimate DPU workload cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := newCostModel()
		if err != nil {
			return err
		}
		workloads, err := loadDPUWorkloads(dpuWorkloadFile)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Operation", "Output", "Cycles", "Util", "AF", "Energy", "Status"})
		for i, w := range workloads {
			info := model.DPUInfo(w)
			status := "ok"
			if vpu.IsErrorCode(info.Cycles) {
				status = vpu.CyclesCodeName(info.Cycles)
			}
			table.Append([]string{
				fmt.Sprintf("%d", i),
				w.Op.String(),
				w.Output0().String(),
				cyclesCell(info.Cycles),
				fmt.Sprintf("%.3f", info.MACUtilization),
				fmt.Sprintf("%.3f", info.ActivityFactor),
				fmt.Sprintf("%.1f", info.Energy),
				status,
			})
		}
		table.Render()
		return nil
	},
}

func cyclesCell(c vpu.CyclesInterfaceType) string {
	if vpu.IsErrorCode(c) {
		return "-"
	}
	return fmt.Sprintf("%d", c)
}

func init() {
	dpuCmd.Flags().StringVar(&dpuWorkloadFile, "workload", "", "YAML workload file")
	if err := dpuCmd.MarkFlagRequired("workload"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(dpuCmd)
}
