package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewResourceCmd создаёт группу команд для управления ресурсами.
func NewResourceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Inspect and manage system resources",
	}

	cmd.AddCommand(
		newResourceSystemCmd(clientFn, outputFn),
		newResourceAllocationsCmd(clientFn, outputFn),
		newResourceAllocateCmd(clientFn, outputFn),
		newResourceDeallocateCmd(clientFn, outputFn),
	)

	return cmd
}

func newResourceSystemCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "system",
		Short: "Show system resource utilization",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			snap, err := client.GetSystemResources()
			if err != nil {
				return err
			}

			headers := []string{"RESOURCE", "UTILIZATION", "LIMIT", "HEALTH"}
			rows := make([][]string, 0, len(snap.Resources))
			for name, r := range snap.Resources {
				rows = append(rows, []string{
					name,
					fmt.Sprintf("%.1f%%", r.UtilizationPercent),
					fmt.Sprintf("%.1f%%", r.LimitPercent),
					r.Health,
				})
			}

			out.Print(headers, rows, snap)
			return nil
		},
	}
}

func newResourceAllocationsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "allocations",
		Short: "List active resource allocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			allocs, err := client.ListAllocations()
			if err != nil {
				return err
			}

			headers := []string{"ALLOCATION_ID", "STATUS", "SPECS", "EXPIRES"}
			rows := make([][]string, len(allocs))
			for i, a := range allocs {
				specs := make([]string, len(a.Specs))
				for j, s := range a.Specs {
					specs[j] = fmt.Sprintf("%s=%.0f%s", s.ResourceType, s.Amount, s.Unit)
				}
				rows[i] = []string{a.AllocationID, a.Status, strings.Join(specs, ","), a.ExpiresAt}
			}

			out.Print(headers, rows, allocs)
			return nil
		},
	}
}

func newResourceAllocateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		specs       []string
		durationSec int
	)

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Allocate resources",
		Long:  "Allocate resources. Specs use the form TYPE=AMOUNT:UNIT, e.g. CPU=10:percent or MEMORY=256:MB.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := AllocateRequest{DurationSec: durationSec}
			for _, raw := range specs {
				spec, err := parseSpec(raw)
				if err != nil {
					return err
				}
				req.Specs = append(req.Specs, spec)
			}

			alloc, err := client.AllocateResources(req)
			if err != nil {
				return err
			}

			out.Successf("Resources allocated: %s", alloc.AllocationID)
			out.Detail([][2]string{
				{"ALLOCATION_ID", alloc.AllocationID},
				{"STATUS", alloc.Status},
				{"ALLOCATED", alloc.AllocatedAt},
				{"EXPIRES", alloc.ExpiresAt},
			}, alloc)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&specs, "spec", nil, "Resource spec TYPE=AMOUNT:UNIT (repeatable, required)")
	cmd.Flags().IntVar(&durationSec, "duration", 0, "Allocation lifetime in seconds")
	cmd.MarkFlagRequired("spec")

	return cmd
}

// parseSpec разбирает строку вида CPU=10:percent.
func parseSpec(raw string) (SpecResponse, error) {
	name, rest, ok := strings.Cut(raw, "=")
	if !ok {
		return SpecResponse{}, fmt.Errorf("invalid spec %q: expected TYPE=AMOUNT:UNIT", raw)
	}
	amountStr, unit, ok := strings.Cut(rest, ":")
	if !ok {
		return SpecResponse{}, fmt.Errorf("invalid spec %q: expected TYPE=AMOUNT:UNIT", raw)
	}

	var amount float64
	if _, err := fmt.Sscanf(amountStr, "%g", &amount); err != nil {
		return SpecResponse{}, fmt.Errorf("invalid amount in spec %q: %w", raw, err)
	}

	return SpecResponse{
		ResourceType: strings.ToUpper(name),
		Amount:       amount,
		Unit:         unit,
	}, nil
}

func newResourceDeallocateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "deallocate ID",
		Short: "Release a resource allocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeallocateResources(args[0]); err != nil {
				return err
			}

			out.Successf("Allocation released: %s", args[0])
			return nil
		},
	}
}
