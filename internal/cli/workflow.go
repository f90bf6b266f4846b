package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для управления workflow.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflow definitions",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowCreateCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowValidateCmd(clientFn, outputFn),
		newWorkflowDeleteCmd(clientFn, outputFn),
		newWorkflowMetricsCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			defs, err := client.ListWorkflows(limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "NODES", "EDGES"}
			rows := make([][]string, len(defs))
			for i, d := range defs {
				rows[i] = []string{d.ID, d.Name, strconv.Itoa(len(d.Nodes)), strconv.Itoa(len(d.Edges))}
			}

			out.Print(headers, rows, defs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of definitions to return")

	return cmd
}

func newWorkflowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var defFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow from a definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(defFile)
			if err != nil {
				return fmt.Errorf("failed to read definition file: %w", err)
			}

			// Валидируем что это валидный JSON
			if !json.Valid(data) {
				return fmt.Errorf("definition file is not valid JSON")
			}

			def, err := client.CreateWorkflow(json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Successf("Workflow created: %s", def.ID)
			out.Detail([][2]string{
				{"ID", def.ID},
				{"NAME", def.Name},
				{"NODES", strconv.Itoa(len(def.Nodes))},
				{"EDGES", strconv.Itoa(len(def.Edges))},
			}, def)
			return nil
		},
	}

	cmd.Flags().StringVar(&defFile, "file", "", "Path to definition JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			def, err := client.GetWorkflow(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NODE_ID", "NAME", "TYPE"}
			rows := make([][]string, len(def.Nodes))
			for i, n := range def.Nodes {
				rows[i] = []string{n.ID, n.Name, n.Type}
			}

			out.Successf("Workflow %s (%s)", def.Name, def.ID)
			out.Print(headers, rows, def)
			return nil
		},
	}
}

func newWorkflowValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var defFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow definition without saving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(defFile)
			if err != nil {
				return fmt.Errorf("failed to read definition file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("definition file is not valid JSON")
			}

			result, err := client.ValidateWorkflow(json.RawMessage(data))
			if err != nil {
				return err
			}

			if result.Valid {
				out.Successf("Definition is valid")
			} else {
				out.Errorf("Definition is invalid: %d error(s)", len(result.Errors))
			}

			headers := []string{"KIND", "MESSAGE"}
			rows := make([][]string, 0, len(result.Errors)+len(result.Warnings))
			for _, msg := range result.Errors {
				rows = append(rows, []string{"error", msg})
			}
			for _, msg := range result.Warnings {
				rows = append(rows, []string{"warning", msg})
			}

			out.Print(headers, rows, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&defFile, "file", "", "Path to definition JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteWorkflow(args[0]); err != nil {
				return err
			}

			out.Successf("Workflow deleted: %s", args[0])
			return nil
		},
	}
}

func newWorkflowMetricsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics ID",
		Short: "Show execution metrics for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			metrics, err := client.GetWorkflowMetrics(args[0])
			if err != nil {
				return err
			}

			out.Detail([][2]string{
				{"WORKFLOW_ID", metrics.WorkflowID},
				{"TOTAL", strconv.Itoa(metrics.TotalExecutions)},
				{"SUCCESS", strconv.Itoa(metrics.SuccessfulExecutions)},
				{"FAILED", strconv.Itoa(metrics.FailedExecutions)},
				{"SUCCESS_RATE", fmt.Sprintf("%.1f%%", metrics.SuccessRate)},
			}, metrics)
			return nil
		},
	}
}
