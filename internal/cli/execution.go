package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewExecutionCmd создаёт группу команд для управления выполнениями.
func NewExecutionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution",
		Short: "Manage workflow executions",
	}

	cmd.AddCommand(
		newExecutionStartCmd(clientFn, outputFn),
		newExecutionListCmd(clientFn, outputFn),
		newExecutionShowCmd(clientFn, outputFn),
		newExecutionHistoryCmd(clientFn, outputFn),
		newExecutionPauseCmd(clientFn, outputFn),
		newExecutionResumeCmd(clientFn, outputFn),
		newExecutionCancelCmd(clientFn, outputFn),
	)

	return cmd
}

func executionRow(e ExecutionResponse) []string {
	return []string{e.ExecutionID, e.WorkflowID, e.Status, e.CurrentNode, e.StartedAt}
}

func executionFields(e ExecutionResponse) [][2]string {
	return [][2]string{
		{"EXECUTION_ID", e.ExecutionID},
		{"WORKFLOW_ID", e.WorkflowID},
		{"STATUS", e.Status},
		{"NODE", e.CurrentNode},
		{"STARTED", e.StartedAt},
		{"COMPLETED", e.CompletedAt},
	}
}

var executionHeaders = []string{"EXECUTION_ID", "WORKFLOW_ID", "STATUS", "NODE", "STARTED"}

func newExecutionStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputJSON string

	cmd := &cobra.Command{
		Use:   "start WORKFLOW_ID",
		Short: "Start a workflow execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := ExecuteRequest{}
			if inputJSON != "" {
				if err := json.Unmarshal([]byte(inputJSON), &req.InputData); err != nil {
					return fmt.Errorf("invalid --input JSON: %w", err)
				}
			}

			exec, err := client.ExecuteWorkflow(args[0], req)
			if err != nil {
				return err
			}

			out.Successf("Execution started: %s", exec.ExecutionID)
			out.Detail(executionFields(*exec), exec)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputJSON, "input", "", "Input data as a JSON object")

	return cmd
}

func newExecutionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			execs, err := client.ListActiveExecutions()
			if err != nil {
				return err
			}

			rows := make([][]string, len(execs))
			for i, e := range execs {
				rows[i] = executionRow(e)
			}

			out.Print(executionHeaders, rows, execs)
			return nil
		},
	}
}

func newExecutionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			if exec.Error != "" {
				out.Errorf("%s", exec.Error)
			}
			out.Detail(executionFields(*exec), exec)
			return nil
		},
	}
}

func newExecutionHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history WORKFLOW_ID",
		Short: "List past executions of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			execs, err := client.ListWorkflowExecutions(args[0], limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(execs))
			for i, e := range execs {
				rows[i] = executionRow(e)
			}

			out.Print(executionHeaders, rows, execs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of executions to return")

	return cmd
}

func newExecutionPauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pause ID",
		Short: "Pause a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.PauseExecution(args[0]); err != nil {
				return err
			}

			out.Successf("Execution paused: %s", args[0])
			return nil
		},
	}
}

func newExecutionResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Resume a paused execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.ResumeExecution(args[0]); err != nil {
				return err
			}

			out.Successf("Execution resumed: %s", args[0])
			return nil
		},
	}
}

func newExecutionCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelExecution(args[0]); err != nil {
				return err
			}

			out.Successf("Execution cancelled: %s", args[0])
			return nil
		},
	}
}
