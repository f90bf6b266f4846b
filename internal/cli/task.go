package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для управления задачами.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskSubmitCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
		newTaskCancelCmd(clientFn, outputFn),
		newTaskResubmitCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		taskName   string
		kwargsJSON string
		queue      string
		priority   int
		countdown  int
		maxRetries int
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a task for execution",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateTaskRequest{
				TaskName:   taskName,
				Queue:      queue,
				Priority:   priority,
				Countdown:  countdown,
				MaxRetries: maxRetries,
				TimeoutSec: timeoutSec,
			}
			if kwargsJSON != "" {
				if err := json.Unmarshal([]byte(kwargsJSON), &req.Kwargs); err != nil {
					return fmt.Errorf("invalid --kwargs JSON: %w", err)
				}
			}

			taskID, err := client.CreateTask(req)
			if err != nil {
				return err
			}

			out.Successf("Task submitted: %s", taskID)
			out.Detail([][2]string{
				{"TASK_ID", taskID},
				{"NAME", taskName},
				{"QUEUE", queue},
			}, map[string]string{"task_id": taskID})
			return nil
		},
	}

	cmd.Flags().StringVar(&taskName, "name", "", "Registered task name (required)")
	cmd.Flags().StringVar(&kwargsJSON, "kwargs", "", "Task kwargs as a JSON object")
	cmd.Flags().StringVar(&queue, "queue", "", "Target queue (default \"default\")")
	cmd.Flags().IntVar(&priority, "priority", 0, "Task priority 0-9")
	cmd.Flags().IntVar(&countdown, "countdown", 0, "Delay before execution in seconds")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Maximum retry attempts")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Execution timeout in seconds")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show task result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.GetTaskResult(args[0])
			if err != nil {
				return err
			}

			if result.Error != "" {
				out.Errorf("%s", result.Error)
			}
			out.Detail([][2]string{
				{"TASK_ID", result.TaskID},
				{"STATUS", result.Status},
				{"RETRIES", strconv.Itoa(result.RetryCount)},
				{"STARTED", result.StartedAt},
				{"COMPLETED", result.CompletedAt},
			}, result)
			return nil
		},
	}
}

func newTaskCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Revoke a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelTask(args[0]); err != nil {
				return err
			}

			out.Successf("Task cancelled: %s", args[0])
			return nil
		},
	}
}

func newTaskResubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resubmit ID",
		Short: "Resubmit a finished task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			taskID, err := client.ResubmitTask(args[0])
			if err != nil {
				return err
			}

			out.Successf("Task resubmitted: %s", taskID)
			return nil
		},
	}
}
