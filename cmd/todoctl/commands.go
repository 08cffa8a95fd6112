package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hijjiri/todo-api/internal/client"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "todoctl",
		Short:        "todoctl - command line client for the todo API",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("addr", "http://localhost:3000", "todo API base URL")
	root.PersistentFlags().Duration("timeout", 3*time.Second, "request timeout")
	root.PersistentFlags().Bool("json", false, "Output in JSON format")

	root.AddCommand(
		createCmd(),
		listCmd(),
		updateCmd(),
		deleteCmd(),
	)
	return root
}

// newClient は共通フラグから client と timeout 付き ctx を作る。
func newClient(cmd *cobra.Command) (*client.Client, context.Context, context.CancelFunc) {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return client.New(addr, nil), ctx, cancel
}

func todoFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "Todo title")
	cmd.Flags().String("priority", "", "Priority (low, medium, high; default medium)")
	cmd.Flags().String("status", "", "Status (not started, in progress, done; default not started)")
}

func todoInput(cmd *cobra.Command) client.TodoInput {
	title, _ := cmd.Flags().GetString("title")
	priority, _ := cmd.Flags().GetString("priority")
	status, _ := cmd.Flags().GetString("status")
	return client.TodoInput{Title: title, Priority: priority, Status: status}
}

func parseIDArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new todo",
		Long: `Create a new todo.

Examples:
  todoctl create --title="Buy milk"
  todoctl create --title="Pay rent" --priority=high --status="in progress"
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := newClient(cmd)
			defer cancel()

			t, err := c.Create(ctx, todoInput(cmd))
			if err != nil {
				return err
			}
			return printTodo(cmd, "created", t)
		},
	}
	todoFlags(cmd)
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := newClient(cmd)
			defer cancel()

			todos, err := c.List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON(cmd) {
				return writeJSON(out, todos)
			}
			if len(todos) == 0 {
				fmt.Fprintln(out, "no todos")
				return nil
			}
			fmt.Fprintln(out, "todos:")
			for _, t := range todos {
				fmt.Fprintf(out, "- id=%d title=%s priority=%s status=%s\n", t.ID, t.Title, t.Priority, t.Status)
			}
			return nil
		},
	}
}

func updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a todo's fields",
		Long: `Replace title, priority and status of a todo.
Omitted priority / status fall back to the defaults.

Examples:
  todoctl update 1 --title="Buy milk" --status=done
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			c, ctx, cancel := newClient(cmd)
			defer cancel()

			t, err := c.Update(ctx, id, todoInput(cmd))
			if err != nil {
				return err
			}
			return printTodo(cmd, "updated", t)
		},
	}
	todoFlags(cmd)
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			c, ctx, cancel := newClient(cmd)
			defer cancel()

			msg, err := c.Delete(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON(cmd) {
				return writeJSON(out, map[string]string{"message": msg})
			}
			fmt.Fprintln(out, msg)
			return nil
		},
	}
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printTodo(cmd *cobra.Command, verb string, t *client.Todo) error {
	out := cmd.OutOrStdout()
	if asJSON(cmd) {
		return writeJSON(out, t)
	}
	fmt.Fprintf(out, "%s: id=%d title=%s priority=%s status=%s\n", verb, t.ID, t.Title, t.Priority, t.Status)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
