package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pedroasavelar91/nexus-familiar/internal/household"
	"github.com/pedroasavelar91/nexus-familiar/internal/shopping"
	"github.com/pedroasavelar91/nexus-familiar/internal/tasks"
	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
)

const dueLayout = "2006-01-02"

func newTasksCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and edit the family's tasks",
	}

	var pendingOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks, earliest due first",
		Args:  cobra.NoArgs,
		RunE: opts.withHousehold(func(ctx context.Context, a *app, h *household.Household, args []string) error {
			items := h.Tasks.Items()
			if pendingOnly {
				items = tasks.Pending(items)
			}
			return a.out.Success(items, func(w io.Writer) { renderTasks(w, items, a.opts.now()) })
		}),
	}
	list.Flags().BoolVar(&pendingOnly, "pending", false, "hide completed tasks")

	var (
		description string
		due         string
		priority    string
		assignee    string
	)
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
	}
	add.Flags().StringVar(&description, "description", "", "longer description")
	add.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	add.Flags().StringVar(&priority, "priority", string(enums.TaskPriorityMedium), "low, medium or high")
	add.Flags().StringVar(&assignee, "assignee", "", "member id to assign")
	add.RunE = opts.withHousehold(func(ctx context.Context, a *app, h *household.Household, args []string) error {
		draft := tasks.Draft{Title: args[0], Priority: enums.TaskPriority(priority)}
		if add.Flags().Changed("description") {
			draft.Description = &description
		}
		if due != "" {
			at, err := time.Parse(dueLayout, due)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "due date must be YYYY-MM-DD")
			}
			draft.DueDate = &at
		}
		if assignee != "" {
			id, err := parseID(assignee, "member")
			if err != nil {
				return err
			}
			draft.AssignedTo = &id
		}
		task, err := h.Tasks.Create(ctx, draft)
		if err != nil {
			return err
		}
		return a.out.Success(task, func(w io.Writer) {
			fmt.Fprintf(w, "added task %s (%s)\n", task.Title, task.ID)
		})
	})

	toggle := &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Mark a task done, or reopen it",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withHousehold(func(ctx context.Context, a *app, h *household.Household, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			if err := h.Tasks.Toggle(ctx, id); err != nil {
				return err
			}
			task, _ := h.Tasks.Get(id)
			return a.out.Success(task, func(w io.Writer) {
				state := "reopened"
				if task.Completed {
					state = "completed"
				}
				fmt.Fprintf(w, "%s %s\n", state, task.Title)
			})
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withHousehold(func(ctx context.Context, a *app, h *household.Household, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			return removed(a, h.Tasks.Remove(ctx, id))
		}),
	}

	clearDone := &cobra.Command{
		Use:   "clear",
		Short: "Delete every completed task",
		Args:  cobra.NoArgs,
		RunE: opts.withHousehold(func(ctx context.Context, a *app, h *household.Household, args []string) error {
			n, err := h.Tasks.ClearCompleted(ctx)
			if err != nil {
				return err
			}
			return a.out.Success(map[string]int{"deleted": n}, func(w io.Writer) {
				fmt.Fprintf(w, "deleted %d completed task(s)\n", n)
			})
		}),
	}

	cmd.AddCommand(list, add, toggle, remove, clearDone)
	return cmd
}

func renderTasks(w io.Writer, items []tasks.Task, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	overdue := map[uuid.UUID]bool{}
	for _, t := range tasks.Overdue(items, now) {
		overdue[t.ID] = true
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range items {
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}
		dueText := "-"
		if t.DueDate != nil {
			dueText = t.DueDate.Format(dueLayout)
			if overdue[t.ID] {
				dueText += " (overdue)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", check, t.ID, t.Title, t.Priority, dueText)
	}
	tw.Flush()
}

func newShoppingCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopping",
		Short: "Manage the shopping list",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the shopping list",
		Args:  cobra.NoArgs,
		RunE: opts.withHousehold(func(ctx context.Context, a *app, h *household.Household, args []string) error {
			items := h.Shopping.Items()
			return a.out.Success(items, func(w io.Writer) { renderShopping(w, items) })
		}),
	}

	var (
		quantity string
		unit     string
		category string
	)
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an item to the list",
		Args:  cobra.ExactArgs(1),
	}
	add.Flags().StringVar(&quantity, "quantity", "1", "amount to buy")
	add.Flags().StringVar(&unit, "unit", "", "unit, such as kg or pack")
	add.Flags().StringVar(&category, "category", "", "aisle or category")
	add.RunE = opts.withHousehold(func(ctx context.Context, a *app, h *household.Household, args []string) error {
		qty, err := decimal.NewFromString(strings.TrimSpace(quantity))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "quantity must be a number")
		}
		item, err := h.Shopping.Create(ctx, shopping.Draft{Name: args[0], Quantity: qty, Unit: unit, Category: category})
		if err != nil {
			return err
		}
		return a.out.Success(item, func(w io.Writer) {
			fmt.Fprintf(w, "added %s %s %s\n", item.Quantity.String(), item.Unit, item.Name)
		})
	})

	toggle := &cobra.Command{
		Use:   "toggle <item-id>",
		Short: "Mark an item purchased, or put it back",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withHousehold(func(ctx context.Context, a *app, h *household.Household, args []string) error {
			id, err := parseID(args[0], "item")
			if err != nil {
				return err
			}
			if err := h.Shopping.Toggle(ctx, id); err != nil {
				return err
			}
			item, _ := h.Shopping.Get(id)
			return a.out.Success(item, func(w io.Writer) {
				state := "unmarked"
				if item.Purchased {
					state = "purchased"
				}
				fmt.Fprintf(w, "%s %s\n", state, item.Name)
			})
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withHousehold(func(ctx context.Context, a *app, h *household.Household, args []string) error {
			id, err := parseID(args[0], "item")
			if err != nil {
				return err
			}
			return removed(a, h.Shopping.Remove(ctx, id))
		}),
	}

	restock := &cobra.Command{
		Use:   "import",
		Short: "Add every pantry item below its minimum",
		Args:  cobra.NoArgs,
		RunE: opts.withHousehold(func(ctx context.Context, a *app, h *household.Household, args []string) error {
			added, err := h.RestockShoppingList(ctx)
			if err != nil {
				return err
			}
			if added == nil {
				added = []shopping.Item{}
			}
			return a.out.Success(added, func(w io.Writer) {
				if len(added) == 0 {
					fmt.Fprintln(w, "pantry is stocked; nothing to add")
					return
				}
				fmt.Fprintf(w, "added %d item(s) from the pantry\n", len(added))
				renderShopping(w, added)
			})
		}),
	}

	cmd.AddCommand(list, add, toggle, remove, restock)
	return cmd
}

func renderShopping(w io.Writer, items []shopping.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "shopping list is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, i := range items {
		check := "[ ]"
		if i.Purchased {
			check = "[x]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n", check, i.ID, i.Name, i.Quantity.String(), i.Unit, i.Category)
	}
	tw.Flush()
}

func removed(a *app, err error) error {
	if err != nil {
		return err
	}
	return a.out.Success(map[string]string{"status": "deleted"}, func(w io.Writer) {
		fmt.Fprintln(w, "deleted")
	})
}
