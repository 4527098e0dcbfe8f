package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pedroasavelar91/nexus-familiar/internal/families"
	"github.com/pedroasavelar91/nexus-familiar/pkg/enums"
	pkgerrors "github.com/pedroasavelar91/nexus-familiar/pkg/errors"
)

// statusView is the JSON shape of the membership status.
type statusView struct {
	Kind            families.StatusKind    `json:"kind"`
	Family          *families.Family       `json:"family,omitempty"`
	Self            *families.Member       `json:"self,omitempty"`
	Members         []families.Member      `json:"members,omitempty"`
	PendingRequests []families.JoinRequest `json:"pending_requests,omitempty"`
	Request         *families.JoinRequest  `json:"request,omitempty"`
}

func viewOf(s families.Status) statusView {
	view := statusView{Kind: s.Kind()}
	switch st := s.(type) {
	case families.PendingApproval:
		req := st.Request
		view.Request = &req
	case families.Membership:
		family, self := st.Family, st.Self
		view.Family = &family
		view.Self = &self
		view.Members = st.Roster
		view.PendingRequests = st.PendingRequests
	}
	return view
}

func newStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in user's family membership",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, a *app, args []string) error {
			view := viewOf(a.dir.Status())
			return a.out.Success(view, func(w io.Writer) { renderStatus(w, view) })
		}),
	}
}

func renderStatus(w io.Writer, v statusView) {
	fmt.Fprintf(w, "status: %s\n", v.Kind)
	switch v.Kind {
	case families.KindNoFamily:
		fmt.Fprintln(w, "create a family or ask to join one with an invite code")
	case families.KindPendingApproval:
		fmt.Fprintf(w, "waiting for approval to join family %s (request %s)\n", v.Request.FamilyID, v.Request.ID)
	case families.KindMember:
		fmt.Fprintf(w, "family: %s (invite code %s)\n", v.Family.Name, v.Family.InviteCode)
		fmt.Fprintln(w, "members:")
		renderMembers(w, v.Members, v.Self.ID)
		if len(v.PendingRequests) > 0 {
			fmt.Fprintln(w, "pending requests:")
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			for _, r := range v.PendingRequests {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.ID, r.UserName, r.UserEmail)
			}
			tw.Flush()
		}
	}
}

func renderMembers(w io.Writer, members []families.Member, self uuid.UUID) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range members {
		marker := ""
		if m.ID == self {
			marker = "(you)"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", m.ID, m.Name, m.Role, marker)
	}
	tw.Flush()
}

func newFamilyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "family",
		Short: "Create, find and join families",
	}

	var founder string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a family and become its admin",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) error {
			family, err := a.dir.CreateFamily(ctx, args[0], founder)
			if err != nil {
				return err
			}
			return a.out.Success(family, func(w io.Writer) {
				fmt.Fprintf(w, "created family %s\ninvite code: %s\n", family.Name, family.InviteCode)
			})
		}),
	}
	create.Flags().StringVar(&founder, "as", "", "your display name in the family (defaults to the token name)")

	find := &cobra.Command{
		Use:   "find <invite-code>",
		Short: "Look up a family by invite code",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) error {
			family, err := a.dir.SearchFamilyByCode(ctx, args[0])
			if err != nil {
				return err
			}
			if family == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no family uses that invite code")
			}
			return a.out.Success(family, func(w io.Writer) {
				fmt.Fprintf(w, "%s\t%s\n", family.ID, family.Name)
			})
		}),
	}

	var joinAs string
	join := &cobra.Command{
		Use:   "join <family-id>",
		Short: "Ask to join a family",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) error {
			familyID, err := parseID(args[0], "family")
			if err != nil {
				return err
			}
			req, err := a.dir.RequestToJoin(ctx, familyID, joinAs)
			if err != nil {
				return err
			}
			return a.out.Success(req, func(w io.Writer) {
				fmt.Fprintf(w, "request %s sent; an admin must approve it\n", req.ID)
			})
		}),
	}
	join.Flags().StringVar(&joinAs, "as", "", "display name shown to the admins (defaults to the token name)")

	cancel := &cobra.Command{
		Use:   "cancel",
		Short: "Withdraw the outstanding join request",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, a *app, args []string) error {
			if err := a.dir.CancelRequest(ctx); err != nil {
				return err
			}
			return a.out.Success(map[string]string{"status": "cancelled"}, func(w io.Writer) {
				fmt.Fprintln(w, "join request cancelled")
			})
		}),
	}

	cmd.AddCommand(create, find, join, cancel)
	return cmd
}

func newRequestsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Approve or reject join requests (admins)",
	}

	approve := &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0], "request")
			if err != nil {
				return err
			}
			member, err := a.dir.ApproveRequest(ctx, id)
			if err != nil {
				return err
			}
			return a.out.Success(member, func(w io.Writer) {
				if member == nil {
					fmt.Fprintln(w, "request approved")
					return
				}
				fmt.Fprintf(w, "%s joined as %s\n", member.Name, member.Role)
			})
		}),
	}

	reject := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0], "request")
			if err != nil {
				return err
			}
			if err := a.dir.RejectRequest(ctx, id); err != nil {
				return err
			}
			return a.out.Success(map[string]string{"status": "rejected"}, func(w io.Writer) {
				fmt.Fprintln(w, "request rejected")
			})
		}),
	}

	cmd.AddCommand(approve, reject)
	return cmd
}

type memberFlags struct {
	name, role, email, phone, avatar string
}

func (f *memberFlags) bind(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "display name")
	}
	cmd.Flags().StringVar(&f.role, "role", "", "admin, member or pet")
	cmd.Flags().StringVar(&f.email, "email", "", "contact email")
	cmd.Flags().StringVar(&f.phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&f.avatar, "avatar", "", "avatar URL")
}

func optional(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}

func newMembersCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage the family roster",
	}

	var addFlags memberFlags
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a member without an account, such as a child or pet (admins)",
		Args:  cobra.ExactArgs(1),
	}
	addFlags.bind(add, false)
	add.RunE = opts.run(func(ctx context.Context, a *app, args []string) error {
		member, err := a.dir.AddMember(ctx, families.MemberInput{
			Name:      args[0],
			Role:      enums.MemberRole(addFlags.role),
			Email:     optional(add, "email", addFlags.email),
			Phone:     optional(add, "phone", addFlags.phone),
			AvatarURL: optional(add, "avatar", addFlags.avatar),
		})
		if err != nil {
			return err
		}
		return a.out.Success(member, func(w io.Writer) {
			fmt.Fprintf(w, "added %s (%s) as %s\n", member.Name, member.ID, member.Role)
		})
	})

	var updateFlags memberFlags
	update := &cobra.Command{
		Use:   "update <member-id>",
		Short: "Update a member's profile",
		Args:  cobra.ExactArgs(1),
	}
	updateFlags.bind(update, true)
	update.RunE = opts.run(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0], "member")
		if err != nil {
			return err
		}
		patch := families.MemberPatch{
			Name:      optional(update, "name", updateFlags.name),
			Email:     optional(update, "email", updateFlags.email),
			Phone:     optional(update, "phone", updateFlags.phone),
			AvatarURL: optional(update, "avatar", updateFlags.avatar),
		}
		if update.Flags().Changed("role") {
			role := enums.MemberRole(updateFlags.role)
			patch.Role = &role
		}
		if err := a.dir.UpdateMember(ctx, id, patch); err != nil {
			return err
		}
		return a.out.Success(map[string]string{"status": "updated"}, func(w io.Writer) {
			fmt.Fprintln(w, "member updated")
		})
	})

	remove := &cobra.Command{
		Use:   "remove <member-id>",
		Short: "Remove a member (admins)",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0], "member")
			if err != nil {
				return err
			}
			if err := a.dir.RemoveMember(ctx, id); err != nil {
				return err
			}
			return a.out.Success(map[string]string{"status": "removed"}, func(w io.Writer) {
				fmt.Fprintln(w, "member removed")
			})
		}),
	}

	cmd.AddCommand(add, update, remove)
	return cmd
}
