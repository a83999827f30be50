// Package main is the entry point for rosterctl, the admin CLI for the
// roster membership core.
//
// WHY A CLI AND NOT JUST THE WEB APPS?
// The two portfolio applications talk to this core in-process; when an
// operator needs to fix up roles or memberships out-of-band (seed the first
// teacher, delete an abandoned group), a small CLI against the same service
// layer is safer than hand-written SQL — it goes through the SAME
// consistency engine, so the role↔group invariant can't be bypassed.
//
// The cmd/ directory is a Go convention for executable entry points; all
// actual logic lives in the internal/ packages.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sakif/roster/internal/auth"
	"github.com/sakif/roster/internal/model"
	"github.com/sakif/roster/internal/repository/sqlite"
	"github.com/sakif/roster/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env wires the shared dependency graph for subcommands:
// DB → repositories → membership service. Built lazily in PersistentPreRunE
// so commands that never touch the store (whoami) don't need a database.
type env struct {
	db  *sqlite.DB
	svc *service.MembershipService
}

func (e *env) open(dbPath string) error {
	// Precedence: flag > env > default, same as the rest of our tooling.
	if dbPath == "" {
		dbPath = os.Getenv("ROSTER_DB")
	}
	if dbPath == "" {
		dbPath = "data/roster.db"
	}

	db, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn, // CLI output goes to stdout; keep logs quiet
	}))

	e.db = db
	e.svc = service.NewMembershipService(db.Users(), db.Groups(), logger)
	return nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
}

func newRootCmd() *cobra.Command {
	var dbPath string
	e := &env{}

	root := &cobra.Command{
		Use:           "rosterctl",
		Short:         "Administer users, roles, and group memberships",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "whoami" {
				return nil
			}
			return e.open(dbPath)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			e.close()
		},
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "",
		"path to the roster database (default $ROSTER_DB or data/roster.db)")

	root.AddCommand(newUserCmd(e))
	root.AddCommand(newGroupCmd(e))
	root.AddCommand(newWhoamiCmd())
	return root
}

// ---------------------------------------------------------------------------
// user subcommands

func newUserCmd(e *env) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and their roles",
	}

	var (
		first, last, email string
		roles              []string
	)
	createCmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleSet := make(model.RoleSet)
			for _, r := range roles {
				role := model.ParseRole(r)
				if role == model.RoleUnrecognized {
					return fmt.Errorf("unknown role %q", r)
				}
				roleSet.Add(role)
			}
			if len(roleSet) == 0 {
				roleSet.Add(model.RoleStudent) // every user starts with a role
			}

			user := &model.User{
				Username:  args[0],
				FirstName: first,
				LastName:  last,
				Email:     email,
				Roles:     roleSet,
				Groups:    make(model.IDSet),
			}
			if err := e.db.Users().Create(cmd.Context(), user); err != nil {
				return err
			}

			// Route reserved-role side effects through the service so a
			// teacher created here still lands in the Teaching Staff group.
			for role := range roleSet {
				if _, ok := model.ReservedGroupID(role); ok {
					if err := e.svc.AddRoleToUser(cmd.Context(), user.ID, role); err != nil {
						return err
					}
				}
			}

			fmt.Printf("created user %d (%s)\n", user.ID, user.Username)
			return nil
		},
	}
	createCmd.Flags().StringVar(&first, "first", "", "first name")
	createCmd.Flags().StringVar(&last, "last", "", "last name")
	createCmd.Flags().StringVar(&email, "email", "", "email address")
	createCmd.Flags().StringSliceVar(&roles, "role", nil, "initial role(s), default STUDENT")

	showCmd := &cobra.Command{
		Use:   "show <id|username>",
		Short: "Show a user as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := resolveUser(e, cmd, args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(user, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	addRoleCmd := &cobra.Command{
		Use:   "add-role <userID> <role>",
		Short: "Grant a role (Teaching Staff membership follows automatically)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("user id must be numeric: %q", args[0])
			}
			return e.svc.AddRoleToUser(cmd.Context(), id, model.ParseRole(args[1]))
		},
	}

	removeRoleCmd := &cobra.Command{
		Use:   "remove-role <userID> <role>",
		Short: "Revoke a role (Teaching Staff membership follows automatically)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("user id must be numeric: %q", args[0])
			}
			return e.svc.RemoveRoleFromUser(cmd.Context(), id, model.ParseRole(args[1]))
		},
	}

	userCmd.AddCommand(createCmd, showCmd, addRoleCmd, removeRoleCmd)
	return userCmd
}

// resolveUser accepts either a numeric id or a username.
func resolveUser(e *env, cmd *cobra.Command, arg string) (*model.User, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return e.db.Users().FindByID(cmd.Context(), id)
	}
	return e.db.Users().FindByUsername(cmd.Context(), arg)
}

// ---------------------------------------------------------------------------
// group subcommands

func newGroupCmd(e *env) *cobra.Command {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups and their members",
	}

	var long string
	createCmd := &cobra.Command{
		Use:   "create <shortName>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := &model.Group{ShortName: args[0], LongName: long}
			if err := e.db.Groups().Create(cmd.Context(), g); err != nil {
				return err
			}
			fmt.Printf("created group %d (%s)\n", g.ID, g.ShortName)
			return nil
		},
	}
	createCmd.Flags().StringVar(&long, "long", "", "long display name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all groups with member counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			groups, err := e.db.Groups().List(cmd.Context())
			if err != nil {
				return err
			}
			for _, g := range groups {
				marker := ""
				if model.IsReservedGroup(g.ID) {
					marker = " (reserved)"
				}
				fmt.Printf("%4d  %-30s %d member(s)%s\n", g.ID, g.ShortName, len(g.Members), marker)
			}
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <groupID> <userID>...",
		Short: "Add users to a group (joining Teaching Staff grants TEACHER)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, ids, err := parseGroupArgs(args)
			if err != nil {
				return err
			}
			return e.svc.AddUsersToGroup(cmd.Context(), gid, ids)
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <groupID> <userID>...",
		Short: "Remove users from a group (leaving Teaching Staff revokes TEACHER)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, ids, err := parseGroupArgs(args)
			if err != nil {
				return err
			}
			return e.svc.RemoveUsersFromGroup(cmd.Context(), gid, ids)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <groupID>",
		Short: "Delete a group (members are detached, never deleted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("group id must be numeric: %q", args[0])
			}
			return e.svc.DeleteGroup(cmd.Context(), gid)
		},
	}

	groupCmd.AddCommand(createCmd, listCmd, addCmd, removeCmd, deleteCmd)
	return groupCmd
}

func parseGroupArgs(args []string) (int64, []int64, error) {
	gid, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("group id must be numeric: %q", args[0])
	}
	ids := make([]int64, 0, len(args)-1)
	for _, a := range args[1:] {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("user id must be numeric: %q", a)
		}
		ids = append(ids, id)
	}
	return gid, ids, nil
}

// ---------------------------------------------------------------------------
// whoami

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami <token>",
		Short: "Decode a token's claims into the principal the platform would see",
		Long: "Decode a token's claims into the principal the platform would see.\n" +
			"The signature is NOT verified — this is an inspection tool, not an\n" +
			"authentication check.",
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := auth.ExtractFromJWT(args[0])
			if err != nil {
				return err
			}
			roles := make([]string, 0)
			for r := range p.Roles() {
				roles = append(roles, string(r))
			}
			fmt.Printf("id:            %d\n", p.ID())
			fmt.Printf("name:          %s\n", p.Name())
			fmt.Printf("authenticated: %v\n", p.Authenticated())
			fmt.Printf("roles:         %v\n", roles)
			return nil
		},
	}
}
