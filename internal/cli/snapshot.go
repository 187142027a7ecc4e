package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	pkgerrors "github.com/finobytes/maxreward/pkg/errors"
	"github.com/finobytes/maxreward/pkg/referral"
	"github.com/finobytes/maxreward/pkg/render"
	"github.com/finobytes/maxreward/pkg/store"
)

// snapshotCommand groups the snapshot subcommands.
func (c *CLI) snapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Browse recorded tree snapshots",
	}
	cmd.AddCommand(c.snapshotListCommand())
	cmd.AddCommand(c.snapshotShowCommand())
	cmd.AddCommand(c.snapshotMembersCommand())
	cmd.AddCommand(c.snapshotDeleteCommand())
	return cmd
}

// openStore opens only the snapshot store.
func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	return newStore(ctx, cfg.Store)
}

func (c *CLI) snapshotListCommand() *cobra.Command {
	var (
		member string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			snaps, err := st.List(cmd.Context(), member, limit)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				printInfo("No snapshots recorded")
				printNextStep("Record one with", "maxreward tree fetch <member-id> --snapshot")
				return nil
			}
			fmt.Println(snapshotTable(snaps))
			return nil
		},
	}
	cmd.Flags().StringVarP(&member, "member", "m", "", "only list snapshots of this member")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of snapshots (0 = all)")
	return cmd
}

func snapshotTable(snaps []*store.Snapshot) string {
	rows := make([][]string, len(snaps))
	for i, s := range snaps {
		rows[i] = []string{
			s.ID,
			s.MemberID,
			formatRelativeTime(s.CreatedAt),
			strconv.Itoa(s.Summary.Nodes),
			strconv.Itoa(s.Summary.Depth),
			strconv.Itoa(s.Rejected),
		}
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Snapshot", "Member", "Taken", "Members", "Depth", "Dropped").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return StyleDim
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

func (c *CLI) snapshotShowCommand() *cobra.Command {
	var (
		format string
		color  bool
	)
	cmd := &cobra.Command{
		Use:   "show <snapshot-id>",
		Short: "Print a snapshot's tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pkgerrors.ValidateSnapshotID(args[0]); err != nil {
				return errors.New(pkgerrors.UserMessage(err))
			}
			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return referral.WriteJSON(snap.Tree, os.Stdout)
			case "text":
				printKeyValue("Member", snap.MemberID)
				printKeyValue("Taken", snap.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				printKeyValue("Payload", snap.PayloadHash[:min(12, len(snap.PayloadHash))])
				printTreeStats(snap.Summary, snap.Rejected, false)
				fmt.Print(render.Text(snap.Tree, render.TextOptions{Color: color}))
				return nil
			}
			return fmt.Errorf("invalid format: %q (must be text or json)", format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json")
	cmd.Flags().BoolVar(&color, "color", false, "color text output by level")
	return cmd
}

// memberLister is implemented by stores that index snapshots by member.
type memberLister interface {
	Members(ctx context.Context) ([]string, error)
}

func (c *CLI) snapshotMembersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List members that have snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			ml, ok := st.(memberLister)
			if !ok {
				return errors.New("the configured snapshot store cannot list members")
			}
			members, err := ml.Members(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range members {
				fmt.Println(m)
			}
			return nil
		},
	}
}

// snapshotDeleter is implemented by stores that support deletion.
type snapshotDeleter interface {
	Delete(ctx context.Context, id string) error
}

func (c *CLI) snapshotDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <snapshot-id>...",
		Short: "Delete snapshots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			d, ok := st.(snapshotDeleter)
			if !ok {
				return errors.New("the configured snapshot store does not support deletion")
			}
			for _, id := range args {
				if err := d.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
			}
			printSuccess("Deleted %d snapshot(s)", len(args))
			return nil
		},
	}
}
