package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/productif/internal/models"
	"github.com/zulandar/productif/internal/telegraph"
)

func newContactCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "contact",
		Aliases: []string{"contacts"},
		Short:   "Link chat identities to Productif.io users",
	}

	cmd.AddCommand(newContactAddCmd(flags))
	cmd.AddCommand(newContactListCmd(flags))
	cmd.AddCommand(newContactRemoveCmd(flags))
	cmd.AddCommand(newContactCheckInsCmd(flags))
	return cmd
}

// withContacts opens the app and hands its contact registry to fn.
func withContacts(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, cs *telegraph.Contacts) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()
	cs, err := telegraph.NewContacts(a.db)
	if err != nil {
		return err
	}
	return fn(ctx, cs)
}

func newContactAddCmd(flags *rootFlags) *cobra.Command {
	var (
		c          models.Contact
		noCheckIns bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Link a chat sender to a backend user",
		Example: `  pio contact add --platform whatsapp --sender 33612345678 --user u_42 --token $PIO_TOKEN --name Alice
  pio contact add --platform slack --sender U024BE7LH --user u_42 --token $PIO_TOKEN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.CheckIns = !noCheckIns
			return withContacts(cmd, flags, func(ctx context.Context, cs *telegraph.Contacts) error {
				return contactAdd(ctx, cs, cmd.OutOrStdout(), &c)
			})
		},
	}

	cmd.Flags().StringVar(&c.Platform, "platform", "", "whatsapp, slack, discord or console")
	cmd.Flags().StringVar(&c.SenderID, "sender", "", "platform sender id (phone number, user id)")
	cmd.Flags().StringVar(&c.UserID, "user", "", "backend user id")
	cmd.Flags().StringVar(&c.APIToken, "token", "", "backend API token used on the user's behalf")
	cmd.Flags().StringVar(&c.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&c.ChannelID, "channel", "", "reply channel (learned from the first message when empty)")
	cmd.Flags().BoolVar(&noCheckIns, "no-checkins", false, "do not send scheduled check-ins")
	for _, f := range []string{"platform", "sender", "user"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func contactAdd(ctx context.Context, cs *telegraph.Contacts, out io.Writer, c *models.Contact) error {
	if err := cs.Add(ctx, c); err != nil {
		return err
	}
	fmt.Fprintf(out, "Contact %d added: %s %s -> user %s\n", c.ID, c.Platform, c.SenderID, c.UserID)
	if c.APIToken == "" {
		fmt.Fprintln(out, "Warning: no API token set; backend calls for this contact will fail.")
	}
	return nil
}

func newContactListCmd(flags *rootFlags) *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List linked contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContacts(cmd, flags, func(ctx context.Context, cs *telegraph.Contacts) error {
				return contactList(ctx, cs, cmd.OutOrStdout(), platform)
			})
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "only this platform")
	return cmd
}

func contactList(ctx context.Context, cs *telegraph.Contacts, out io.Writer, platform string) error {
	list, err := cs.List(ctx, platform)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No contacts.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLATFORM\tSENDER\tUSER\tNAME\tCHECK-INS\tLAST SEEN")
	for _, c := range list {
		seen := "-"
		if c.LastSeenAt != nil {
			seen = c.LastSeenAt.Format("2006-01-02 15:04")
		}
		checkIns := "off"
		if c.CheckIns {
			checkIns = "on"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.Platform, c.SenderID, c.UserID, c.DisplayName, checkIns, seen)
	}
	return w.Flush()
}

func newContactRemoveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Unlink a contact",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withContacts(cmd, flags, func(ctx context.Context, cs *telegraph.Contacts) error {
				if err := cs.Remove(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Contact %d removed\n", id)
				return nil
			})
		},
	}
}

func newContactCheckInsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "checkins <id> on|off",
		Short:     "Turn scheduled check-ins on or off for a contact",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			on, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			return withContacts(cmd, flags, func(ctx context.Context, cs *telegraph.Contacts) error {
				if err := cs.SetCheckIns(ctx, id, on); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Check-ins %s for contact %d\n", args[1], id)
				return nil
			})
		},
	}
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid contact id %q", s)
	}
	return uint(id), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}
