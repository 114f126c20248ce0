package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/productif/internal/telegraph"
	"github.com/zulandar/productif/internal/telegraph/console"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	var contactID uint

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent from this terminal",
		Long: `Runs the agent against the configured backend, reading messages from the
terminal as if they came from the given contact. Type /quit or Ctrl-D to leave.`,
		Example: "  pio chat --as 3",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags, contactID)
		},
	}

	cmd.Flags().UintVar(&contactID, "as", 0, "contact id to speak as (see pio contact list)")
	cmd.MarkFlagRequired("as")
	return cmd
}

func runChat(cmd *cobra.Command, flags *rootFlags, contactID uint) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	contacts, err := telegraph.NewContacts(a.db)
	if err != nil {
		return err
	}
	c, err := contacts.Get(ctx, contactID)
	if err != nil {
		return fmt.Errorf("contact %d: %w", contactID, err)
	}

	adapter, err := console.New(console.AdapterOpts{
		In:        cmd.InOrStdin(),
		Out:       cmd.OutOrStdout(),
		Platform:  c.Platform,
		SenderID:  c.SenderID,
		ChannelID: c.ChannelID,
		UserName:  c.DisplayName,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}
	ag, err := a.newAgent(telegraph.NewMessenger(adapter))
	if err != nil {
		return err
	}
	daemon, err := telegraph.NewDaemon(telegraph.DaemonOpts{
		DB:        a.db,
		Config:    a.cfg,
		Adapter:   adapter,
		Platform:  c.Platform,
		Responder: ag,
		States:    a.states,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}

	name := c.DisplayName
	if name == "" {
		name = c.SenderID
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Chatting as %s (%s). /quit to leave.\n", name, c.Platform)
	return daemon.Run(ctx)
}
