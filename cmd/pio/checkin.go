package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/productif/internal/agent"
	"github.com/zulandar/productif/internal/telegraph"
)

func newCheckInCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "checkin morning|evening",
		Short:     "Send a check-in now to every contact that accepts them",
		Long:      "Sends the morning recap or the evening planning invitation immediately, outside the configured schedule.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(agent.MorningCheckIn), string(agent.EveningCheckIn)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseCheckIn(args[0])
			if err != nil {
				return err
			}
			return runCheckIn(cmd, flags, kind)
		},
	}
}

func parseCheckIn(s string) (agent.CheckIn, error) {
	switch k := agent.CheckIn(s); k {
	case agent.MorningCheckIn, agent.EveningCheckIn:
		return k, nil
	default:
		return "", fmt.Errorf("unknown check-in %q (want morning or evening)", s)
	}
}

func runCheckIn(cmd *cobra.Command, flags *rootFlags, kind agent.CheckIn) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	adapter, err := newAdapter(a.cfg, a.log)
	if err != nil {
		return err
	}
	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Close()

	ag, err := a.newAgent(telegraph.NewMessenger(adapter))
	if err != nil {
		return err
	}
	contacts, err := telegraph.NewContacts(a.db)
	if err != nil {
		return err
	}
	exchanges, err := telegraph.NewExchangeLog(a.db)
	if err != nil {
		return err
	}
	sched, err := telegraph.NewCheckIns(telegraph.CheckInsOpts{
		Responder: ag,
		Contacts:  contacts,
		Exchanges: exchanges,
		Adapter:   adapter,
		Platform:  a.cfg.Telegraph.Platform,
		Location:  a.cfg.Location(),
		Logger:    a.log,
	})
	if err != nil {
		return err
	}

	sent := sched.Fire(ctx, kind)
	fmt.Fprintf(cmd.OutOrStdout(), "%s check-in sent to %d contact(s)\n", kind, sent)
	return nil
}
