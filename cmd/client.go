package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bossnet/party-signup/internal/client"
	"github.com/bossnet/party-signup/internal/model"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Submit a registration to a running server",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

var participantsCmd = &cobra.Command{
	Use:   "participants",
	Short: "List the public participants of a running server",
	Args:  cobra.NoArgs,
	RunE:  runParticipants,
}

func init() {
	f := registerCmd.Flags()
	f.String("nickname", "", "clan/nickname (2-50 characters)")
	f.String("email", "", "email address")
	f.String("ticket", string(model.TicketAdult), "ticket type: Ü18 or U18")
	f.Bool("shirt", false, "order a shirt")
	f.Bool("pizza", false, "order pizza")
	f.Bool("drinks", false, "order drinks")
	f.Int("guests", 0, "number of guests (0-10)")
	f.Bool("consent", false, "confirm this is a private party")
	f.String("api-url", "", "server base URL (overrides API_URL)")
	_ = registerCmd.MarkFlagRequired("nickname")
	_ = registerCmd.MarkFlagRequired("email")

	participantsCmd.Flags().String("api-url", "", "server base URL (overrides API_URL)")
	participantsCmd.Flags().String("token", "", "admin token (overrides ADMIN_AUTH_TOKEN)")

	rootCmd.AddCommand(registerCmd, participantsCmd)
}

func runRegister(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	form := client.Form{}
	form.Nickname, _ = f.GetString("nickname")
	form.Email, _ = f.GetString("email")
	form.TicketType, _ = f.GetString("ticket")
	form.Shirt, _ = f.GetBool("shirt")
	form.Pizza, _ = f.GetBool("pizza")
	form.Drinks, _ = f.GetBool("drinks")
	form.Guests, _ = f.GetInt("guests")
	form.Consent, _ = f.GetBool("consent")

	resp, err := client.New(cfg.APIURL).Register(cmd.Context(), form)
	if err != nil {
		var pre *client.PrecheckError
		if errors.As(err, &pre) {
			for _, hint := range pre.Hints {
				fmt.Fprintln(cmd.ErrOrStderr(), "-", hint)
			}
		}
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func runParticipants(cmd *cobra.Command, _ []string) error {
	list, err := client.New(cfg.APIURL).Participants(cmd.Context(), cfg.AdminToken)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNICKNAME\tBEZAHLT\tANGEMELDET")
	for _, p := range list {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", p.ID, p.Nickname, p.Paid, p.CreatedAt.Local().Format("02.01.2006 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d Teilnehmer\n", len(list))
	return nil
}
