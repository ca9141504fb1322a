package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bossnet/party-signup/internal/database"
	"github.com/bossnet/party-signup/internal/repository"
	"github.com/bossnet/party-signup/internal/service"
)

var markPaidCmd = &cobra.Command{
	Use:   "mark-paid <email>",
	Short: "Set the paid flag of a registration directly in the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runMarkPaid,
}

func init() {
	markPaidCmd.Flags().Bool("unpaid", false, "clear the paid flag instead of setting it")
	rootCmd.AddCommand(markPaidCmd)
}

func runMarkPaid(cmd *cobra.Command, args []string) error {
	status := 1
	if unpaid, _ := cmd.Flags().GetBool("unpaid"); unpaid {
		status = 0
	}

	pool, err := database.NewPool(cmd.Context(), database.PoolConfig{URL: cfg.PostgresURL(), MaxConns: 2}, appLog)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	svc := service.NewRegistrationService(repository.NewRegistrationRepository(pool), nil, nil, appLog)
	reg, err := svc.MarkPaid(cmd.Context(), args[0], status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("no registration for %s", args[0])
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "bezahlt=%d gesetzt für #%d %s <%s>\n", reg.Paid, reg.ID, reg.Nickname, reg.Email)
	return nil
}
