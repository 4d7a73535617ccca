package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/studyquest/internal/core"
)

func newGrantCmd() *cobra.Command {
	var (
		userID int64
		amount int
		ensure bool
	)

	cmd := &cobra.Command{
		Use:   "grant-exp",
		Short: "Grant experience to a user's character",
		Long: "Grant experience through the same ledger study sessions use. A user\n" +
			"without a character is reported as an integrity fault unless --ensure\n" +
			"creates the character first.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user must be a positive user id")
			}

			return withService(cmd, func(svc *core.Service) error {
				if ensure {
					if _, err := svc.GetCharacter(cmd.Context(), userID); err != nil {
						return err
					}
				}
				res, err := svc.GrantExperience(cmd.Context(), userID, amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d: level %d -> %d, exp %d/%d\n",
					userID, res.PreviousLevel, res.NewLevel, res.NewExp, core.ExpRequired(res.NewLevel))
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "user id")
	cmd.Flags().IntVarP(&amount, "amount", "a", 0, "experience to add")
	cmd.Flags().BoolVar(&ensure, "ensure", false, "create the character if it does not exist")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
