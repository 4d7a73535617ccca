package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/studyquest/internal/core"
)

func newQuizCmd() *cobra.Command {
	var (
		userID    int64
		wordSetID int64
	)

	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Print a generated quiz for a word set as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 || wordSetID <= 0 {
				return errors.New("--user and --set must be positive ids")
			}

			return withService(cmd, func(svc *core.Service) error {
				quiz, err := svc.BuildQuiz(cmd.Context(), userID, wordSetID)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(quiz)
			})
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "owner user id")
	cmd.Flags().Int64VarP(&wordSetID, "set", "s", 0, "word set id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}
