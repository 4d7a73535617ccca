package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/studyquest/internal/core"
)

func newImportCmd() *cobra.Command {
	var (
		userID int64
		title  string
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a Question,Answer CSV as a new word set",
		Long: "Import a word list the same way the upload endpoint does. The file is\n" +
			"decoded with UPLOAD_SOURCE_ENCODING; the title defaults to the file name.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user must be a positive user id")
			}
			path := filepath.Clean(args[0])
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer file.Close()

			return withService(cmd, func(svc *core.Service) error {
				result, err := svc.UploadWordSet(cmd.Context(), userID, title, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %q as word set %d: %d words, %d rows skipped (%s)\n",
					result.WordSet.Title, result.WordSet.ID, result.Inserted, result.Skipped, result.Encoding)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "owner user id")
	cmd.Flags().StringVarP(&title, "title", "t", "", "word set title")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
