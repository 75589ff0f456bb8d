package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <token>",
	Short: "Hash an admin token for the config file",
	Long: `Hash an admin bearer token with bcrypt.

Put the output in admin.token_hash (or METERD_ADMIN_TOKEN_HASH); the
plain token then authorizes mutating endpoints via the Authorization
header.

Example:
  meterd hash-token s3cret`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash token: %w", err)
		}
		fmt.Println(string(hash))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashTokenCmd)
}
