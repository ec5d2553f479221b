package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var tokenCmd = &cobra.Command{
	Use:   "hash-token <token>",
	Short: "Hash an admin token for auth.admin_token_hash",
	Long: `Generate the bcrypt hash of a reporting-API admin token.

Put the output in auth.admin_token_hash (or METERCORE_ADMIN_TOKEN_HASH);
callers then pass the plaintext token in the X-Admin-Token header.`,
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
	rootCmd.AddCommand(tokenCmd)
}
