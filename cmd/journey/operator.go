package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"journey/api/internal/identity"
	"journey/api/internal/store"
	"journey/api/internal/util"
)

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Manage the operators who can sign in and edit the journey",
}

var operatorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an operator account",
	Example: `  journey operator add --email gift@example.com --password 'sunshine-4-days'
  JOURNEY_OPERATOR_PASSWORD=... journey operator add --email gift@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("JOURNEY_OPERATOR_PASSWORD")
		}
		if strings.TrimSpace(email) == "" {
			return errors.New("--email is required")
		}

		hash, err := identity.HashPassword(password)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, driver, err := openSQL(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		operators := store.NewSQLStore(db, driver)
		op := store.Operator{ID: util.NewID("op"), Email: email, PasswordHash: hash, CreatedAt: time.Now().UTC()}
		if err := operators.CreateOperator(cmd.Context(), op); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("operator %s already exists", email)
			}
			return err
		}
		fmt.Printf("%s operator %s created\n", color.New(color.FgGreen).Sprint("✓"), strings.ToLower(strings.TrimSpace(email)))
		return nil
	},
}

var operatorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List operator accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, driver, err := openSQL(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ops, err := store.NewSQLStore(db, driver).ListOperators(cmd.Context())
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("no operators")
			return nil
		}
		for _, op := range ops {
			last := color.New(color.FgYellow).Sprint("never signed in")
			if op.LastSignInAt != nil {
				last = "last sign-in " + op.LastSignInAt.Local().Format(time.RFC1123)
			}
			fmt.Printf("  %s  %s\n", op.Email, last)
		}
		return nil
	},
}

func init() {
	operatorAddCmd.Flags().String("email", "", "operator email")
	operatorAddCmd.Flags().String("password", "", "operator password (or JOURNEY_OPERATOR_PASSWORD)")
	operatorCmd.AddCommand(operatorAddCmd, operatorListCmd)
}
