package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sra-rio/sra-web/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Create or update your preference profile",
	Long:  "Submits the preference profile used to rank professors. Every field is required; run with --options to list accepted values.",
	Args:  cobra.NoArgs,
	RunE:  runProfile,
}

var profileOptions bool

func init() {
	var form profile.Form
	for _, f := range form.Fields() {
		profileCmd.Flags().String(f.Flag(), "", fmt.Sprintf("%s: %s", f.Label, strings.Join(f.Options, ", ")))
	}
	profileCmd.Flags().BoolVar(&profileOptions, "options", false, "List the accepted values of every field and exit")

	rootCmd.AddCommand(profileCmd)
}

// profileFromFlags reads one flag per form field.
func profileFromFlags(cmd *cobra.Command) (profile.Form, error) {
	var form profile.Form
	for _, f := range form.Fields() {
		value, err := cmd.Flags().GetString(f.Flag())
		if err != nil {
			return form, err
		}
		if err := form.Set(f.Key, strings.TrimSpace(value)); err != nil {
			return form, err
		}
	}
	return form, nil
}

func runProfile(cmd *cobra.Command, _ []string) error {
	if profileOptions {
		newPrinter(cmd).PrintProfileOptions()
		return nil
	}

	form, err := profileFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		return err
	}

	sess, err := requireSession()
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	if err := client.SaveProfile(cmd.Context(), sess.Token, form); err != nil {
		return checkAuth(err)
	}

	sess.HasProfile = true
	if err := sessionStore().Save(*sess); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Perfil salvo! Agora use `sra recommend --disciplina ID`.")
	return nil
}
