package main

import (
	"github.com/spf13/cobra"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "List the subjects available for recommendations",
	Args:  cobra.NoArgs,
	RunE:  runSubjects,
}

var subjectsJSON bool

func init() {
	subjectsCmd.Flags().BoolVar(&subjectsJSON, "json", false, "Print the subjects as JSON")
	rootCmd.AddCommand(subjectsCmd)
}

func runSubjects(cmd *cobra.Command, _ []string) error {
	sess, err := requireSession()
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}

	subjects, err := client.Subjects(cmd.Context(), sess.Token)
	if err != nil {
		return checkAuth(err)
	}

	if subjectsJSON {
		return printJSON(cmd, subjects.Options())
	}
	newPrinter(cmd).PrintSubjects(subjects)
	return nil
}
