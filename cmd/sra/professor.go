package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var professorCmd = &cobra.Command{
	Use:   "professor ID",
	Short: "Show a professor's average evaluations",
	Long:  "Prints the averages of the seven evaluation criteria of a professor, on the 0 to 7 scale.",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfessor,
}

var professorJSON bool

func init() {
	professorCmd.Flags().BoolVar(&professorJSON, "json", false, "Print the averages as JSON")
	rootCmd.AddCommand(professorCmd)
}

func runProfessor(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid professor ID %q", args[0])
	}

	sess, err := requireSession()
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}

	avg, err := client.ProfessorAverages(cmd.Context(), sess.Token, id)
	if err != nil {
		return checkAuth(err)
	}

	if professorJSON {
		return printJSON(cmd, avg)
	}
	newPrinter(cmd).PrintProfessorAverages(avg)
	return nil
}
