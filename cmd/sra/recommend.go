package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sra-rio/sra-web/internal/logging"
	"github.com/sra-rio/sra-web/internal/recommend"
	"github.com/sra-rio/sra-web/internal/types"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Show the recommended professors for a subject",
	Long:  "Fetches the ranked recommendations for one subject and prints up to five professors with their star rating.",
	Args:  cobra.NoArgs,
	RunE:  runRecommend,
}

var (
	recommendSubject int
	recommendJSON    bool
)

func init() {
	recommendCmd.Flags().IntVarP(&recommendSubject, "disciplina", "d", 0, "Subject ID, as listed by `sra subjects` (required)")
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "Print the recommendations as JSON")

	if err := recommendCmd.MarkFlagRequired("disciplina"); err != nil {
		panic(fmt.Sprintf("failed to mark disciplina flag as required: %v", err))
	}

	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	sess, err := requireSession()
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}

	// Subjects only supply the specialty label, so their failure is not fatal.
	var (
		subjects types.Subjects
		records  []recommend.Record
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		s, err := client.Subjects(ctx, sess.Token)
		if err != nil {
			logging.Warn().Err(err).Msg("failed to fetch subjects for specialty label")
			return nil
		}
		subjects = s
		return nil
	})
	g.Go(func() error {
		r, err := client.Recommendations(ctx, sess.Token, recommendSubject)
		if err != nil {
			return err
		}
		records = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return checkAuth(err)
	}

	shown := recommend.Prepare(records, subjects.Label(recommendSubject))
	if recommendJSON {
		return printJSON(cmd, shown)
	}
	newPrinter(cmd).PrintRecommendations(shown)
	return nil
}
