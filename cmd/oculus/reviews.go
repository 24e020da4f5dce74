package main

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oculus-oct/oculus-go/internal/domain/model"
	"github.com/oculus-oct/oculus-go/internal/service"
)

func newReviewsCmd(c *cli) *cobra.Command {
	reviews := &cobra.Command{
		Use:     "reviews",
		Aliases: []string{"review"},
		Short:   "Rate and comment on analysis results",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(cmd.Context()); err != nil {
				return err
			}
			return c.requireSession()
		},
	}
	reviews.AddCommand(
		newReviewsListCmd(c),
		newReviewsSubmitCmd(c),
		newReviewsUpdateCmd(c),
		newReviewsDeleteCmd(c),
	)
	return reviews
}

func newReviewsListCmd(c *cli) *cobra.Command {
	var analysisID, ordering string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List reviews",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.app.Reviews.List(cmd.Context(), analysisID, ordering)
			if err != nil {
				return err
			}
			return c.printReviews(list)
		},
	}
	cmd.Flags().StringVar(&analysisID, "analysis", "", "only reviews of this analysis result")
	cmd.Flags().StringVar(&ordering, "ordering", "", "review_date, -review_date, rating or -rating")
	return cmd
}

func newReviewsSubmitCmd(c *cli) *cobra.Command {
	var in model.CreateReviewRequest
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Review an analysis result",
		Example: `  oculus reviews submit --analysis 3f2c... --rating 4 --comments "Agree with drusen finding"`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.Reviews.Submit(cmd.Context(), in)
			if err != nil {
				return err
			}
			return c.printMutation(res, "Review submitted.")
		},
	}
	cmd.Flags().StringVar(&in.AnalysisResult, "analysis", "", "analysis result id")
	cmd.Flags().IntVar(&in.Rating, "rating", 0, "rating from 1 to 5")
	cmd.Flags().StringVar(&in.Comments, "comments", "", "review comments")
	return cmd
}

func newReviewsUpdateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <review-id>",
		Short: "Change the rating or comments of your review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in model.UpdateReviewRequest
			if cmd.Flags().Changed("rating") {
				r, _ := cmd.Flags().GetInt("rating")
				in.Rating = &r
			}
			if cmd.Flags().Changed("comments") {
				s, _ := cmd.Flags().GetString("comments")
				in.Comments = &s
			}
			res, err := c.app.Reviews.Update(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return c.printMutation(res, "Review updated.")
		},
	}
	cmd.Flags().Int("rating", 0, "new rating from 1 to 5")
	cmd.Flags().String("comments", "", "new comments")
	return cmd
}

func newReviewsDeleteCmd(c *cli) *cobra.Command {
	var analysisID string
	cmd := &cobra.Command{
		Use:     "delete <review-id>",
		Aliases: []string{"rm"},
		Short:   "Delete your review",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Reviews.Delete(cmd.Context(), args[0], analysisID)
			if err != nil {
				return err
			}
			return c.printMutation(res, "Review deleted.")
		},
	}
	cmd.Flags().StringVar(&analysisID, "analysis", "", "analysis result whose reviews are listed afterwards")
	return cmd
}

// printMutation prints the mutated review followed by the refreshed list, when the
// re-fetch succeeded.
func (c *cli) printMutation(res service.MutationResult, headline string) error {
	p := c.printer()
	p.message(headline)
	if p.json || p.query != "" {
		return p.emit(res, nil)
	}
	if res.Reviews == nil {
		p.message("Could not refresh the review list.")
		return nil
	}
	return c.printReviews(res.Reviews)
}

func (c *cli) printReviews(list []model.Review) error {
	return c.printer().emit(list, func(w io.Writer) {
		row(w, "ID", "ANALYSIS", "DOCTOR", "RATING", "DATE", "MINE", "COMMENTS")
		for _, rv := range list {
			analysis := "-"
			if rv.AnalysisResult != nil {
				analysis = *rv.AnalysisResult
			}
			mine := ""
			if rv.IsOwner {
				mine = "yes"
			}
			row(w, rv.ID, analysis, orDash(rv.Doctor.FirstName+" "+rv.Doctor.LastName),
				strconv.Itoa(rv.Rating), formatTime(rv.ReviewDate), mine, truncate(rv.Comments, 50))
		}
	})
}
