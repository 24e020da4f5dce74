package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/oculus-oct/oculus-go/internal/adapters/httpapi"
	"github.com/oculus-oct/oculus-go/internal/domain/model"
)

func newImagesCmd(c *cli) *cobra.Command {
	images := &cobra.Command{
		Use:     "images",
		Aliases: []string{"image"},
		Short:   "Upload and browse OCT scans",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(cmd.Context()); err != nil {
				return err
			}
			return c.requireSession()
		},
	}
	images.AddCommand(
		newImagesUploadCmd(c),
		newImagesListCmd(c),
		newImagesGetCmd(c),
		newImagesDownloadCmd(c),
	)
	return images
}

func newImagesUploadCmd(c *cli) *cobra.Command {
	var customID string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a scan; the backend analyses it before responding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0]) //nolint:gosec // path is supplied by the user on the command line
			if err != nil {
				return fmt.Errorf("open image: %w", err)
			}
			defer func() { _ = f.Close() }()

			img, err := c.app.Images.Upload(cmd.Context(), model.ImageUpload{
				Filename: filepath.Base(args[0]),
				Content:  f,
				CustomID: customID,
			})
			if err != nil {
				return err
			}
			return c.printImage(img)
		},
	}
	cmd.Flags().StringVar(&customID, "custom-id", "", "patient or study reference (max 50 characters)")
	return cmd
}

func newImagesListCmd(c *cli) *cobra.Command {
	var q model.ImageQuery
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List uploaded scans",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			imgs, err := c.app.Images.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			return c.printer().emit(imgs, func(w io.Writer) {
				row(w, "ID", "CUSTOM ID", "UPLOADED", "CLASSIFICATION")
				for _, img := range imgs {
					class := "-"
					if img.AnalysisResult != nil {
						class = img.AnalysisResult.Classification
					}
					custom := "-"
					if img.CustomID != nil {
						custom = orDash(*img.CustomID)
					}
					row(w, img.ID, custom, formatTime(img.UploadDate), class)
				}
			})
		},
	}
	cmd.Flags().StringVar(&q.Search, "search", "", "filter by custom id")
	cmd.Flags().StringVar(&q.Ordering, "ordering", "-upload_date", "upload_date or -upload_date")
	return cmd
}

func newImagesGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>...",
		Short: "Show scans with their analysis",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				img, err := c.app.Images.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.printImage(img)
			}
			imgs, err := c.app.Images.GetMany(cmd.Context(), args)
			if err != nil {
				return err
			}
			return c.printer().emit(imgs, func(w io.Writer) {
				for i, img := range imgs {
					if i > 0 {
						row(w, "")
					}
					imageRows(w, img)
				}
			})
		},
	}
}

func newImagesDownloadCmd(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download the original scan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			img, err := c.app.Images.Get(ctx, args[0])
			if err != nil {
				return err
			}
			target, err := c.mediaURL(img.ImageFile)
			if err != nil {
				return err
			}
			if output == "" {
				output = path.Base(target.Path)
			}
			n, err := c.download(ctx, target.String(), output)
			if err != nil {
				return err
			}
			c.printer().message("Saved %s (%d bytes).", output, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (default: the scan's file name)")
	return cmd
}

// mediaURL resolves a media path returned by the API against the backend host.
func (c *cli) mediaURL(ref string) (*url.URL, error) {
	if ref == "" {
		return nil, errors.New("image has no file")
	}
	base, err := url.Parse(c.app.Config.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse image url: %w", err)
	}
	return base.ResolveReference(u), nil
}

// download fetches a media file outside the request pipeline, authenticating with the
// stored access token.
func (c *cli) download(ctx context.Context, src, dst string) (int64, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.app.HTTPClient)
	client := oauth2.NewClient(ctx, httpapi.NewTokenSource(ctx, c.app.Store))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", src, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: unexpected status %s", src, resp.Status)
	}

	f, err := os.Create(dst) //nolint:gosec // path is supplied by the user on the command line
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	if closeErr := f.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return n, fmt.Errorf("write %s: %w", dst, copyErr)
	}
	return n, nil
}

func newAnalysisCmd(c *cli) *cobra.Command {
	analysis := &cobra.Command{
		Use:   "analysis",
		Short: "Inspect AI analysis results",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(cmd.Context()); err != nil {
				return err
			}
			return c.requireSession()
		},
	}
	list := &cobra.Command{
		Use:   "list [image-id]",
		Short: "List analysis results, optionally for one scan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				results []model.AnalysisResult
				err     error
			)
			if len(args) == 1 {
				results = c.app.Images.AnalysisForImage(cmd.Context(), args[0])
			} else if results, err = c.app.Images.AnalysisResults(cmd.Context(), ""); err != nil {
				return err
			}
			return c.printer().emit(results, func(w io.Writer) {
				row(w, "ID", "IMAGE", "CLASSIFICATION", "ANALYSED", "FINDINGS")
				for _, r := range results {
					row(w, r.ID, r.OCTImage.ID, r.Classification, formatTime(r.AnalysisDate), truncate(orDash(r.Findings), 60))
				}
			})
		},
	}
	analysis.AddCommand(list)
	return analysis
}

func (c *cli) printImage(img model.OCTImage) error {
	return c.printer().emit(img, func(w io.Writer) { imageRows(w, img) })
}

func imageRows(w io.Writer, img model.OCTImage) {
	row(w, "ID", img.ID)
	row(w, "LABEL", img.Label())
	row(w, "FILE", orDash(img.ImageFile))
	row(w, "UPLOADED", formatTime(img.UploadDate))
	if a := img.AnalysisResult; a != nil {
		row(w, "ANALYSIS", a.ID)
		row(w, "CLASSIFICATION", a.Classification)
		row(w, "FINDINGS", orDash(a.Findings))
		row(w, "ANALYSED", formatTime(a.AnalysisDate))
	} else {
		row(w, "ANALYSIS", "pending")
	}
}
