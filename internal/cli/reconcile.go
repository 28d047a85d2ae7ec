package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	s3infra "github.com/numaken/genpost-sub001/internal/infra/s3"
	"github.com/numaken/genpost-sub001/internal/jobs/reconcile"
	catalogsvc "github.com/numaken/genpost-sub001/internal/services/catalog"
)

func reconcileCmd(opts *rootOptions) *cobra.Command {
	var (
		userID string
		all    bool
		dryRun bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Rewrite purchase records stored under numeric item ids",
		Long: `Finds purchase records whose item id is a catalog row number and
rewrites them to the canonical prompt id. When the user already holds an
active record for that prompt, the legacy record is deactivated instead.

Safe to run repeatedly and alongside live traffic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(userID) == "" && !all {
				return reconcile.ErrScopeRequired
			}

			rt, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			deps := reconcile.Dependencies{
				Purchases: rt.stores.Purchases,
				Catalog:   catalogsvc.NewService(rt.stores.Catalog, rt.log),
				Audit:     rt.stores.Audit,
				Logger:    rt.log.Named("reconcile"),
			}
			if bucket := strings.TrimSpace(rt.cfg.Reconcile.ReportBucket); bucket != "" {
				reports, err := openReportStore(cmd, rt, bucket)
				if err != nil {
					rt.log.Warn("report archival disabled", zap.String("bucket", bucket), zap.Error(err))
				} else {
					deps.Reports = reports
				}
			}

			summary, err := reconcile.New(deps).Run(cmd.Context(), reconcile.Options{
				UserID: userID,
				All:    all,
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}

			if err := printSummary(cmd.OutOrStdout(), summary, asJSON); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d rows failed, rerun after fixing the cause", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Reconcile a single user id")
	cmd.Flags().BoolVar(&all, "all", false, "Reconcile every user with numeric item ids")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report outcomes without writing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full summary as JSON")
	cmd.MarkFlagsMutuallyExclusive("user", "all")

	return cmd
}

func openReportStore(cmd *cobra.Command, rt *runtime, bucket string) (*s3infra.ReportStore, error) {
	client, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  rt.cfg.S3.Endpoint,
		AccessKey: rt.cfg.S3.AccessKey,
		SecretKey: rt.cfg.S3.SecretKey,
		UseSSL:    rt.cfg.S3.UseSSL,
		Region:    rt.cfg.S3.Region,
	})
	if err != nil {
		return nil, err
	}
	reports := s3infra.NewReportStore(client, bucket)
	if err := reports.EnsureBucket(cmd.Context()); err != nil {
		return nil, err
	}
	return reports, nil
}

func printSummary(w io.Writer, summary reconcile.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	mode := "applied"
	if summary.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "run %s (%s)\n", summary.RunID, mode)
	fmt.Fprintf(w, "  users:       %d\n", summary.Users)
	fmt.Fprintf(w, "  scanned:     %d\n", summary.Scanned)
	fmt.Fprintf(w, "  repaired:    %d\n", summary.Repaired)
	fmt.Fprintf(w, "  deactivated: %d\n", summary.Deactivated)
	fmt.Fprintf(w, "  unfixed:     %d\n", summary.Unfixed)
	fmt.Fprintf(w, "  failed:      %d\n", summary.Failed)
	if summary.ReportKey != "" {
		fmt.Fprintf(w, "  report:      %s\n", summary.ReportKey)
	}
	for _, row := range summary.Rows {
		if row.Outcome == enums.ReconcileOutcomeRepaired {
			continue
		}
		fmt.Fprintf(w, "  %-11s record=%d user=%s item=%s %s\n", row.Outcome, row.RecordID, row.UserID, row.FromItemID, row.Detail)
	}
	return nil
}
