package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fieldsight/maintkit/internal/faultdata"
	"github.com/spf13/cobra"
)

func newDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Inspect and prepare the fault data in S3",
	}

	cmd.AddCommand(newDataVerifyCmd())
	cmd.AddCommand(newDataPrepareCmd())
	return cmd
}

func newDataVerifyCmd() *cobra.Command {
	var sample int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check bucket access and the structure of the fault reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			bucket := cfg.S3.DataBucket
			reader := faultdata.NewReader(clients.S3, bucket.Name, bucket.DataStructure.SourcePrefix, log)

			if err := reader.VerifyAccess(ctx); err != nil {
				return err
			}
			fmt.Printf("Bucket %s reachable.\n\n", bucket.Name)

			files, err := reader.ListFaultFiles(ctx, 10)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Printf("No fault files under %s.\n", bucket.DataStructure.SourcePrefix)
				return nil
			}
			fmt.Printf("Most recent files under %s:\n", bucket.DataStructure.SourcePrefix)
			for _, f := range files {
				fmt.Printf("  %-64s %8d  %s\n", f.Key, f.Size, f.LastModified.Format("2006-01-02 15:04"))
			}

			report, err := reader.ValidateStructure(ctx, sample)
			if err != nil {
				return err
			}
			fmt.Printf("\nChecked %d file(s): %d valid, %d invalid\n",
				report.TotalFilesChecked, report.ValidFiles, report.InvalidFiles)
			if len(report.CommonFields) > 0 {
				fmt.Printf("Common fields: %s\n", strings.Join(report.CommonFields, ", "))
			}
			if report.InvalidFiles > 0 {
				return fmt.Errorf("%d file(s) failed to parse", report.InvalidFiles)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&sample, "sample", 5, "number of files to sample for structure checks")
	return cmd
}

func newDataPrepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Render fault reports into knowledge base documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			clients, cfg, err := dialAWS(ctx)
			if err != nil {
				return err
			}

			bucket := cfg.S3.DataBucket
			prep := faultdata.NewPreparer(clients.S3, bucket.Name,
				bucket.DataStructure.SourcePrefix, bucket.DataStructure.BasePrefix, log)

			result, err := prep.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Converted %d report(s), exported %d document(s), uploaded %d sample(s).\n",
				result.FilesConverted, result.DocumentsExported, result.SamplesUploaded)
			if result.Failed > 0 {
				fmt.Printf("%d report(s) failed to convert; see the log.\n", result.Failed)
			}
			fmt.Println("Run maintkit kb sync to ingest the new documents.")
			return nil
		},
	}
}
