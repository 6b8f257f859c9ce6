package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"posimport/internal/connectors"
	"posimport/internal/listener"
	"posimport/internal/pipeline"
)

func newMailFetchCmd() *cobra.Command {
	var (
		provider string
		label    string
		max      int
	)
	cmd := &cobra.Command{
		Use:   "mail:fetch",
		Short: "Fetch messages from a mailbox and store them for processing",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			conn, err := listener.NewConnector(cmd.Context(), a.cfg, provider)
			if err != nil {
				return err
			}
			res, err := connectors.NewFetchService(a.db, a.cfg.RawMailDir, conn, a.logger).FetchAndStore(cmd.Context(), label, max)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mail fetch done provider=%s fetched=%d stored=%d\n", provider, res.Fetched, res.Stored)
			return nil
		}),
	}
	cmd.Flags().StringVar(&provider, "provider", connectors.ProviderGmail, "gmail|imap")
	cmd.Flags().StringVar(&label, "label", "INBOX", "mailbox or label")
	cmd.Flags().IntVar(&max, "max", 50, "max messages")
	return cmd
}

func newMailProcessCmd() *cobra.Command {
	var (
		provider  string
		messageID string
		batch     int
	)
	cmd := &cobra.Command{
		Use:   "mail:process",
		Short: "Preview (and optionally commit) customer lists found in fetched mail",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			processor := pipeline.NewProcessingService(a.db, a.store, a.cfg, a.logger)
			w := cmd.OutOrStdout()
			if messageID != "" {
				res, err := processor.ProcessByProviderMessageID(cmd.Context(), provider, messageID)
				if err != nil {
					return err
				}
				printProcessResult(cmd, res)
				return nil
			}
			results, err := processor.ProcessPending(cmd.Context(), batch, provider)
			for _, res := range results {
				printProcessResult(cmd, res)
			}
			fmt.Fprintf(w, "processed pending emails=%d\n", len(results))
			return err
		}),
	}
	cmd.Flags().StringVar(&provider, "provider", "", "only process mail from gmail|imap")
	cmd.Flags().StringVar(&messageID, "message-id", "", "process one message by its Message-ID")
	cmd.Flags().IntVar(&batch, "batch", 20, "batch size")
	return cmd
}

func printProcessResult(cmd *cobra.Command, res pipeline.ProcessResult) {
	if res.RunID == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "email %d: no import\n", res.EmailID)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "email %d: run=%s rows=%d issues=%d committed=%t created=%d updated=%d skipped=%d failed=%d\n",
		res.EmailID, res.RunID, res.Rows, res.Issues, res.Committed,
		res.Summary.Created, res.Summary.Updated, res.Summary.Skipped, res.Summary.Failed)
}

func newMailListenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mail:listen",
		Short: "Fetch, process and export mail on an interval until interrupted",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			return listener.NewService(a.db, a.store, a.cfg, a.logger).Run(cmd.Context())
		}),
	}
}
