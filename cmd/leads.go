package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nin-ia/leadcard/internal/export"
)

var (
	leadsLimit     int
	leadsExportOut string
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect stored leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print stored leads as JSON, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		leads, err := st.ListLeads(ctx, leadsLimit)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(leads, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal leads")
		}
		fmt.Println(string(out))
		return nil
	},
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored leads to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		leads, err := st.ListLeads(ctx, leadsLimit)
		if err != nil {
			return err
		}

		f, err := os.Create(leadsExportOut)
		if err != nil {
			return eris.Wrap(err, "create export file")
		}
		defer f.Close()

		if err := export.WriteLeadsXLSX(f, leads); err != nil {
			return err
		}

		zap.L().Info("leads exported",
			zap.String("path", leadsExportOut),
			zap.Int("count", len(leads)),
		)
		return nil
	},
}

func init() {
	leadsCmd.PersistentFlags().IntVar(&leadsLimit, "limit", 0, "max leads to read (0 = store default)")
	leadsExportCmd.Flags().StringVar(&leadsExportOut, "out", "leads.xlsx", "output workbook path")
	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}
