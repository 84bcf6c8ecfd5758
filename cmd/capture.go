package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nin-ia/leadcard/internal/model"
)

var (
	captureImage         string
	captureQualification string
	captureNote          string
	captureShowStages    bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture one business card photo into a lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		image, err := os.ReadFile(captureImage)
		if err != nil {
			return eris.Wrap(err, "read card image")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Capture(ctx, image,
			model.Qualification(captureQualification), captureNote)
		if err != nil {
			return err
		}

		if captureShowStages {
			for _, st := range res.Stages {
				fmt.Printf("--- %s ---\n%s\n\n", st.Stage, st.Normalized)
			}
		}

		out, err := json.MarshalIndent(res.Lead, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal lead")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	captureCmd.Flags().StringVar(&captureImage, "image", "", "path to the card photo (required)")
	captureCmd.Flags().StringVar(&captureQualification, "qualification", string(model.QualificationSmartTalk),
		fmt.Sprintf("lead qualification %v", model.Qualifications))
	captureCmd.Flags().StringVar(&captureNote, "note", "", "context note for the agents (required)")
	captureCmd.Flags().BoolVar(&captureShowStages, "stages", true, "print each stage output")
	_ = captureCmd.MarkFlagRequired("image")
	_ = captureCmd.MarkFlagRequired("note")
	rootCmd.AddCommand(captureCmd)
}
