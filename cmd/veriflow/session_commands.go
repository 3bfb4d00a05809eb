package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"veriflow/internal/session"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or edit the verification session",
	}

	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionSetCommand(ctx))
	sessionCmd.AddCommand(newSessionResetCommand(ctx))

	return sessionCmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := ctx.openTracker()
			if err != nil {
				return err
			}
			state := tracker.Snapshot()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Attempt: %s\n", orDash(state.AttemptID))
			fmt.Fprintf(out, "Token: %s\n", orDash(state.Token))
			fmt.Fprintf(out, "Country: %s\n", orDash(state.Country))
			fmt.Fprintf(out, "Document type: %s\n", orDash(string(state.DocumentType)))
			fmt.Fprintf(out, "Terms agreed: %s\n", yesNo(state.AgreedToTerms))
			fmt.Fprintf(out, "Camera agreed: %s\n", yesNo(state.AgreedToCamera))
			fmt.Fprintf(out, "Front captured: %s\n", yesNo(state.UploadDocumentFront))
			fmt.Fprintf(out, "Back captured: %s\n", yesNo(state.UploadDocumentBack))
			fmt.Fprintf(out, "Face recorded: %s\n", yesNo(state.FaceVerification))
			return nil
		},
	}
}

func newSessionSetCommand(ctx *commandContext) *cobra.Command {
	var (
		token        string
		country      string
		documentType string
		agreeTerms   bool
		agreeCamera  bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set session fields for the current attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("token") && !flags.Changed("country") && !flags.Changed("document-type") &&
				!flags.Changed("agree-terms") && !flags.Changed("agree-camera") {
				return fmt.Errorf("nothing to set; pass at least one flag")
			}

			var docType session.DocumentType
			if flags.Changed("document-type") {
				parsed, ok := session.ParseDocumentType(documentType)
				if !ok {
					return fmt.Errorf("document type must be passport, driver, or id; got %q", documentType)
				}
				docType = parsed
			}

			normalizedCountry := ""
			if flags.Changed("country") {
				normalized, err := session.NormalizeCountry(country)
				if err != nil {
					return err
				}
				normalizedCountry = normalized
			}

			tracker, err := ctx.openTracker()
			if err != nil {
				return err
			}
			if err := tracker.Update(func(s *session.State) {
				if flags.Changed("token") {
					s.Token = strings.TrimSpace(token)
				}
				if flags.Changed("country") {
					s.Country = normalizedCountry
				}
				if flags.Changed("document-type") {
					s.DocumentType = docType
					if docType == session.DocumentPassport {
						s.UploadDocumentBack = false
					}
				}
				if flags.Changed("agree-terms") {
					s.AgreedToTerms = agreeTerms
				}
				if flags.Changed("agree-camera") {
					s.AgreedToCamera = agreeCamera
				}
			}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Verification session token")
	cmd.Flags().StringVar(&country, "country", "", "Issuing country code (ISO 3166-1)")
	cmd.Flags().StringVar(&documentType, "document-type", "", "Document type: passport, driver, or id")
	cmd.Flags().BoolVar(&agreeTerms, "agree-terms", false, "Record agreement to the terms of service")
	cmd.Flags().BoolVar(&agreeCamera, "agree-camera", false, "Record consent to camera access")
	return cmd
}

func newSessionResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the session state and start over",
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := ctx.openTracker()
			if err != nil {
				return err
			}
			if err := tracker.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session reset")
			return nil
		},
	}
}
