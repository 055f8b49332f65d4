// Package main is the docai CLI: a synchronous, single-user rendition of the
// visit workflow. It signs in, submits a recording, waits out transcription,
// fetches both summaries, and writes the report PDFs next to the recording.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/naheedk999/docai/internal/audio"
	"github.com/naheedk999/docai/internal/auth"
	"github.com/naheedk999/docai/internal/config"
	pdfutil "github.com/naheedk999/docai/internal/pdf"
	"github.com/naheedk999/docai/internal/processing"
	"github.com/naheedk999/docai/internal/report"
	"github.com/naheedk999/docai/internal/session"
	"github.com/naheedk999/docai/internal/transcribe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "docai: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docai",
		Short: "Clinical visit assistant CLI",
		Long: `docai records nothing itself; point it at an audio file of a clinical visit
and it handles transcription, summarization, and PDF report generation.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newLoginCmd(),
		newProcessCmd(),
	)
	return cmd
}

func newLoginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify credentials against the identity provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sess, err := signIn(cmd.Context(), cfg, email)
			if err != nil {
				return err
			}
			if sess.ExpiresAt.IsZero() {
				fmt.Println("signed in")
			} else {
				fmt.Printf("signed in, token valid until %s\n", sess.ExpiresAt.Format("15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted when omitted)")
	return cmd
}

func newProcessCmd() *cobra.Command {
	var (
		email       string
		language    string
		outDir      string
		patientName string
		patientID   string
		patientDOB  string
	)
	cmd := &cobra.Command{
		Use:   "process <audio-file>",
		Short: "Transcribe a visit recording and generate both report PDFs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if language == "" {
				language = cfg.DefaultLanguage
			}
			language = config.NormalizeLanguage(language)

			audioPath := args[0]
			ext := strings.ToLower(filepath.Ext(audioPath))
			if !audio.IsSupportedFormat(ext) {
				return fmt.Errorf("unsupported audio format %s", ext)
			}
			data, err := os.ReadFile(audioPath)
			if err != nil {
				return fmt.Errorf("read recording: %w", err)
			}

			sess, err := signIn(cmd.Context(), cfg, email)
			if err != nil {
				return err
			}
			sess.Language = language
			defer sess.Clear()

			pipeline := processing.New(
				audio.NewFFmpegNormalizer(cfg.FFmpegPath, cfg.AudioBitrate),
				transcribe.NewClient(cfg.APIBaseURL, sess.Token, transcribe.Variant(cfg.UploadVariant)),
				report.NewClient(cfg.APIBaseURL, sess.Token),
				processing.Options{
					MaxAudioBytes: cfg.MaxAudioBytes,
					MaxAttempts:   cfg.PollMaxAttempts,
					Interval:      cfg.PollInterval,
				},
			)

			fmt.Fprintln(cmd.OutOrStdout(), "processing recording, this can take several minutes...")
			res, err := pipeline.Run(cmd.Context(), data, filepath.Base(audioPath), ext, language)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "--- transcript ---")
			fmt.Fprintln(cmd.OutOrStdout(), res.Transcript)

			info := pdfutil.VisitInfo{
				DoctorName:     sess.Doctor.Name,
				Specialization: sess.Doctor.Specialization,
				Contact:        sess.Doctor.Contact,
				Email:          sess.Doctor.Email,
				PatientName:    patientName,
				PatientID:      patientID,
				DateOfBirth:    patientDOB,
			}
			pairs := []struct {
				kind report.Kind
				rep  *report.Report
			}{
				{report.KindPatient, res.PatientReport},
				{report.KindDoctor, res.DoctorReport},
			}
			for _, pair := range pairs {
				doc, err := pdfutil.BuildReport(info, pair.rep, language)
				if err != nil {
					return fmt.Errorf("render %s report: %w", pair.kind, err)
				}
				name := fmt.Sprintf("%s_report_%s.pdf", pair.kind, res.JobName)
				target := filepath.Join(outDir, name)
				if err := os.WriteFile(target, doc, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", target, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted when omitted)")
	cmd.Flags().StringVar(&language, "language", "", "Report language: en or it")
	cmd.Flags().StringVar(&outDir, "out", ".", "Directory for generated PDFs")
	cmd.Flags().StringVar(&patientName, "patient-name", "", "Patient name printed on the reports")
	cmd.Flags().StringVar(&patientID, "patient-id", "", "Patient identifier printed on the reports")
	cmd.Flags().StringVar(&patientDOB, "patient-dob", "", "Patient date of birth printed on the reports")
	return cmd
}

// signIn resolves credentials, authenticates, and starts a session carrying
// the doctor letterhead from configuration.
func signIn(ctx context.Context, cfg *config.Config, email string) (*session.Session, error) {
	if email == "" {
		email = cfg.ServiceEmail
	}
	reader := bufio.NewReader(os.Stdin)
	if email == "" {
		fmt.Print("email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	password := cfg.ServicePassword
	if password == "" {
		fmt.Print("password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	client := auth.NewClient(cfg.CognitoRegion, cfg.CognitoClientID)
	creds, err := client.Login(ctx, email, password)
	if err != nil {
		var aerr *auth.AuthError
		if errors.As(err, &aerr) && aerr.Unauthorized() {
			return nil, errors.New("invalid email or password")
		}
		return nil, err
	}

	sess := session.New(creds, email, cfg.DefaultLanguage)
	sess.Doctor = session.DoctorSettings{
		Name:           cfg.DoctorName,
		Specialization: cfg.DoctorSpecialization,
		Contact:        cfg.DoctorContact,
		Email:          cfg.DoctorEmail,
	}
	return sess, nil
}
