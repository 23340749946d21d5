package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var (
		title         string
		applicationID string
		filingDate    string
		preFiling     bool
		provisional   bool
	)
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Extract specification files and create or refresh an application",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts, err := readParts(args)
			if err != nil {
				return err
			}
			req := ports.UploadRequest{
				OwnerID:       ctx.owner,
				ApplicationID: applicationID,
				Title:         title,
				IsPreFiling:   preFiling,
				IsProvisional: provisional,
				Files:         parts,
			}
			if strings.TrimSpace(filingDate) != "" {
				parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(filingDate))
				if err != nil {
					return fmt.Errorf("filing date must be YYYY-MM-DD: %w", err)
				}
				req.FilingDate = &parsed
			}

			return ctx.withServices(cmd, func(svc *services) error {
				result, err := svc.intake.Upload(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, result)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderUpload(result))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Application title")
	cmd.Flags().StringVar(&applicationID, "application-id", "", "Refresh an existing application instead of creating one")
	cmd.Flags().StringVar(&filingDate, "filing-date", "", "Filing date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&preFiling, "pre-filing", false, "Specification has not been filed yet")
	cmd.Flags().BoolVar(&provisional, "provisional", false, "Mark the application as provisional")
	return cmd
}

func readParts(paths []string) ([]domain.UploadedPart, error) {
	parts := make([]domain.UploadedPart, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		name := filepath.Base(path)
		parts = append(parts, domain.UploadedPart{
			Name:              "files",
			IsFile:            true,
			Filename:          name,
			DeclaredMediaType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
			RawBytes:          data,
		})
	}
	return parts, nil
}

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var textFile string
	cmd := &cobra.Command{
		Use:   "classify <application-id>",
		Short: "Predict CPC codes and candidate points of distinction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ports.ClassifyRequest{OwnerID: ctx.owner, ApplicationID: args[0]}
			if textFile != "" {
				data, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("read %s: %w", textFile, err)
				}
				req.TextOverride = string(data)
			}
			return ctx.withServices(cmd, func(svc *services) error {
				result, err := svc.classifier.Classify(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, result)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderClassification(result))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&textFile, "text-file", "", "Classify this text instead of the stored specification")
	return cmd
}

func newSaveCommand(ctx *commandContext) *cobra.Command {
	var (
		podsFile       string
		pods           []string
		primary        int
		title          string
		classification string
		technologyArea string
	)
	cmd := &cobra.Command{
		Use:   "save <application-id>",
		Short: "Commit the approved points of distinction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			commitPods, err := commitPODs(podsFile, pods, primary)
			if err != nil {
				return err
			}
			req := ports.CommitRequest{
				OwnerID:               ctx.owner,
				ApplicationID:         args[0],
				Pods:                  commitPods,
				Title:                 title,
				PrimaryClassification: classification,
				TechnologyArea:        technologyArea,
			}
			return ctx.withServices(cmd, func(svc *services) error {
				view, err := svc.review.Commit(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, view)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderView(view))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&podsFile, "pods-file", "", "JSON array of {text, rationale, isPrimary, suggestedBySystem}")
	cmd.Flags().StringArrayVar(&pods, "pod", nil, "Point of distinction text (repeatable)")
	cmd.Flags().IntVar(&primary, "primary", 1, "Position of the primary --pod, starting at 1")
	cmd.Flags().StringVar(&title, "title", "", "Override the application title")
	cmd.Flags().StringVar(&classification, "classification", "", "Override the primary CPC code")
	cmd.Flags().StringVar(&technologyArea, "technology-area", "", "Override the technology area")
	return cmd
}

// commitPODs reads the POD set from a JSON file or from repeated --pod flags.
func commitPODs(podsFile string, pods []string, primary int) ([]ports.CommitPOD, error) {
	if podsFile != "" && len(pods) > 0 {
		return nil, errors.New("use either --pods-file or --pod, not both")
	}
	if podsFile != "" {
		data, err := os.ReadFile(podsFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", podsFile, err)
		}
		var out []ports.CommitPOD
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", podsFile, err)
		}
		return out, nil
	}
	if primary < 1 || primary > len(pods) {
		return nil, fmt.Errorf("--primary must be between 1 and %d", len(pods))
	}
	out := make([]ports.CommitPOD, 0, len(pods))
	for i, text := range pods {
		out = append(out, ports.CommitPOD{Text: text, IsPrimary: i == primary-1})
	}
	return out, nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var archived bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				apps, err := svc.apps.List(cmd.Context(), domain.ApplicationFilter{OwnerID: ctx.owner, Archived: archived})
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, apps)
				}
				if len(apps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No applications")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderApplications(apps))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "List archived applications")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <application-id>",
		Short: "Show an application with its points of distinction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				view, err := svc.apps.Get(cmd.Context(), ctx.owner, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, view)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderView(view))
				return nil
			})
		},
	}
}

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <application-id>",
		Short: "Archive an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				if err := svc.apps.Archive(cmd.Context(), ctx.owner, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Archived %s\n", args[0])
				return nil
			})
		},
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print application commit events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				if svc.events == nil {
					return errEventsDisabled
				}
				out := cmd.OutOrStdout()
				err := svc.events.SubscribeApplicationCommitted(cmd.Context(), func(_ context.Context, event domain.ApplicationCommitted) error {
					if ctx.jsonOutput {
						return writeJSON(cmd, event)
					}
					_, err := fmt.Fprintln(out, renderEvent(event))
					return err
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}
