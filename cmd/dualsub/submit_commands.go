package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dualsub/internal/api"
	"dualsub/internal/bulk"
	"dualsub/internal/config"
	"dualsub/internal/jobs"
	"dualsub/internal/workflow"
)

type optionFlags struct {
	noSync   bool
	noPrefix bool
	noDetect bool
}

func (f *optionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noSync, "no-sync", false, "Skip subtitle synchronization")
	cmd.Flags().BoolVar(&f.noPrefix, "no-prefix", false, "Do not prefix lines with language tags")
	cmd.Flags().BoolVar(&f.noDetect, "no-detect", false, "Skip content language detection")
}

// options returns nil when no flag changed so the daemon's defaults apply.
func (f *optionFlags) options(cmd *cobra.Command, cfg *config.Config) *bulk.Options {
	flags := cmd.Flags()
	if !flags.Changed("no-sync") && !flags.Changed("no-prefix") && !flags.Changed("no-detect") {
		return nil
	}
	opts := bulk.DefaultOptions()
	if cfg != nil {
		opts.LanguagePrefix = cfg.Subtitles.LanguagePrefix
		opts.SyncEnabled = cfg.Sync.Enabled
		opts.LanguageDetection = cfg.Subtitles.LanguageDetection
	}
	if flags.Changed("no-sync") {
		opts.SyncEnabled = !f.noSync
	}
	if flags.Changed("no-prefix") {
		opts.LanguagePrefix = !f.noPrefix
	}
	if flags.Changed("no-detect") {
		opts.LanguageDetection = !f.noDetect
	}
	return &opts
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a job to the daemon",
	}

	submitCmd.AddCommand(newSubmitBulkCommand(ctx))
	submitCmd.AddCommand(newSubmitSyncCommand(ctx))
	submitCmd.AddCommand(newSubmitExtractCommand(ctx))
	submitCmd.AddCommand(newSubmitFileCommand(ctx))

	return submitCmd
}

func newSubmitBulkCommand(ctx *commandContext) *cobra.Command {
	var req workflow.BulkRequest
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "bulk <show-id>",
		Short: "Generate dual subtitles for every episode of a show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ShowID = strings.TrimSpace(args[0])
			req.Options = flags.options(cmd, ctx.configValue())
			return submitRequest(cmd, ctx, workflow.Request{Type: jobs.TypeBulkDualSubtitle, Bulk: &req})
		},
	}
	cmd.Flags().StringVar(&req.ShowTitle, "title", "", "Show title used in the job title")
	cmd.Flags().StringVar(&req.PrimaryLanguage, "primary", "", "Primary language (defaults to subtitles.default_primary_language)")
	cmd.Flags().StringVar(&req.SecondaryLanguage, "secondary", "", "Secondary language (defaults to subtitles.default_secondary_language)")
	cmd.Flags().StringVar(&req.Token, "token", "", "Catalog token (defaults to plex.token)")
	flags.register(cmd)
	return cmd
}

func newSubmitSyncCommand(ctx *commandContext) *cobra.Command {
	var req workflow.SyncRequest
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "sync <primary.srt> <secondary.srt>",
		Short: "Combine two subtitle files into one dual subtitle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.PrimaryPath, err = absolutePath(args[0]); err != nil {
				return err
			}
			if req.SecondaryPath, err = absolutePath(args[1]); err != nil {
				return err
			}
			if req.VideoPath, err = absolutePath(req.VideoPath); err != nil {
				return err
			}
			if req.OutputPath, err = absolutePath(req.OutputPath); err != nil {
				return err
			}
			req.Options = flags.options(cmd, ctx.configValue())
			return submitRequest(cmd, ctx, workflow.Request{Type: jobs.TypeSingleSubtitleSync, Sync: &req})
		},
	}
	cmd.Flags().StringVar(&req.VideoPath, "video", "", "Video used as the timing reference")
	cmd.Flags().StringVarP(&req.OutputPath, "output", "o", "", "Output path for the dual subtitle")
	cmd.Flags().StringVar(&req.PrimaryLanguage, "primary", "", "Primary language code")
	cmd.Flags().StringVar(&req.SecondaryLanguage, "secondary", "", "Secondary language code")
	flags.register(cmd)
	return cmd
}

func newSubmitExtractCommand(ctx *commandContext) *cobra.Command {
	var req workflow.ExtractionRequest

	cmd := &cobra.Command{
		Use:   "extract <video> <stream-index>",
		Short: "Extract an embedded subtitle stream as SRT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.VideoPath, err = absolutePath(args[0]); err != nil {
				return err
			}
			var index int
			if _, err := fmt.Sscanf(args[1], "%d", &index); err != nil {
				return fmt.Errorf("stream index %q is not a number", args[1])
			}
			req.StreamIndex = index
			if req.OutputPath, err = absolutePath(req.OutputPath); err != nil {
				return err
			}
			return submitRequest(cmd, ctx, workflow.Request{Type: jobs.TypeSubtitleExtraction, Extraction: &req})
		},
	}
	cmd.Flags().StringVar(&req.Codec, "codec", "", "Stream codec as reported by the catalog")
	cmd.Flags().StringVar(&req.Language, "language", "", "Language code used in the output filename")
	cmd.Flags().StringVarP(&req.OutputPath, "output", "o", "", "Output path for the extracted subtitle")
	return cmd
}

func newSubmitFileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "file <request.yaml>",
		Short: "Submit a request described in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read request: %w", err)
			}
			req, err := workflow.DecodeYAML(data)
			if err != nil {
				return err
			}
			return submitRequest(cmd, ctx, req)
		},
	}
}

func submitRequest(cmd *cobra.Command, ctx *commandContext, req workflow.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return ctx.withClient(func(client *api.Client) error {
		job, err := client.Submit(cmd.Context(), req)
		if err != nil {
			return err
		}
		if ctx.jsonOutput() {
			return writeJSON(cmd, job)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (%s)\n", job.ID, job.Title)
		fmt.Fprintf(cmd.OutOrStdout(), "Follow it with: dualsub jobs watch %s\n", job.ID)
		return nil
	})
}

func absolutePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}
