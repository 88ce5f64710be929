package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"repverse/internal/delivery/server/bootstrap"
	"repverse/internal/domain/marketplace"
	"repverse/internal/shared/logging"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const maxStdinBytes = 4 << 20

func (c *cli) newCheckCommand() *cobra.Command {
	var (
		jobFile     string
		title       string
		description string
	)
	cmd := &cobra.Command{
		Use:   "check [work]",
		Short: "Quality-check one work sample against a job",
		Long: "Runs the evaluator agents and the aggregator once and prints the result.\n" +
			"The work is the argument (text, http(s) URL or ipfs:// reference) or stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := loadJob(jobFile, title, description)
			if err != nil {
				return err
			}
			ref, err := c.argOrStdin(args)
			if err != nil {
				return err
			}
			cfg, _, err := c.loadConfig()
			if err != nil {
				return err
			}
			f, err := bootstrap.BuildFoundation(cmd.Context(), cfg, logging.NewComponentLogger("CLI"))
			if err != nil {
				return err
			}
			defer f.Close()

			work, err := f.Resolver.Resolve(cmd.Context(), ref)
			if err != nil {
				return err
			}
			result, err := f.Engine.QualityCheck(cmd.Context(), work, job)
			if err != nil {
				return err
			}
			printQuality(cmd.OutOrStdout(), result, cfg.Evaluation.PassThreshold)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobFile, "job", "", "YAML or JSON file with title, description, requirements, instructions")
	cmd.Flags().StringVar(&title, "title", "", "Job title (when --job is not given)")
	cmd.Flags().StringVar(&description, "description", "", "Job description (when --job is not given)")
	return cmd
}

func (c *cli) newExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [blurb]",
		Short: "Extract structured job details from a free-form blurb",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blurb, err := c.argOrStdin(args)
			if err != nil {
				return err
			}
			cfg, _, err := c.loadConfig()
			if err != nil {
				return err
			}
			f, err := bootstrap.BuildFoundation(cmd.Context(), cfg, logging.NewComponentLogger("CLI"))
			if err != nil {
				return err
			}
			defer f.Close()

			job, err := f.Jobs.ExtractJobDetails(cmd.Context(), blurb)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(jobDocument(job))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func (c *cli) newImageCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "image <title> [description]",
		Short: "Generate a pixel-art gig illustration",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := ""
			if len(args) == 2 {
				description = args[1]
			}
			cfg, _, err := c.loadConfig()
			if err != nil {
				return err
			}
			f, err := bootstrap.BuildFoundation(cmd.Context(), cfg, logging.NewComponentLogger("CLI"))
			if err != nil {
				return err
			}
			defer f.Close()

			image, err := f.Jobs.GenerateGigImage(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, image.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			printStatus(cmd.OutOrStdout(), "wrote %s (%d bytes, %s)", output, len(image.Data), image.MimeType)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "gig.png", "Output file")
	return cmd
}

// argOrStdin returns the single argument, or stdin when it is piped.
func (c *cli) argOrStdin(args []string) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "-" {
		return args[0], nil
	}
	if file, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return "", errors.New("nothing to read: pass an argument or pipe input on stdin")
	}
	data, err := io.ReadAll(io.LimitReader(c.stdin, maxStdinBytes))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("stdin was empty")
	}
	return text, nil
}

// jobFileDoc mirrors marketplace.JobSpec for YAML (a superset of JSON).
type jobFileDoc struct {
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Requirements []string `yaml:"requirements"`
	Instructions []string `yaml:"instructions"`
}

func jobDocument(job marketplace.JobSpec) jobFileDoc {
	return jobFileDoc{
		Title:        job.Title,
		Description:  job.Description,
		Requirements: job.Requirements,
		Instructions: job.Instructions,
	}
}

func loadJob(path, title, description string) (marketplace.JobSpec, error) {
	var job marketplace.JobSpec
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return job, fmt.Errorf("read job file: %w", err)
		}
		var doc jobFileDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return job, fmt.Errorf("parse job file %s: %w", path, err)
		}
		job = marketplace.JobSpec(doc)
	}
	if title != "" {
		job.Title = title
	}
	if description != "" {
		job.Description = description
	}
	if job.Requirements == nil {
		job.Requirements = []string{}
	}
	if job.Instructions == nil {
		job.Instructions = []string{}
	}
	if err := job.Validate(); err != nil {
		return job, fmt.Errorf("job: %w", err)
	}
	return job, nil
}
