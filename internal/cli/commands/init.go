package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/easyblocks/easyblocks/internal/cli/ui"
	"github.com/easyblocks/easyblocks/internal/templates"
)

type initOptions struct {
	interactive bool
	template    string
	projectID   string
	port        int
	database    string
	locale      string
	force       bool
}

var projectIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateProjectID validates a project id, which is also used as a
// directory name.
func validateProjectID(id string) error {
	id = strings.TrimSpace(id)
	if len(id) == 0 || len(id) > 100 {
		return fmt.Errorf("project id must be 1-100 characters")
	}
	if !projectIDPattern.MatchString(id) {
		return fmt.Errorf("project id can only contain letters, numbers, dashes, and underscores")
	}
	return nil
}

// dsnFor picks a connection string for a fresh project.
func dsnFor(driver, projectID string) string {
	switch driver {
	case "postgres", "pgx":
		return fmt.Sprintf("postgres://localhost:5432/%s?sslmode=disable", projectID)
	case "memory":
		return ""
	}
	return "easyblocks.db"
}

// NewInitCommand creates the init command
func NewInitCommand(g *globalOptions) *cobra.Command {
	opts := &initOptions{}
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a new easyblocks project",
		Long: `Create easyblocks.yml, a project definitions file and a starter page.

Templates:
  blank    - built-in components and a single page
  landing  - a custom Hero component and a page using it

Examples:
  easyblocks init
  easyblocks init my-site --template landing
  easyblocks init --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, g, opts, dir)
		},
	}

	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Prompt for every setting")
	cmd.Flags().StringVarP(&opts.template, "template", "t", "blank", "Project template (blank, landing)")
	cmd.Flags().StringVar(&opts.projectID, "id", "", "Project id (default: directory name)")
	cmd.Flags().IntVar(&opts.port, "port", 3000, "Server port")
	cmd.Flags().StringVar(&opts.database, "database", "sqlite3", "Document store (memory, sqlite3, postgres)")
	cmd.Flags().StringVar(&opts.locale, "locale", "en", "Default locale")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Overwrite existing files")

	return cmd
}

func runInit(cmd *cobra.Command, g *globalOptions, opts *initOptions, dir string) error {
	registry := templates.DefaultRegistry()

	if opts.projectID == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		opts.projectID = filepath.Base(abs)
	}

	if opts.interactive {
		if err := promptInit(opts, registry.Names()); err != nil {
			return err
		}
	}

	if err := validateProjectID(opts.projectID); err != nil {
		return err
	}
	tmpl, err := registry.Get(opts.template)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.UnknownError("template", opts.template, registry.Names(), g.noColor))
		return err
	}
	switch opts.database {
	case "memory", "sqlite3", "postgres", "pgx":
	default:
		return fmt.Errorf("database must be one of memory, sqlite3, postgres, pgx")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	written, err := tmpl.Write(dir, templates.Data{
		ProjectID: opts.projectID,
		Port:      opts.port,
		Database:  opts.database,
		DSN:       dsnFor(opts.database, opts.projectID),
		Locale:    opts.locale,
	}, opts.force)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ui.WriteSuccess(out, fmt.Sprintf("created %s project %q", tmpl.Name, opts.projectID), g.noColor)
	for _, path := range written {
		fmt.Fprintf(out, "   %s\n", path)
	}

	info := color.New(color.FgCyan)
	if g.noColor {
		info.DisableColor()
	}
	fmt.Fprintln(out)
	info.Fprintln(out, "Next steps:")
	if dir != "." {
		fmt.Fprintf(out, "  cd %s\n", dir)
	}
	fmt.Fprintln(out, "  easyblocks render pages/home.json")
	fmt.Fprintln(out, "  easyblocks serve")
	return nil
}

func promptInit(opts *initOptions, templateNames []string) error {
	questions := []*survey.Question{
		{
			Name:     "projectID",
			Prompt:   &survey.Input{Message: "Project id:", Default: opts.projectID},
			Validate: func(ans interface{}) error { return validateProjectID(fmt.Sprint(ans)) },
		},
		{
			Name:   "template",
			Prompt: &survey.Select{Message: "Template:", Options: templateNames, Default: opts.template},
		},
		{
			Name: "database",
			Prompt: &survey.Select{
				Message: "Document store:",
				Options: []string{"sqlite3", "postgres", "memory"},
				Default: opts.database,
			},
		},
		{
			Name:   "locale",
			Prompt: &survey.Input{Message: "Default locale:", Default: opts.locale},
		},
	}

	answers := struct {
		ProjectID string `survey:"projectID"`
		Template  string `survey:"template"`
		Database  string `survey:"database"`
		Locale    string `survey:"locale"`
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	opts.projectID = strings.TrimSpace(answers.ProjectID)
	opts.template = answers.Template
	opts.database = answers.Database
	opts.locale = strings.TrimSpace(answers.Locale)
	return nil
}
