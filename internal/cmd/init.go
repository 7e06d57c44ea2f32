package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plxgio/sakura-launcher/internal/config"
	"github.com/plxgio/sakura-launcher/internal/templates"
)

func newInitCmd() *cobra.Command {
	var (
		templateName string
		format       string
		dir          string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a launcher config file from a template",
		Long: `Create a launcher config file in the installation directory.

Available templates:
  minimal    - Update feed and backup list only
  full       - Every setting with its default value

Examples:
  launcher init                          # minimal launcher.yaml next to the binary
  launcher init --template full --format toml
  launcher init --dir /opt/sakura --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), templateName, format, dir, force)
		},
	}

	cmd.Flags().StringVarP(&templateName, "template", "t", "minimal", "Template name")
	cmd.Flags().StringVar(&format, "format", "yaml", "File format: yaml, toml, json")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to write the file to (default: the executable's directory)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	// Register completion for template flag
	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "toml", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit writes the chosen template and checks that it loads.
func runInit(stdin io.Reader, stdout, stderr io.Writer, templateName, format, dir string, force bool) error {
	tmpl, err := templates.Get(templateName, format)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	if dir == "" {
		dir = config.ExecutableDir()
	}
	outputPath := filepath.Join(dir, tmpl.FileName())

	if _, err := os.Stat(outputPath); err == nil && !force {
		_, _ = fmt.Fprintf(stderr, "Config file already exists at %s\n", outputPath)
		_, _ = fmt.Fprintf(stdout, "Overwrite? [y/N]: ")
		answer, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(outputPath, tmpl.Content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if _, err := config.Load(outputPath); err != nil {
		return fmt.Errorf("written config does not load: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "Created %s from the '%s' template\n", outputPath, tmpl.Name)
	return nil
}
