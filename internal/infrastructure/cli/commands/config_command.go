package commands

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/litvis-go/internal/app"
	configapp "github.com/doeshing/litvis-go/internal/application/config"
	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/infrastructure/cli/helpers"
	configinfra "github.com/doeshing/litvis-go/internal/infrastructure/config"
)

const envKeyEditor = "EDITOR"

// NewConfigCommand creates the config command with all subcommands
func NewConfigCommand(container *app.Container) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change litvis configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printYAML(cmd.OutOrStdout(), container.Config)
		},
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return printYAML(cmd.OutOrStdout(), container.Config)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			RunE: func(cmd *cobra.Command, args []string) error {
				loader, err := helpers.GetConfigLoader(container)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), loader.Path())
				return nil
			},
		},
		newConfigKeysCommand(container),
		newConfigGetCommand(container),
		newConfigSetCommand(container),
		newConfigUnsetCommand(container),
		newConfigEditCommand(container),
		newConfigValidateCommand(container),
		newConfigResetCommand(container),
		newConfigDiffCommand(container),
	)

	return configCmd
}

func newConfigKeysCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List settable keys with their current values",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tKIND\tVALUE\tUSAGE")
			for _, k := range configapp.Keys() {
				value, _ := configapp.Get(container.Config, k.Path)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.Path, k.Kind, formatValue(value), k.Usage)
			}
			fmt.Fprintf(w, "%s<author/package>\tdependency\t\tversion, latest or false\n", configapp.DependencyKeyPrefix)
			return w.Flush()
		},
	}
}

func newConfigGetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := configapp.Get(container.Config, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatValue(value))
			return nil
		},
	}
}

func newConfigSetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a configuration value. Durations use Go syntax (30s, 5m), lists are comma separated and\n" +
			"dependencies take a version, latest or false, e.g.\n\n" +
			"  litvis config set environment.dependencies.elm/json 1.1.3",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfiguration(cmd.OutOrStdout(), container, args[0], func(cfg domain.Config) (domain.Config, error) {
				return configapp.Set(cfg, args[0], strings.Join(args[1:], " "))
			})
		},
	}
}

func newConfigUnsetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Clear a configuration value or remove a dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfiguration(cmd.OutOrStdout(), container, args[0], func(cfg domain.Config) (domain.Config, error) {
				return configapp.Unset(cfg, args[0])
			})
		},
	}
}

func newConfigEditCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit configuration in $EDITOR",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := helpers.GetConfigLoader(container)
			if err != nil {
				return err
			}
			editor := getEditorCommand()
			run := exec.CommandContext(cmd.Context(), editor, loader.Path())
			run.Stdin = os.Stdin
			run.Stdout = os.Stdout
			run.Stderr = os.Stderr
			if err := run.Run(); err != nil {
				return fmt.Errorf("failed to run editor %s: %w", editor, err)
			}
			cfg, err := loader.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("edited configuration does not load: %w", err)
			}
			if err := configapp.Validate(cfg); err != nil {
				return fmt.Errorf("edited configuration is invalid: %w", err)
			}
			return nil
		},
	}
}

func newConfigValidateCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := container.ConfigProvider.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			if err := configapp.Validate(cfg); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgConfigurationValid)
			return nil
		},
	}
}

func newConfigResetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := helpers.GetConfigLoader(container)
			if err != nil {
				return err
			}
			if _, err := os.Stat(loader.Path()); err == nil {
				if _, err := loader.Backup(); err != nil {
					return fmt.Errorf("failed to create configuration backup: %w", err)
				}
			}
			cfg, err := loader.Reset()
			if err != nil {
				return fmt.Errorf("failed to reset configuration: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration reset at %s\n", loader.Path())
			return printYAML(cmd.OutOrStdout(), cfg)
		},
	}
}

func newConfigDiffCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show keys that differ from the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			changes := configapp.Diff(configinfra.DefaultConfig(), container.Config)
			out := cmd.OutOrStdout()
			if len(changes) == 0 {
				fmt.Fprintln(out, MsgNoDifferencesFromDefault)
				return nil
			}
			for _, c := range changes {
				fmt.Fprintf(out, "%s: %s -> %s\n", c.Path, formatValue(c.From), formatValue(c.To))
			}
			return nil
		},
	}
}

// updateConfiguration applies change to the file's own contents, not the
// environment-overridden snapshot, and saves it with a backup.
func updateConfiguration(out io.Writer, container *app.Container, key string, change func(domain.Config) (domain.Config, error)) error {
	loader, err := helpers.GetConfigLoader(container)
	if err != nil {
		return err
	}
	cfg, err := loader.LoadFile()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	updated, err := change(cfg)
	if err != nil {
		return err
	}
	if err := helpers.SaveConfigWithValidation(container, updated); err != nil {
		return err
	}
	value, err := configapp.Get(updated, key)
	if err != nil {
		fmt.Fprintf(out, "%s removed\n", key)
		return nil
	}
	fmt.Fprintf(out, "%s = %s\n", key, formatValue(value))
	return nil
}

func printYAML(out io.Writer, cfg domain.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Fprint(out, string(data))
	return nil
}

func formatValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return "<unset>"
	case string:
		if value == "" {
			return "<unset>"
		}
		return value
	case []string:
		if len(value) == 0 {
			return "[]"
		}
		return strings.Join(value, ",")
	case domain.DependencyVersion:
		if value.Disabled {
			return "false"
		}
		if value.Version == "" {
			return domain.Latest
		}
		return value.Version
	default:
		return fmt.Sprint(value)
	}
}

// getEditorCommand retrieves the editor command from environment or returns default
func getEditorCommand() string {
	if editor := os.Getenv(envKeyEditor); editor != "" {
		return editor
	}
	return DefaultEditorCommand
}
