package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/doeshing/litvis-go/internal/app"
	"github.com/doeshing/litvis-go/internal/infrastructure/cli/commands"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

// skipContainer marks commands that run without loading config.
const skipContainer = "litvis/skip-container"

// NewRootCmd wires the cobra root command. The container is built once
// flags are parsed, so --config and --verbose apply to every subcommand.
func NewRootCmd(ctx context.Context, opts Options) *cobra.Command {
	container := &app.Container{}
	var configPath string
	verbose := opts.Verbose

	root := &cobra.Command{
		Use:   "litvis",
		Short: "litvis - literate Elm narratives",
		Long:  "litvis compiles the Elm code blocks of markdown narratives and prints the values they request.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipContainer] == "true" {
				return nil
			}
			built, err := app.BuildContainer(cmd.Context(), app.Options{ConfigPath: configPath, Verbose: verbose})
			if err != nil {
				return err
			}
			*container = *built
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetContext(ctx)

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.litvis/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", verbose, "Enable debug logging")

	version := commands.NewVersionCommand()
	version.Annotations = map[string]string{skipContainer: "true"}

	root.AddCommand(newRunCommand(container))
	root.AddCommand(commands.NewCacheCommand(container))
	root.AddCommand(commands.NewHistoryCommand(container))
	root.AddCommand(commands.NewDoctorCommand(container))
	root.AddCommand(commands.NewConfigCommand(container))
	root.AddCommand(version)
	return root
}

func newRunCommand(container *app.Container) *cobra.Command {
	var asJSON bool
	var strict bool

	cmd := &cobra.Command{
		Use:   "run <document.md>",
		Short: "Compile a narrative and print its messages and values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := container.NarrativeService.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderer := NewRenderer(cmd.OutOrStdout())
			if asJSON {
				if err := renderer.JSON(result); err != nil {
					return err
				}
			} else {
				renderer.Narrative(result)
			}
			if strict && result.HasErrors() {
				return errNarrativeFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any error message is reported")
	return cmd
}
