package commands

import (
	"context"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

type ConfigCmd struct {
	flags *Flags
}

// NewConfigCmd creates a new config command.
func NewConfigCmd(flags *Flags) *ConfigCmd {
	return &ConfigCmd{flags: flags}
}

// Register adds the config command to the application.
func (cmd *ConfigCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "config",
		Usage:       "Print the effective configuration",
		UsageText:   "invertify config",
		Description: "Prints the configuration after defaults are applied and validation passed.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *ConfigCmd) run(ctx context.Context, c *cli.Command) error {
	enc := yaml.NewEncoder(c.Root().Writer)
	enc.SetIndent(2)
	if err := enc.Encode(cmd.flags.Config); err != nil {
		return err
	}
	return enc.Close()
}
