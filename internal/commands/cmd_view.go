package commands

import (
	"context"
	"errors"

	"github.com/soypat/invertify"
	"github.com/soypat/invertify/internal/app"
	"github.com/urfave/cli/v3"
)

type ViewCmd struct {
	flags *Flags
	gpu   bool
}

// NewViewCmd creates a new view command.
func NewViewCmd(flags *Flags) *ViewCmd {
	return &ViewCmd{flags: flags}
}

// Register adds the view command to the application.
func (cmd *ViewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "view",
		Usage:     "Open the inverter window",
		UsageText: "invertify view [options] [FILE]",
		Description: `Opens a window showing the original and inverted image side by side.
Click either image to inspect it with zoom and pan. Without FILE, press O or
drop an image onto the window.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "gpu",
				Usage:       "invert on the GPU when an adapter is available",
				Sources:     cli.EnvVars("INVERTIFY_GPU"),
				Destination: &cmd.gpu,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ViewCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	inv, closeInv := newInverter(cmd.gpu || cfg.Engine.GPU, cmd.flags.Logger)
	defer closeInv()

	a, err := app.New(app.Options{Config: cfg, Inverter: inv, Logger: cmd.flags.Logger})
	if err != nil {
		return err
	}
	if c.Args().Present() {
		err := a.OpenPath(c.Args().First())
		var verr *invertify.ValidationError
		if err != nil && !errors.As(err, &verr) {
			return err
		}
	}
	return a.Run()
}
