package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/soypat/invertify"
	"github.com/soypat/invertify/session"
	"github.com/urfave/cli/v3"
	imgclip "golang.design/x/clipboard"
)

type InvertCmd struct {
	flags     *Flags
	out       string
	gpu       bool
	copyPath  bool
	copyImage bool
}

// NewInvertCmd creates a new invert command.
func NewInvertCmd(flags *Flags) *InvertCmd {
	return &InvertCmd{flags: flags}
}

// Register adds the invert command to the application.
func (cmd *InvertCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "invert",
		Usage:     "Invert the colors of an image",
		UsageText: "invertify invert [options] FILE",
		Description: `Inverts the red, green and blue channels of a JPG, PNG or GIF image and
writes the result as <name>_inverted.png. Transparency is preserved.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output directory (defaults to output.dir, then the source directory)",
				Destination: &cmd.out,
			},
			&cli.BoolFlag{
				Name:        "gpu",
				Usage:       "invert on the GPU when an adapter is available",
				Sources:     cli.EnvVars("INVERTIFY_GPU"),
				Destination: &cmd.gpu,
			},
			&cli.BoolFlag{
				Name:        "copy-path",
				Usage:       "copy the output path to the clipboard",
				Destination: &cmd.copyPath,
			},
			&cli.BoolFlag{
				Name:        "copy-image",
				Usage:       "copy the inverted image to the clipboard",
				Destination: &cmd.copyImage,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *InvertCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one FILE argument, got %d", c.Args().Len())
	}
	src := c.Args().First()
	cfg := cmd.flags.Config

	inv, closeInv := newInverter(cmd.gpu || cfg.Engine.GPU, cmd.flags.Logger)
	defer closeInv()

	ctrl, err := session.NewController(session.Config{
		Policy:   cfg.Policy(),
		Encode:   cfg.EncodeOptions(),
		Limits:   cfg.Limits(),
		Inverter: inv,
		Logger:   cmd.flags.Logger,
	})
	if err != nil {
		return err
	}
	defer ctrl.Reset()

	f, err := session.FileFromPath(src, cfg.Upload.MaxBytes)
	if err != nil {
		return err
	}
	if err := ctrl.Select(f); err != nil {
		return userError(err)
	}
	if err := ctrl.Wait(ctx); err != nil {
		return userError(err)
	}
	name, data, err := ctrl.Download()
	if err != nil {
		return err
	}

	dir := cmd.out
	if dir == "" {
		dir = cfg.Output.Dir
	}
	if dir == "" {
		dir = filepath.Dir(src)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	dst := filepath.Join(dir, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	cmd.flags.Logger.Info().Str("src", src).Str("dst", dst).Int("bytes", len(data)).Msg("exported image")
	fmt.Fprintln(c.Root().Writer, dst)

	if cmd.copyPath {
		if err := clipboard.WriteAll(dst); err != nil {
			return fmt.Errorf("copy path: %w", err)
		}
	}
	if cmd.copyImage {
		if err := imgclip.Init(); err != nil {
			return fmt.Errorf("copy image: %w", err)
		}
		<-imgclip.Write(imgclip.FmtImage, data)
	}
	return nil
}

// userError prefixes err with the message shown to users for its kind.
func userError(err error) error {
	return fmt.Errorf("%s: %w", invertify.UserMessage(err), err)
}
