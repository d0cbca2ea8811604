// Package main is the scancloud command.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/seqsense/scancloud/config"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagCompress = "compress"
)

type app struct {
	cfg    *config.Config
	logger golog.Logger
	stdin  io.Reader
	stdout io.Writer
}

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	a := &app{stdin: stdin, stdout: stdout}
	return &cli.App{
		Name:      "scancloud",
		Usage:     "process scan point clouds",
		Writer:    stdout,
		ErrWriter: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "print point cloud summary",
				ArgsUsage: "IN",
				Action:    a.info,
			},
			{
				Name:      "convert",
				Usage:     "convert between scan, ism and pcd files",
				ArgsUsage: "IN OUT",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagCompress,
						Usage: "write compressed scan body",
					},
				},
				Action: a.convert,
			},
			{
				Name:      "normals",
				Usage:     "estimate and orient normals",
				ArgsUsage: "IN OUT",
				Action: a.transform(func(cmd *commandContext) error {
					report, err := cmd.EstimateNormals()
					if err != nil {
						return err
					}
					fmt.Fprintf(a.stdout, "degenerate: %d\ncomponents: %d\n", report.Degenerate, report.Components)
					return nil
				}),
			},
			{
				Name:      "downsample",
				Usage:     "remove points on flat areas",
				ArgsUsage: "IN OUT",
				Action: a.transform(func(cmd *commandContext) error {
					before, after, err := cmd.Downsample()
					if err != nil {
						return err
					}
					fmt.Fprintf(a.stdout, "%d -> %d\n", before, after)
					return nil
				}),
			},
			{
				Name:      "features",
				Usage:     "export per-point geometric features as PCD",
				ArgsUsage: "IN OUT",
				Action: a.withInput(2, func(cmd *commandContext, args cli.Args) error {
					return cmd.SaveFeatures(args.Get(1))
				}),
			},
			{
				Name:      "extract-objects",
				Usage:     "write one scan file per object id",
				ArgsUsage: "ISM DIR",
				Action: a.withInput(2, func(cmd *commandContext, args cli.Args) error {
					report, err := cmd.ExtractObjects(args.Get(1))
					a.printLines(formatFiles(report))
					return err
				}),
			},
			{
				Name:      "extract-labels",
				Usage:     "write one scan file per label id",
				ArgsUsage: "ISM DIR",
				Action: a.withInput(2, func(cmd *commandContext, args cli.Args) error {
					report, err := cmd.ExtractLabels(args.Get(1))
					a.printLines(formatFiles(report))
					return err
				}),
			},
			{
				Name:   "console",
				Usage:  "run line commands read from stdin",
				Action: a.console,
			},
		},
	}
}

func (a *app) before(c *cli.Context) error {
	if c.Bool(flagDebug) {
		a.logger = golog.NewDevelopmentLogger("scancloud")
	} else {
		a.logger = golog.NewLogger("scancloud")
	}
	if path := c.String(flagConfig); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return errors.Wrap(err, "loading config")
		}
		a.cfg = cfg
	} else {
		a.cfg = config.Default()
	}
	return nil
}

func (a *app) newCommandContext() *commandContext {
	return newCommandContext(a.cfg, a.logger)
}

func (a *app) printLines(lines []string) {
	for _, l := range lines {
		fmt.Fprintln(a.stdout, l)
	}
}

// withInput loads the first argument before calling fn.
func (a *app) withInput(nArgs int, fn func(cmd *commandContext, args cli.Args) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != nArgs {
			return errors.Errorf("expected %d arguments, got %d", nArgs, c.NArg())
		}
		cmd := a.newCommandContext()
		if err := cmd.Load(c.Args().First()); err != nil {
			return err
		}
		return fn(cmd, c.Args())
	}
}

// transform loads IN, applies fn and saves the result to OUT.
func (a *app) transform(fn func(cmd *commandContext) error) cli.ActionFunc {
	return a.withInput(2, func(cmd *commandContext, args cli.Args) error {
		if err := fn(cmd); err != nil {
			return err
		}
		return cmd.Save(args.Get(1))
	})
}

func (a *app) info(c *cli.Context) error {
	return a.withInput(1, func(cmd *commandContext, _ cli.Args) error {
		info, err := cmd.Info()
		if err != nil {
			return err
		}
		a.printLines(formatInfo(info))
		return nil
	})(c)
}

func (a *app) convert(c *cli.Context) error {
	if c.IsSet(flagCompress) {
		a.cfg.Output.Compress = c.Bool(flagCompress)
	}
	return a.transform(func(*commandContext) error { return nil })(c)
}

func (a *app) console(c *cli.Context) error {
	con := &console{cmd: a.newCommandContext()}
	return con.Serve(a.stdin, a.stdout)
}
