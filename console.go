package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/seqsense/scancloud/pcd/segmentation/extract"
)

type console struct {
	cmd *commandContext
}

var errArgumentNumber = errors.New("invalid number of arguments")
var errInvalidCommand = errors.New("invalid command")

var consoleCommands = map[string]func(cmd *commandContext, args []string) ([]string, error){
	"load": func(cmd *commandContext, args []string) ([]string, error) {
		if len(args) != 1 {
			return nil, errArgumentNumber
		}
		if err := cmd.Load(args[0]); err != nil {
			return nil, err
		}
		return []string{strconv.Itoa(cmd.pc.NumPoints())}, nil
	},
	"save": func(cmd *commandContext, args []string) ([]string, error) {
		if len(args) != 1 {
			return nil, errArgumentNumber
		}
		return nil, cmd.Save(args[0])
	},
	"info": func(cmd *commandContext, args []string) ([]string, error) {
		if len(args) != 0 {
			return nil, errArgumentNumber
		}
		info, err := cmd.Info()
		if err != nil {
			return nil, err
		}
		return formatInfo(info), nil
	},
	"normals": func(cmd *commandContext, args []string) ([]string, error) {
		if len(args) != 0 {
			return nil, errArgumentNumber
		}
		report, err := cmd.EstimateNormals()
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("%d %d", report.Degenerate, report.Components)}, nil
	},
	"downsample": func(cmd *commandContext, args []string) ([]string, error) {
		if len(args) != 0 {
			return nil, errArgumentNumber
		}
		before, after, err := cmd.Downsample()
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("%d %d", before, after)}, nil
	},
	"extract_objects": func(cmd *commandContext, args []string) ([]string, error) {
		if len(args) != 1 {
			return nil, errArgumentNumber
		}
		report, err := cmd.ExtractObjects(args[0])
		return formatFiles(report), err
	},
	"extract_labels": func(cmd *commandContext, args []string) ([]string, error) {
		if len(args) != 1 {
			return nil, errArgumentNumber
		}
		report, err := cmd.ExtractLabels(args[0])
		return formatFiles(report), err
	},
	"features": func(cmd *commandContext, args []string) ([]string, error) {
		if len(args) != 1 {
			return nil, errArgumentNumber
		}
		return nil, cmd.SaveFeatures(args[0])
	},
	"clear": func(cmd *commandContext, args []string) ([]string, error) {
		if len(args) != 0 {
			return nil, errArgumentNumber
		}
		return nil, cmd.Clear()
	},
	"undo": func(cmd *commandContext, args []string) ([]string, error) {
		if len(args) != 0 {
			return nil, errArgumentNumber
		}
		if !cmd.Undo() {
			return nil, errors.New("no history")
		}
		return []string{strconv.Itoa(cmd.pc.NumPoints())}, nil
	},
	"max_history": func(cmd *commandContext, args []string) ([]string, error) {
		switch len(args) {
		case 0:
		case 1:
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, err
			}
			cmd.SetMaxHistory(n)
		default:
			return nil, errArgumentNumber
		}
		return []string{strconv.Itoa(cmd.MaxHistory())}, nil
	},
}

func (c *console) Run(line string) (string, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return "", nil
	}
	fn, ok := consoleCommands[args[0]]
	if !ok {
		return "", errInvalidCommand
	}
	res, err := fn(c.cmd, args[1:])
	return strings.Join(res, "\n"), err
}

// Serve runs commands read from r line by line until EOF or "exit".
func (c *console) Serve(r io.Reader, w io.Writer) error {
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "exit" || line == "quit" {
			return nil
		}
		res, err := c.Run(line)
		if res != "" {
			fmt.Fprintln(w, res)
		}
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
	}
	return s.Err()
}

func formatInfo(info *cloudInfo) []string {
	return []string{
		fmt.Sprintf("points: %d", info.Points),
		fmt.Sprintf("min: %.3f %.3f %.3f", info.Min[0], info.Min[1], info.Min[2]),
		fmt.Sprintf("max: %.3f %.3f %.3f", info.Max[0], info.Max[1], info.Max[2]),
		fmt.Sprintf("objects: %d", info.Objects),
		fmt.Sprintf("labels: %d", info.Labels),
		fmt.Sprintf("segmented: %v", info.Segmented),
		fmt.Sprintf("normals: %v", info.HasNormals),
	}
}

func formatFiles(report *extract.Report) []string {
	if report == nil {
		return nil
	}
	var res []string
	for _, f := range report.Files {
		res = append(res, fmt.Sprintf("%s %d", f.Path, f.Points))
	}
	return res
}
