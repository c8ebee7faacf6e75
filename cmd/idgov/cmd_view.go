package main

import (
	"fmt"
	"io"
	"io/ioutil"

	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ptb"
	"github.com/urfave/cli/v2"
)

var viewCommand = &cli.Command{
	Name:      "view",
	Usage:     "decode a serialized fragment read from stdin and print it",
	ArgsUsage: " ",
	Action: func(c *cli.Context) error {
		raw, err := ioutil.ReadAll(c.App.Reader)
		if err != nil {
			return errors.Wrap(errors.ErrInput, err.Error())
		}
		f, err := ptb.Unmarshal(raw)
		if err != nil {
			return err
		}
		return printFragment(c.App.Writer, f)
	},
}

func printFragment(w io.Writer, f *ptb.Fragment) error {
	if _, err := fmt.Fprintf(w, "inputs:\n"); err != nil {
		return err
	}
	for i, in := range f.Inputs {
		fmt.Fprintf(w, "  %d: %s\n", i, in)
	}
	fmt.Fprintf(w, "commands:\n")
	for i, cmd := range f.Commands {
		fmt.Fprintf(w, "  %d: %v\n", i, cmd)
	}
	return nil
}
