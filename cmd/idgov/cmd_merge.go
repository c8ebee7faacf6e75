package main

import (
	"io/ioutil"

	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ptb"
	"github.com/urfave/cli/v2"
)

var mergeCommand = &cli.Command{
	Name:      "merge",
	Usage:     "merge serialized fragments into a single one written to stdout",
	ArgsUsage: "<fragment> [<fragment>...]",
	Description: `Fragments are merged in the given order. Equal inputs are shared
and result references of every fragment are shifted past the commands of the
fragments before it.`,
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return errors.ErrInput.New("at least one fragment file is required")
		}
		fragments := make([]*ptb.Fragment, 0, c.NArg())
		for _, path := range c.Args().Slice() {
			raw, err := ioutil.ReadFile(path)
			if err != nil {
				return errors.Wrap(errors.ErrInput, err.Error())
			}
			f, err := ptb.Unmarshal(raw)
			if err != nil {
				return errors.Wrapf(err, "fragment %s", path)
			}
			fragments = append(fragments, f)
		}
		merged, err := mergeFragments(fragments)
		if err != nil {
			return err
		}
		raw, err := ptb.Marshal(merged)
		if err != nil {
			return err
		}
		_, err = c.App.Writer.Write(raw)
		return err
	},
}

func mergeFragments(fragments []*ptb.Fragment) (*ptb.Fragment, error) {
	b := ptb.NewBuilder()
	for i, f := range fragments {
		if err := b.Merge(f, nil); err != nil {
			return nil, errors.Wrapf(err, "fragment %d", i)
		}
	}
	return b.Finish(), nil
}
