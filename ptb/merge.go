package ptb

import (
	"github.com/iov-one/idgov/errors"
)

// Replacement tells Merge to resolve every incoming input equal to Input to
// Argument instead of adding it to the base fragment.
type Replacement struct {
	Input    Input
	Argument Argument
}

// Merge appends all commands of incoming to the builder.
//
// Each incoming input equal to a replacement input resolves to the
// replacement argument. All other inputs are added to the builder. Results
// referenced by incoming commands are shifted by the number of commands the
// builder held before the merge, gas coin references are kept as they are.
// Merging a fragment without commands is a no-op. A failed merge leaves the
// builder unchanged.
func (b *Builder) Merge(incoming *Fragment, replacements []Replacement) error {
	if incoming.IsEmpty() {
		return nil
	}
	if err := incoming.Validate(); err != nil {
		return errors.Wrap(err, "incoming fragment")
	}
	for i, r := range replacements {
		if err := b.validateArgument(r.Argument); err != nil {
			return errors.Wrapf(err, "replacement %d", i)
		}
	}

	scratch := &Builder{inputs: append([]Input(nil), b.inputs...)}
	inputs := make([]Argument, len(incoming.Inputs))
nextInput:
	for i, in := range incoming.Inputs {
		for _, r := range replacements {
			if r.Input.Equal(in) {
				inputs[i] = r.Argument
				continue nextInput
			}
		}
		arg, err := scratch.Input(in)
		if err != nil {
			return errors.Wrapf(err, "incoming input %d", i)
		}
		inputs[i] = arg
	}

	// A valid fragment never references a result from its first command,
	// so shifting every result reference is the same as rewriting only the
	// inputs of the first command.
	offset := uint16(len(b.commands))
	remap := func(a Argument) Argument {
		switch a.Kind {
		case InputArg:
			return inputs[a.Index]
		case ResultArg, NestedResultArg:
			a.Index += offset
		}
		return a
	}
	commands := make([]Command, 0, len(b.commands)+len(incoming.Commands))
	commands = append(commands, b.commands...)
	for _, c := range incoming.Commands {
		commands = append(commands, c.mapArguments(remap))
	}
	b.inputs, b.commands = scratch.inputs, commands
	return nil
}

func (b *Builder) validateArgument(a Argument) error {
	f := Fragment{Inputs: b.inputs, Commands: b.commands}
	return f.validateArgument(a, len(b.commands))
}
