package ptb

import (
	"fmt"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
)

// Fragment is an ordered list of inputs and commands. A fragment can be
// executed as a whole transaction or merged into another fragment.
type Fragment struct {
	Inputs   []Input
	Commands []Command
}

// IsEmpty returns true if the fragment has no commands.
func (f *Fragment) IsEmpty() bool {
	return f == nil || len(f.Commands) == 0
}

// Validate ensures that every argument resolves to an index valid at the
// moment it is consumed. Inputs must exist and results may reference earlier
// commands only.
func (f *Fragment) Validate() error {
	var errs error
	for i, c := range f.Commands {
		if c == nil {
			errs = errors.AppendField(errs, fmt.Sprintf("Commands.%d", i), errors.ErrTransactionBuilding.New("nil command"))
			continue
		}
		for j, a := range c.Arguments() {
			if err := f.validateArgument(a, i); err != nil {
				errs = errors.AppendField(errs, fmt.Sprintf("Commands.%d.Arguments.%d", i, j), err)
			}
		}
	}
	return errs
}

func (f *Fragment) validateArgument(a Argument, position int) error {
	switch a.Kind {
	case GasCoinArg:
		return nil
	case InputArg:
		if int(a.Index) >= len(f.Inputs) {
			return errors.ErrTransactionBuilding.Newf("%s: only %d inputs", a, len(f.Inputs))
		}
		return nil
	case ResultArg, NestedResultArg:
		if int(a.Index) >= position {
			return errors.ErrTransactionBuilding.Newf("%s: forward reference from command %d", a, position)
		}
		return nil
	}
	return errors.ErrTransactionBuilding.Newf("unknown argument kind %d", a.Kind)
}

// Builder composes a fragment. Builder is not safe for concurrent use.
type Builder struct {
	inputs   []Input
	commands []Command
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Input adds an input and returns an argument referencing it. An input equal
// to an already added one is not added again. A shared object used more than
// once is accessed mutably if any use requires it.
func (b *Builder) Input(in Input) (Argument, error) {
	for i, existing := range b.inputs {
		if existing.Equal(in) {
			return InputAt(uint16(i)), nil
		}
		if in.Kind != ObjectInput || existing.Kind != ObjectInput || existing.Object.Ref.ID != in.Object.Ref.ID {
			continue
		}
		if in.Object.Kind == SharedObject && existing.Object.Kind == SharedObject && in.Object.InitialSharedVersion == existing.Object.InitialSharedVersion {
			b.inputs[i].Object.Mutable = existing.Object.Mutable || in.Object.Mutable
			return InputAt(uint16(i)), nil
		}
		return Argument{}, errors.WithObject(
			errors.ErrTransactionBuilding.Newf("conflicting use of an object: %s and %s", existing, in),
			"object", in.Object.Ref.ID)
	}
	switch in.Kind {
	case PureInput, ObjectInput:
	default:
		return Argument{}, errors.ErrTransactionBuilding.Newf("unknown input kind %d", in.Kind)
	}
	b.inputs = append(b.inputs, in)
	return InputAt(uint16(len(b.inputs) - 1)), nil
}

// Pure adds a plain value input.
func (b *Builder) Pure(v interface{}) (Argument, error) {
	raw, err := EncodePure(v)
	if err != nil {
		return Argument{}, err
	}
	return b.Input(PureValue(raw))
}

// Object adds an object input.
func (b *Builder) Object(arg ObjectArg) (Argument, error) {
	return b.Input(ObjectValue(arg))
}

// Command appends a command and returns an argument referencing its result.
func (b *Builder) Command(c Command) Argument {
	b.commands = append(b.commands, c)
	return Result(uint16(len(b.commands) - 1))
}

// MoveCall appends a contract function call.
func (b *Builder) MoveCall(pkg idgov.ObjectID, module, function string, typeArgs []string, args ...Argument) Argument {
	return b.Command(MoveCall{
		Package:       pkg,
		Module:        module,
		Function:      function,
		TypeArguments: typeArgs,
		Args:          args,
	})
}

// TransferObjects appends a transfer of given objects to recipient.
func (b *Builder) TransferObjects(objects []Argument, recipient Argument) Argument {
	return b.Command(TransferObjects{Objects: objects, Address: recipient})
}

// TransferArg transfers a single object to an address.
func (b *Builder) TransferArg(recipient idgov.Address, object Argument) error {
	to, err := b.Pure(recipient)
	if err != nil {
		return err
	}
	b.TransferObjects([]Argument{object}, to)
	return nil
}

// Len returns the number of commands added so far.
func (b *Builder) Len() int {
	return len(b.commands)
}

// Finish returns the composed fragment. The builder can still be used
// afterwards and does not share memory with the result.
func (b *Builder) Finish() *Fragment {
	f := &Fragment{
		Inputs:   make([]Input, len(b.inputs)),
		Commands: make([]Command, len(b.commands)),
	}
	copy(f.Inputs, b.inputs)
	copy(f.Commands, b.commands)
	return f
}
