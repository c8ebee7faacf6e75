package ptb

import (
	"fmt"
	"strings"

	"github.com/iov-one/idgov"
)

// Command is a single step of a transaction. Commands consume arguments and
// produce results that later commands can reference.
type Command interface {
	// Arguments returns all arguments the command consumes, in order.
	Arguments() []Argument

	// mapArguments returns a copy of the command with every argument
	// replaced by fn(argument).
	mapArguments(fn func(Argument) Argument) Command
}

// MoveCall calls a contract function.
type MoveCall struct {
	Package       idgov.ObjectID
	Module        string
	Function      string
	TypeArguments []string
	Args          []Argument
}

var _ Command = MoveCall{}

func (c MoveCall) Arguments() []Argument {
	return c.Args
}

func (c MoveCall) mapArguments(fn func(Argument) Argument) Command {
	c.Args = mapAll(c.Args, fn)
	c.TypeArguments = append([]string(nil), c.TypeArguments...)
	return c
}

// Target returns the "module::function" path of the call.
func (c MoveCall) Target() string {
	return c.Module + "::" + c.Function
}

func (c MoveCall) String() string {
	var typeArgs string
	if len(c.TypeArguments) > 0 {
		typeArgs = "<" + strings.Join(c.TypeArguments, ", ") + ">"
	}
	return fmt.Sprintf("MoveCall(%s::%s%s%s)", c.Package, c.Target(), typeArgs, argsString(c.Args))
}

// TransferObjects sends objects to an address.
type TransferObjects struct {
	Objects []Argument
	Address Argument
}

var _ Command = TransferObjects{}

func (c TransferObjects) Arguments() []Argument {
	return append(append([]Argument(nil), c.Objects...), c.Address)
}

func (c TransferObjects) mapArguments(fn func(Argument) Argument) Command {
	c.Objects = mapAll(c.Objects, fn)
	c.Address = fn(c.Address)
	return c
}

func (c TransferObjects) String() string {
	return fmt.Sprintf("TransferObjects(%s, %s)", argsString(c.Objects), c.Address)
}

// SplitCoins splits amounts off a coin.
type SplitCoins struct {
	Coin    Argument
	Amounts []Argument
}

var _ Command = SplitCoins{}

func (c SplitCoins) Arguments() []Argument {
	return append([]Argument{c.Coin}, c.Amounts...)
}

func (c SplitCoins) mapArguments(fn func(Argument) Argument) Command {
	c.Coin = fn(c.Coin)
	c.Amounts = mapAll(c.Amounts, fn)
	return c
}

func (c SplitCoins) String() string {
	return fmt.Sprintf("SplitCoins(%s, %s)", c.Coin, argsString(c.Amounts))
}

// MergeCoins merges coins into a destination coin.
type MergeCoins struct {
	Destination Argument
	Sources     []Argument
}

var _ Command = MergeCoins{}

func (c MergeCoins) Arguments() []Argument {
	return append([]Argument{c.Destination}, c.Sources...)
}

func (c MergeCoins) mapArguments(fn func(Argument) Argument) Command {
	c.Destination = fn(c.Destination)
	c.Sources = mapAll(c.Sources, fn)
	return c
}

func (c MergeCoins) String() string {
	return fmt.Sprintf("MergeCoins(%s, %s)", c.Destination, argsString(c.Sources))
}

// MakeMoveVec builds a vector out of elements. Type is required when the
// vector is empty.
type MakeMoveVec struct {
	Type     string
	Elements []Argument
}

var _ Command = MakeMoveVec{}

func (c MakeMoveVec) Arguments() []Argument {
	return c.Elements
}

func (c MakeMoveVec) mapArguments(fn func(Argument) Argument) Command {
	c.Elements = mapAll(c.Elements, fn)
	return c
}

func (c MakeMoveVec) String() string {
	return fmt.Sprintf("MakeMoveVec<%s>%s", c.Type, argsString(c.Elements))
}

func mapAll(args []Argument, fn func(Argument) Argument) []Argument {
	if args == nil {
		return nil
	}
	res := make([]Argument, len(args))
	for i, a := range args {
		res[i] = fn(a)
	}
	return res
}

func argsString(args []Argument) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
