package ptb

import "fmt"

// ArgumentKind tells what an Argument refers to.
type ArgumentKind uint8

const (
	// GasCoinArg is the coin paying for the transaction.
	GasCoinArg ArgumentKind = iota + 1
	// InputArg refers to a transaction input.
	InputArg
	// ResultArg refers to the single result of an earlier command.
	ResultArg
	// NestedResultArg refers to one of several results of an earlier
	// command.
	NestedResultArg
)

// Argument references a value available to a command.
type Argument struct {
	Kind ArgumentKind
	// Index is the input index for InputArg and the command index for
	// ResultArg and NestedResultArg.
	Index uint16
	// Nested is the result position for NestedResultArg.
	Nested uint16
}

// GasCoin returns the gas coin argument.
func GasCoin() Argument {
	return Argument{Kind: GasCoinArg}
}

// InputAt returns an argument referencing input i.
func InputAt(i uint16) Argument {
	return Argument{Kind: InputArg, Index: i}
}

// Result returns an argument referencing the result of command i.
func Result(i uint16) Argument {
	return Argument{Kind: ResultArg, Index: i}
}

// NestedResult returns an argument referencing result j of command i.
func NestedResult(i, j uint16) Argument {
	return Argument{Kind: NestedResultArg, Index: i, Nested: j}
}

func (a Argument) String() string {
	switch a.Kind {
	case GasCoinArg:
		return "GasCoin"
	case InputArg:
		return fmt.Sprintf("Input(%d)", a.Index)
	case ResultArg:
		return fmt.Sprintf("Result(%d)", a.Index)
	case NestedResultArg:
		return fmt.Sprintf("NestedResult(%d, %d)", a.Index, a.Nested)
	}
	return fmt.Sprintf("Argument(%d)", a.Kind)
}
