/*
Package ptb composes programmable transactions.

A transaction is a Fragment: an ordered list of inputs and an ordered list of
commands. Commands consume arguments referencing inputs, results of earlier
commands or the gas coin. Builder appends inputs and commands and Merge
appends an independently built fragment, remapping its inputs and shifting its
result references.
*/
package ptb
