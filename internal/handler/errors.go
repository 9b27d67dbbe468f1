package handler

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return "Unknown command - " + e.Name
}

func (e *UnknownCommandError) Is(target error) bool { return target == ErrUnknownCommand }

type MissingArgumentError struct {
	Command  string
	Argument string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("%s: %s is not specified", e.Command, e.Argument)
}

func (e *MissingArgumentError) Is(target error) bool { return target == ErrMissingArgument }

// InvalidArgumentError reports an argument that did not parse into its
// expected type.
type InvalidArgumentError struct {
	Command  string
	Argument string
	Value    string
	Err      error
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: %s must be an integer, got %q", e.Command, e.Argument, e.Value)
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

func (e *InvalidArgumentError) Unwrap() error { return e.Err }
