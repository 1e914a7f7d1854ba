package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/liamcoop/greenscore/failure"
)

// Exit codes by failure kind.
const (
	ExitSuccess       = 0
	ExitMalformed     = 1 // the input record or file is malformed
	ExitConfiguration = 2 // no usable model, bad config or parameters
	ExitTrainingData  = 3 // the training set cannot be fit
	ExitError         = 4
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, failure.ErrMalformedInput):
		return ExitMalformed
	case errors.Is(err, failure.ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, failure.ErrTrainingData):
		return ExitTrainingData
	default:
		return ExitError
	}
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
