package config

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Usage is the positional argument synopsis.
const Usage = "Usage: stress_client <uri> <num_batches> <batch_size>"

// ErrInvalidArgument is returned for a positional count that is not a number.
var ErrInvalidArgument = errors.New("invalid argument")

// ApplyArgs overrides the target from positional arguments
// <uri> <num_batches> <batch_size>. With any other argument count it writes
// Usage to out and leaves the target untouched.
func (c *Config) ApplyArgs(args []string, out io.Writer) error {
	if len(args) != 3 {
		fmt.Fprintln(out, Usage)
		return nil
	}

	numBatches, err := parseCount("num_batches", args[1])
	if err != nil {
		return err
	}
	batchSize, err := parseCount("batch_size", args[2])
	if err != nil {
		return err
	}

	c.Target.URI = args[0]
	c.Target.NumBatches = numBatches
	c.Target.BatchSize = batchSize
	return nil
}

func parseCount(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrInvalidArgument, name, s)
	}
	return n, nil
}
