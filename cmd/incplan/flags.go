package main

import (
	"fmt"
	"strconv"

	"incplan/internal/incremental"
)

// imaxValue is the --imax flag: a non-negative step count or "none".
type imaxValue struct {
	n *int
}

func (v *imaxValue) String() string {
	if v.n == nil {
		return "none"
	}
	return strconv.Itoa(*v.n)
}

func (v *imaxValue) Set(s string) error {
	if s == "none" {
		v.n = nil
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("want a step count or none, got %q", s)
	}
	if n < 0 {
		return fmt.Errorf("value too small: %d", n)
	}
	v.n = &n
	return nil
}

func (v *imaxValue) Type() string { return "n|none" }

// istopValue is the --istop flag.
type istopValue struct {
	c incremental.StopCondition
}

func (v *istopValue) String() string { return string(v.c) }

func (v *istopValue) Set(s string) error {
	c, err := incremental.ParseStopCondition(s)
	if err != nil {
		return err
	}
	v.c = c
	return nil
}

func (v *istopValue) Type() string { return "SAT|UNSAT|UNKNOWN" }
