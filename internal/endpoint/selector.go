package endpoint

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Selector picks one descriptor among the candidate files of a directory.
// A nil Index means the operator is prompted on In.
type Selector struct {
	Dir    string
	Suffix string
	Index  *int
	In     io.Reader
	Out    io.Writer
}

// Select returns the chosen descriptor. ok is false when the operator declined
// or no candidate could be offered without a prompt.
func (s *Selector) Select(ctx context.Context) (Descriptor, bool, error) {
	dir := s.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	candidates, err := Find(dir, s.Suffix)
	if err != nil {
		return Descriptor{}, false, &ConfigurationError{Path: dir, Reason: err.Error()}
	}

	if s.Index != nil {
		idx := *s.Index
		if idx < 0 || idx >= len(candidates) {
			return Descriptor{}, false, &ConfigurationError{
				Path:   dir,
				Field:  "endpoint",
				Reason: fmt.Sprintf("index %d out of range (%d candidates)", idx, len(candidates)),
			}
		}
		d, err := Load(candidates[idx])
		if err != nil {
			return Descriptor{}, false, err
		}
		return d, true, nil
	}

	path, ok := s.prompt(ctx, candidates)
	if !ok {
		return Descriptor{}, false, nil
	}
	d, err := Load(path)
	if err != nil {
		return Descriptor{}, false, err
	}
	return d, true, nil
}

// prompt loops until the operator enters a valid index or an existing path.
func (s *Selector) prompt(ctx context.Context, candidates []string) (string, bool) {
	in := s.In
	if in == nil {
		in = os.Stdin
	}
	out := s.Out
	if out == nil {
		out = io.Discard
	}
	scanner := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return "", false
		}
		if len(candidates) > 0 {
			fmt.Fprintln(out, "Configuration Files:")
			for i, c := range candidates {
				fmt.Fprintf(out, "  %d : %s\n", i, c)
			}
		}
		fmt.Fprint(out, "enter selection (q to quit): ")
		if !scanner.Scan() {
			return "", false
		}
		answer := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(answer) {
		case "q", "quit", "exit":
			return "", false
		case "":
			continue
		}
		if idx, err := strconv.Atoi(answer); err == nil {
			if idx >= 0 && idx < len(candidates) {
				return candidates[idx], true
			}
			continue
		}
		if info, err := os.Stat(answer); err == nil && !info.IsDir() {
			return answer, true
		}
	}
}

// Static is a source that always yields the same descriptor.
type Static struct {
	Descriptor Descriptor
}

// Select validates and returns the configured descriptor.
func (s Static) Select(context.Context) (Descriptor, bool, error) {
	if err := s.Descriptor.Validate(); err != nil {
		return Descriptor{}, false, err
	}
	return s.Descriptor, true, nil
}
