package supervisor

import (
	"bufio"
	"io"
	"sync"
	"unicode/utf8"
)

// Stream identifies which output of the child a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Line is one line of child output without its terminator.
type Line struct {
	Stream Stream
	Text   string
}

// Ordering selects how the two output streams are read.
type Ordering string

const (
	Interleaved Ordering = "interleaved"
	Sequential  Ordering = "sequential"
)

type readerOptions struct {
	ordering Ordering
	buffer   int
	maxLine  int
}

// startLineReader reads stdout and stderr on their own goroutines and returns
// the channel they feed. The channel is closed after every reader has stopped.
// Readers stop at EOF, on a read error, on a line that is not valid UTF-8, on
// a line longer than maxLine, or once done is closed; each closes its stream
// on the way out.
func startLineReader(stdout, stderr io.ReadCloser, opts readerOptions, done <-chan struct{}) <-chan Line {
	out := make(chan Line, opts.buffer)

	if opts.ordering == Sequential {
		go func() {
			defer close(out)
			if !forwardLines(stdout, Stdout, out, done, opts.maxLine) {
				_ = stderr.Close()
				return
			}
			forwardLines(stderr, Stderr, out, done, opts.maxLine)
		}()
		return out
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		forwardLines(stdout, Stdout, out, done, opts.maxLine)
	}()
	go func() {
		defer wg.Done()
		forwardLines(stderr, Stderr, out, done, opts.maxLine)
	}()
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// forwardLines reports whether r reached a clean EOF.
func forwardLines(r io.ReadCloser, s Stream, out chan<- Line, done <-chan struct{}, maxLine int) bool {
	defer r.Close()

	sc := bufio.NewScanner(r)
	initial := 64 * 1024
	if maxLine < initial {
		initial = maxLine
	}
	sc.Buffer(make([]byte, 0, initial), maxLine)

	for sc.Scan() {
		text := sc.Text()
		if !utf8.ValidString(text) {
			return false
		}
		select {
		case out <- Line{Stream: s, Text: text}:
		case <-done:
			return false
		}
	}
	return sc.Err() == nil
}
