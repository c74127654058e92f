package supervisor

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func collect(t *testing.T, ch <-chan Line) []Line {
	t.Helper()
	var got []Line
	timeout := time.After(5 * time.Second)
	for {
		select {
		case l, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, l)
		case <-timeout:
			t.Fatalf("line channel not closed; got %v so far", got)
		}
	}
}

func reader(s string) io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }

func opts(o Ordering) readerOptions {
	return readerOptions{ordering: o, buffer: 16, maxLine: 1024}
}

func TestLineReaderSequentialDrainsStdoutFirst(t *testing.T) {
	done := make(chan struct{})
	ch := startLineReader(reader("a\nb\n"), reader("x\ny\n"), opts(Sequential), done)

	assert.Equal(t, []Line{
		{Stdout, "a"},
		{Stdout, "b"},
		{Stderr, "x"},
		{Stderr, "y"},
	}, collect(t, ch))
}

func TestLineReaderSequentialWaitsForStdoutEOF(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	outR, outW := io.Pipe()
	done := make(chan struct{})
	ch := startLineReader(outR, reader("err\n"), opts(Sequential), done)

	_, err := io.WriteString(outW, "first\n")
	require.NoError(t, err)
	assert.Equal(t, Line{Stdout, "first"}, <-ch)

	select {
	case l := <-ch:
		t.Fatalf("stderr delivered while stdout still open: %v", l)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, outW.Close())
	assert.Equal(t, []Line{{Stderr, "err"}}, collect(t, ch))
}

func TestLineReaderInterleavedDeliversBoth(t *testing.T) {
	outR, outW := io.Pipe()
	done := make(chan struct{})
	ch := startLineReader(outR, reader("err-1\nerr-2\n"), opts(Interleaved), done)

	// stderr arrives while stdout is still open.
	assert.Equal(t, Line{Stderr, "err-1"}, <-ch)
	assert.Equal(t, Line{Stderr, "err-2"}, <-ch)

	_, err := io.WriteString(outW, "out-1\n")
	require.NoError(t, err)
	require.NoError(t, outW.Close())

	assert.Equal(t, []Line{{Stdout, "out-1"}}, collect(t, ch))
}

func TestLineReaderStripsCRLFAndKeepsPartialLastLine(t *testing.T) {
	ch := startLineReader(reader("one\r\ntwo"), reader(""), opts(Interleaved), make(chan struct{}))
	assert.Equal(t, []Line{{Stdout, "one"}, {Stdout, "two"}}, collect(t, ch))
}

func TestLineReaderStopsOnInvalidUTF8(t *testing.T) {
	ch := startLineReader(reader("ok\n\xff\xfe\nlater\n"), reader("e\n"), opts(Sequential), make(chan struct{}))
	// Sequential mode gives up on stderr too once stdout fails.
	assert.Equal(t, []Line{{Stdout, "ok"}}, collect(t, ch))
}

func TestLineReaderStopsOnOverlongLine(t *testing.T) {
	long := strings.Repeat("x", 2048)
	ch := startLineReader(reader("short\n"+long+"\nafter\n"), reader(""), opts(Interleaved), make(chan struct{}))
	assert.Equal(t, []Line{{Stdout, "short"}}, collect(t, ch))
}

func TestLineReaderExitsWhenConsumerGone(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	outR, outW := io.Pipe()
	done := make(chan struct{})
	ch := startLineReader(outR, reader(""), readerOptions{ordering: Interleaved, buffer: 0, maxLine: 1024}, done)

	writeErr := make(chan error, 1)
	go func() {
		for {
			if _, err := io.WriteString(outW, "nobody reads this\n"); err != nil {
				writeErr <- err
				return
			}
		}
	}()

	close(done)

	// The reader closes its end, so the writer sees a closed pipe.
	select {
	case err := <-writeErr:
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	case <-time.After(5 * time.Second):
		t.Fatal("writer still blocked after consumer went away")
	}
	for range ch {
	}
}

func TestStreamString(t *testing.T) {
	assert.Equal(t, "stdout", Stdout.String())
	assert.Equal(t, "stderr", Stderr.String())
}
