package supervisor

import "strings"

// outputBuffer accumulates one generation's output. It only grows.
type outputBuffer struct {
	stdout strings.Builder
	stderr strings.Builder
}

func (o *outputBuffer) append(l Line) {
	dst := &o.stdout
	if l.Stream == Stderr {
		dst = &o.stderr
	}
	dst.WriteString(l.Text)
	dst.WriteByte('\n')
}

// drainFrom moves every line already queued on lines into the buffer without
// blocking. It returns false once lines has been closed and emptied.
func (o *outputBuffer) drainFrom(lines <-chan Line) bool {
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				return false
			}
			o.append(l)
		default:
			return true
		}
	}
}
