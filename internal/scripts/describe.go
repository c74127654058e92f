package scripts

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

func markdownRenderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdown
}

// Description is the human-readable header of a script: the comment block
// directly after the shebang, written in markdown.
type Description struct {
	Summary  string `json:"summary"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

// Describe reads the leading comment block of the script at path.
// A script without one gets an empty Description.
func Describe(path string) (Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return Description{}, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	src := leadingComment(bufio.NewScanner(f))
	return Render(src)
}

// Render converts markdown to a Description.
func Render(src string) (Description, error) {
	d := Description{Markdown: src}
	for _, line := range strings.Split(src, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			d.Summary = strings.TrimLeft(s, "# ")
			break
		}
	}
	if src == "" {
		return d, nil
	}

	var buf bytes.Buffer
	if err := markdownRenderer().Convert([]byte(src), &buf); err != nil {
		return d, fmt.Errorf("render description: %w", err)
	}
	d.HTML = buf.String()
	return d, nil
}

func leadingComment(sc *bufio.Scanner) string {
	var lines []string
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "#!") {
				continue
			}
		}
		if !strings.HasPrefix(line, "#") {
			break
		}
		line = strings.TrimPrefix(line, "#")
		line = strings.TrimPrefix(line, " ")
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
