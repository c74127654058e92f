package scripts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantSummary string
		wantHTML    []string
	}{
		{
			name:        "shebang then comment block",
			body:        "#!/bin/bash\n# Builds the **frontend**.\n#\n# - runs npm\nnpm run build\n# trailing comment ignored\n",
			wantSummary: "Builds the **frontend**.",
			wantHTML:    []string{"<strong>frontend</strong>", "<li>runs npm</li>"},
		},
		{
			name:        "no shebang",
			body:        "# # Heading\necho hi\n",
			wantSummary: "Heading",
			wantHTML:    []string{"<h1>Heading</h1>"},
		},
		{
			name: "no comments",
			body: "#!/bin/sh\necho hi\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScript(t, t.TempDir(), "s.sh", tt.body, 0o755)

			d, err := Describe(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSummary, d.Summary)
			for _, frag := range tt.wantHTML {
				assert.True(t, strings.Contains(d.HTML, frag), "html %q missing %q", d.HTML, frag)
			}
			if len(tt.wantHTML) == 0 {
				assert.Empty(t, d.HTML)
			}
			assert.NotContains(t, d.Markdown, "trailing comment")
		})
	}
}

func TestDescribeMissingFile(t *testing.T) {
	_, err := Describe("/nonexistent/script.sh")
	assert.Error(t, err)
}
