// Package doctor checks a buildmaster configuration and its scripts
// directory before the service is started.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"

	"github.com/mattjoyce/buildmaster/internal/config"
	"github.com/mattjoyce/buildmaster/internal/scripts"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool     `json:"valid"`
	Scripts  []string `json:"scripts,omitempty"`
	Errors   []Issue  `json:"errors,omitempty"`
	Warnings []Issue  `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateConfig(r)
	d.validateScriptsDir(r)
	d.validateWorkdir(r)
	d.warnStopPolicy(r)
	d.warnOrdering(r)
	d.warnOpenListener(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateConfig(r *Result) {
	if err := d.cfg.Validate(); err != nil {
		d.addError(r, "config", "", err.Error())
	}
}

// validateScriptsDir lists deployable scripts and explains why any other
// top-level file would be refused.
func (d *Doctor) validateScriptsDir(r *Result) {
	dir, err := scripts.Open(d.cfg.Scripts.Dir)
	if err != nil {
		d.addError(r, "scripts", "scripts.dir", err.Error())
		return
	}

	entries, err := os.ReadDir(dir.Root())
	if err != nil {
		d.addError(r, "scripts", "scripts.dir", fmt.Sprintf("read %s: %v", dir.Root(), err))
		return
	}

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || e.IsDir() {
			continue
		}
		path, err := dir.Resolve(name)
		switch {
		case err == nil:
			r.Scripts = append(r.Scripts, name)
			d.checkDescription(r, name, path)
		case errors.Is(err, scripts.ErrNotExecutable):
			d.addWarning(r, "scripts", name, "not executable; it will not be offered as a builder")
		case errors.Is(err, scripts.ErrUntrusted):
			d.addWarning(r, "scripts", name, "resolves outside the scripts directory and will be refused")
		case errors.Is(err, fs.ErrNotExist):
			d.addWarning(r, "scripts", name, "not a regular file (dangling symlink?)")
		default:
			d.addWarning(r, "scripts", name, err.Error())
		}
	}

	if len(r.Scripts) == 0 {
		d.addWarning(r, "scripts", "scripts.dir", fmt.Sprintf("no executable scripts in %s", dir.Root()))
	}
}

func (d *Doctor) checkDescription(r *Result, name, path string) {
	desc, err := scripts.Describe(path)
	if err != nil {
		d.addWarning(r, "scripts", name, fmt.Sprintf("cannot read description: %v", err))
		return
	}
	if desc.Summary == "" {
		d.addWarning(r, "scripts", name, "no leading comment block; the builder will have no description")
	}
}

func (d *Doctor) validateWorkdir(r *Result) {
	wd := d.cfg.Scripts.Workdir
	if wd == "" {
		return
	}
	info, err := os.Stat(wd)
	if err != nil {
		d.addError(r, "scripts", "scripts.workdir", err.Error())
		return
	}
	if !info.IsDir() {
		d.addError(r, "scripts", "scripts.workdir", fmt.Sprintf("%s is not a directory", wd))
	}
}

// warnStopPolicy flags stop settings that leave scripts no time to clean up.
func (d *Doctor) warnStopPolicy(r *Result) {
	sup := d.cfg.Supervisor
	if strings.EqualFold(sup.StopSignal, "SIGKILL") {
		d.addWarning(r, "supervisor", "supervisor.stop_signal",
			"SIGKILL cannot be handled; scripts get no chance to clean up on redeploy")
		return
	}
	if sup.KillGrace == 0 {
		d.addWarning(r, "supervisor", "supervisor.kill_grace",
			"kill_grace is 0; SIGKILL follows the stop signal immediately")
	}
}

func (d *Doctor) warnOrdering(r *Result) {
	if d.cfg.Output.Ordering == config.OrderingSequential {
		d.addWarning(r, "output", "output.ordering",
			"sequential ordering does not read stderr until stdout closes; a script writing a lot to stderr will block")
	}
}

// warnOpenListener flags an unauthenticated API bound to every interface.
func (d *Doctor) warnOpenListener(r *Result) {
	host, _, err := net.SplitHostPort(d.cfg.API.Listen)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		d.addWarning(r, "api", "api.listen",
			fmt.Sprintf("%s accepts connections on all interfaces and the API has no authentication", d.cfg.API.Listen))
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	if len(r.Scripts) > 0 {
		fmt.Fprintf(&b, "  scripts: %s\n", strings.Join(r.Scripts, ", "))
	}
	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
