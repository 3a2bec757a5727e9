package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/mmif"
	"github.com/c360/mmif/model"
	"github.com/c360/mmif/pkg/worker"
	"github.com/c360/mmif/schema"
)

// Report is the outcome of checking one input.
type Report struct {
	Source   string         `json:"source,omitempty"`
	Valid    bool           `json:"valid"`
	Findings []schema.Error `json:"findings,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// check validates data against the schema and decodes it. Schema findings
// and decode errors are both reported; neither stops the other.
func check(e *env, data []byte) Report {
	var r Report
	findings, err := schema.Default().Validate(data)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	e.metrics.CoreMetrics().ObserveSchemaFindings(len(findings))
	r.Findings = findings

	if _, err := mmif.FromJSON(data, e.options()...); err != nil {
		r.Error = err.Error()
	}
	r.Valid = len(findings) == 0 && r.Error == ""
	return r
}

// ValidateCmd checks files.
type ValidateCmd struct {
	Files []string `arg:"" optional:"" help:"MMIF files to check; stdin when omitted or '-'."`
	JSON  bool     `name:"json" help:"Print reports as JSON."`
	Jobs  int      `short:"j" default:"4" help:"Files checked concurrently."`
}

// Run checks every input and fails when any is invalid. Reports keep the
// order of the inputs.
func (c *ValidateCmd) Run(g *Globals) error {
	e, err := g.setup()
	if err != nil {
		return err
	}
	defer e.stop()

	files := c.Files
	if len(files) == 0 {
		files = []string{"-"}
	}

	reports := make([]Report, len(files))
	var invalid atomic.Int64
	pool, err := worker.NewPool(c.Jobs, len(files), func(_ context.Context, i int) error {
		path := files[i]
		r := Report{Source: path}
		if data, err := g.read(path); err != nil {
			r.Error = err.Error()
		} else {
			r = check(e, data)
			r.Source = path
		}
		reports[i] = r
		if r.Valid {
			return nil
		}
		invalid.Add(1)
		e.logger.Warn("invalid MMIF", "source", path, "findings", len(r.Findings), "error", r.Error)
		return errors.ErrSchemaViolation
	}, worker.WithMetrics[int](e.metrics, "validate"))
	if err != nil {
		return err
	}
	if err := pool.Start(context.Background()); err != nil {
		return err
	}
	for i := range files {
		if err := pool.Submit(i); err != nil {
			_ = pool.Stop(0)
			return errors.Wrap(err, "cli", "validate", "queue "+files[i])
		}
	}
	if err := pool.Stop(0); err != nil {
		return err
	}

	if err := c.print(g, reports); err != nil {
		return err
	}
	if n := invalid.Load(); n > 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: %d of %d inputs invalid", errors.ErrSchemaViolation, n, len(files)),
			"cli", "validate", "check inputs")
	}
	return nil
}

func (c *ValidateCmd) print(g *Globals, reports []Report) error {
	if c.JSON {
		b, err := model.Serialize(reports, true)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(g.out(), string(b))
		return err
	}
	for _, r := range reports {
		if r.Valid {
			_, _ = fmt.Fprintf(g.out(), "%s: ok\n", r.Source)
			continue
		}
		for _, f := range r.Findings {
			_, _ = fmt.Fprintf(g.out(), "%s: %s\n", r.Source, f)
		}
		if r.Error != "" {
			_, _ = fmt.Fprintf(g.out(), "%s: %s\n", r.Source, r.Error)
		}
	}
	return nil
}

// SanitizeCmd cleans one file.
type SanitizeCmd struct {
	File    string `arg:"" optional:"" help:"MMIF file; stdin when omitted or '-'."`
	Output  string `short:"o" type:"path" help:"Write the result here instead of stdout."`
	InPlace bool   `name:"in-place" help:"Overwrite the input file."`
	Strict  bool   `help:"Fail when schema findings remain."`
	Pretty  bool   `help:"Pretty print the result."`
}

// Run sanitizes the input and writes the result.
func (c *SanitizeCmd) Run(g *Globals) error {
	if c.InPlace && (c.File == "" || c.File == "-") {
		return errors.WrapInvalid(fmt.Errorf("%w: --in-place needs a file", errors.ErrInvalidConfig),
			"cli", "sanitize", "check flags")
	}
	e, err := g.setup()
	if err != nil {
		return err
	}
	defer e.stop()

	data, err := g.read(c.File)
	if err != nil {
		return err
	}
	m, err := mmif.FromJSON(data, e.options()...)
	if err != nil {
		return err
	}

	opts := []mmif.SanitizeOption{mmif.InPlace()}
	if c.Strict {
		opts = append(opts, mmif.FailOnFindings())
	}
	m, findings, err := m.Sanitize(opts...)
	for _, f := range findings {
		e.logger.Warn("schema finding", "field", f.Field, "description", f.Description)
	}
	if err != nil {
		return err
	}

	out, err := m.Serialize(c.Pretty)
	if err != nil {
		return err
	}
	target := c.Output
	if c.InPlace {
		target = c.File
	}
	if target == "" {
		_, err = fmt.Fprintln(g.out(), string(out))
		return err
	}
	if err := os.WriteFile(target, append(out, '\n'), 0o644); err != nil {
		return errors.Wrap(err, "cli", "sanitize", "write "+target)
	}
	e.logger.Info("sanitized", "output", target, "findings", len(findings))
	return nil
}

// DescribeCmd summarizes one file.
type DescribeCmd struct {
	File    string `arg:"" optional:"" help:"MMIF file; stdin when omitted or '-'."`
	Compact bool   `help:"Print the summary on one line."`
}

// Run prints the summary as JSON.
func (c *DescribeCmd) Run(g *Globals) error {
	e, err := g.setup()
	if err != nil {
		return err
	}
	defer e.stop()

	data, err := g.read(c.File)
	if err != nil {
		return err
	}
	m, err := mmif.FromJSON(data, e.options()...)
	if err != nil {
		return err
	}
	b, err := model.Serialize(mmif.Describe(m), !c.Compact)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.out(), string(b))
	return err
}
