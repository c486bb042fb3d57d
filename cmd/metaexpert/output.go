package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/hupe1980/metaexpert"
	"github.com/hupe1980/metaexpert/core"
)

// printer writes run results. Markdown is rendered with glamour only when the
// output is a terminal.
type printer struct {
	out      io.Writer
	markdown func(string) (string, error)
}

func newPrinter(out io.Writer, plain bool) *printer {
	p := &printer{out: out}

	if f, ok := out.(*os.File); ok && !plain && term.IsTerminal(int(f.Fd())) {
		if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle()); err == nil {
			p.markdown = r.Render
		}
	} else {
		color.NoColor = true
	}

	return p
}

func (p *printer) answer(st *core.State) {
	text := metaexpert.Answer(st)
	if text == "" {
		return
	}

	if p.markdown != nil {
		if rendered, err := p.markdown(text); err == nil {
			text = rendered
		}
	}

	fmt.Fprintln(p.out, strings.TrimRight(text, "\n"))

	if res, ok := st.ToolResult(); ok {
		fmt.Fprintf(p.out, "%s %s\n", color.CyanString("source:"), res.URL)
	}
	if fb := st.RoutingFallback(); fb != nil {
		fmt.Fprintf(p.out, "%s %v\n", color.YellowString("routing fell back to the direct expert:"), fb)
	}
}

func (p *printer) failure(err error) {
	fmt.Fprintf(p.out, "%s %v\n", color.RedString("error:"), err)
}
