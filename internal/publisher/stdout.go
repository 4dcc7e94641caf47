package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0969DA")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#39D353")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6E7681"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#58A6FF")).
			Underline(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8250DF"))
)

// StdoutPublisher prints the digest to the terminal.
type StdoutPublisher struct {
	out io.Writer
}

func NewStdoutPublisher() *StdoutPublisher {
	return &StdoutPublisher{out: os.Stdout}
}

func (p *StdoutPublisher) Publish(_ context.Context, digest *Digest) error {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(p.out, rule)
	fmt.Fprintln(p.out, headerStyle.Render(fmt.Sprintf("Found %d papers on arXiv, %s", len(digest.Articles), digest.Date.Format("2006-01-02"))))
	fmt.Fprintln(p.out, dimStyle.Render("Categories: "+digest.CategoriesString()))
	if len(digest.Keywords) > 0 {
		fmt.Fprintln(p.out, dimStyle.Render("Keywords: "+strings.Join(digest.Keywords, ", ")))
	}
	fmt.Fprintln(p.out, rule)

	for i, a := range digest.Articles {
		fmt.Fprintln(p.out, strings.Repeat("-", 72))
		fmt.Fprintf(p.out, "[%d/%d] %s\n", i+1, len(digest.Articles), titleStyle.Render(a.Title))
		fmt.Fprintf(p.out, "   Authors: %s\n", strings.Join(a.Authors, ", "))
		fmt.Fprintf(p.out, "   Date: %s\n", a.Date)
		fmt.Fprintf(p.out, "   URL: %s\n", linkStyle.Render(a.Link))
		fmt.Fprintln(p.out)
		fmt.Fprintf(p.out, "   %s\n", a.Summary)
		fmt.Fprintln(p.out)
	}

	fmt.Fprintln(p.out, rule)
	return nil
}

func (p *StdoutPublisher) Notify(_ context.Context, text string) error {
	_, err := fmt.Fprintln(p.out, noticeStyle.Render(text))
	return err
}
