package checkpoint

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Console presents checkpoints on a terminal and reads the answer from in.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole creates a Console presenter.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	bodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// Render draws the checkpoint panel.
func Render(req Requested) string {
	var body strings.Builder
	body.WriteString(req.Question)
	body.WriteString("\n")
	if len(req.Context.Artifacts) > 0 {
		body.WriteString("\nArtifacts:\n")
		for _, a := range req.Context.Artifacts {
			label := a.Label
			if label == "" {
				label = a.Path
			}
			body.WriteString(fmt.Sprintf("  • %s (%s)\n", label, a.Path))
		}
	}
	if len(req.Context.Summary) > 0 {
		var pretty any
		if err := json.Unmarshal(req.Context.Summary, &pretty); err == nil {
			if b, err := json.MarshalIndent(pretty, "", "  "); err == nil {
				body.WriteString("\nSummary:\n")
				body.Write(b)
			}
		}
	}
	return panelStyle.Render(fmt.Sprintf("%s\n%s",
		titleStyle.Render("CHECKPOINT · "+req.Title),
		bodyStyle.Render(strings.TrimRight(body.String(), "\n"))))
}

// Present prints the panel and reads "a" (approve, the default) or "r" (request a revision).
//
//nolint:errcheck // terminal output
func (c *Console) Present(ctx context.Context, req Requested) (Resumed, error) {
	fmt.Fprintln(c.out, Render(req))
	fmt.Fprint(c.out, "[A]pprove / [r]equest revision: ")

	answer, err := c.readLine(ctx)
	if err != nil {
		return Resumed{}, err
	}

	r := Resumed{CheckpointID: req.ID, Resumed: true, Reviewer: "console", ResumedAt: time.Now()}
	switch strings.ToLower(answer) {
	case "r", "revise", "revision":
		fmt.Fprint(c.out, "What should change? ")
		comments, err := c.readLine(ctx)
		if err != nil {
			return Resumed{}, err
		}
		r.Feedback = &Feedback{RevisionsNeeded: true, Comments: comments}
	}
	return r, nil
}

func (c *Console) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{strings.TrimSpace(line), err}
	}()

	select {
	case r := <-ch:
		if r.err == io.EOF {
			return "", nil
		}
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
