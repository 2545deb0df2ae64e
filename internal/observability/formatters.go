// Package observability provides formatted terminal output for the sra CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sra-rio/sra-web/internal/profile"
	"github.com/sra-rio/sra-web/internal/recommend"
	"github.com/sra-rio/sra-web/internal/session"
	"github.com/sra-rio/sra-web/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60

	// FilledStar and OutlineStar are the rating glyphs.
	FilledStar  = "★"
	OutlineStar = "☆"
)

// Colors follow the web client palette.
var (
	primaryColor = lipgloss.Color("#0A4DAD")
	starColor    = lipgloss.Color("#4CAF50")
	mutedColor   = lipgloss.Color("#8A8A8A")
	errorColor   = lipgloss.Color("#E53935")
)

// Printer handles formatted output
type Printer struct {
	out io.Writer

	title   lipgloss.Style
	rank    lipgloss.Style
	filled  lipgloss.Style
	outline lipgloss.Style
	muted   lipgloss.Style
	err     lipgloss.Style
}

// NewPrinter creates a new Printer that writes to the given writer.
// Colors are dropped automatically when the writer is not a terminal.
func NewPrinter(out io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:     out,
		title:   r.NewStyle().Bold(true).Foreground(primaryColor),
		rank:    r.NewStyle().Bold(true).Foreground(primaryColor),
		filled:  r.NewStyle().Foreground(starColor),
		outline: r.NewStyle().Foreground(mutedColor),
		muted:   r.NewStyle().Foreground(mutedColor),
		err:     r.NewStyle().Bold(true).Foreground(errorColor),
	}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// Stars renders a star count as filled and outline glyphs, always recommend.MaxStars wide.
func (p *Printer) Stars(count int) string {
	filled, outline := recommend.Glyphs(count)
	return p.filled.Render(strings.Repeat(FilledStar, filled)) +
		p.outline.Render(strings.Repeat(OutlineStar, outline))
}

// PrintRecommendations outputs the ranked recommendation cards, or the empty-state message.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRecommendations(shown []recommend.Displayable) {
	fmt.Fprintln(p.out, p.title.Render("Suas Recomendações"))
	fmt.Fprintln(p.out)

	if len(shown) == 0 {
		fmt.Fprintln(p.out, p.muted.Render(recommend.EmptyMessage))
		return
	}

	for _, d := range shown {
		line := p.rank.Render(fmt.Sprintf("%d.", d.Rank)) + " " + d.Name
		if specialty := d.Specialty(); specialty != "" {
			line += " — " + specialty
		}
		fmt.Fprintf(p.out, "%s  %s\n", line, p.Stars(d.StarCount))
	}
}

// PrintSubjects outputs the subjects available to the student.
func (p *Printer) PrintSubjects(subjects types.Subjects) {
	if len(subjects) == 0 {
		p.printBox("DISCIPLINAS", "Nenhuma disciplina disponível.")
		return
	}

	var sb strings.Builder
	for _, s := range subjects {
		sb.WriteString(fmt.Sprintf("%4d  %s\n", s.ID, s.Nome))
	}
	p.printBox("DISCIPLINAS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProfessorAverages outputs a professor's averages per criterion on the 0-7 scale.
func (p *Printer) PrintProfessorAverages(avg *types.ProfessorAverages) {
	if avg == nil {
		return
	}

	var sb strings.Builder
	for _, c := range avg.Ordered() {
		sb.WriteString(fmt.Sprintf("%-26s %4.1f / 7\n", c.Label, c.Value))
	}
	p.printBox(fmt.Sprintf("MÉDIAS DO PROFESSOR %d", avg.ProfessorID), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSession outputs who is logged in.
func (p *Printer) PrintSession(s *session.Session) {
	if s == nil {
		return
	}

	profileState := "completo"
	if !s.HasProfile {
		profileState = "pendente (use `sra profile`)"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Nome:      %s\n", s.DisplayName()))
	if s.Matricula != "" {
		sb.WriteString(fmt.Sprintf("Matrícula: %s\n", s.Matricula))
	}
	sb.WriteString(fmt.Sprintf("Iniciais:  %s\n", s.Initials()))
	sb.WriteString(fmt.Sprintf("Perfil:    %s", profileState))
	p.printBox("SESSÃO", sb.String())
}

// PrintProfileOptions outputs every profile field with its accepted values.
func (p *Printer) PrintProfileOptions() {
	var sb strings.Builder
	var form profile.Form
	group := ""
	for _, f := range form.Fields() {
		if f.Group != group {
			if group != "" {
				sb.WriteString("\n")
			}
			group = f.Group
			sb.WriteString(group + "\n")
		}
		sb.WriteString(fmt.Sprintf("  --%s (%s)\n", f.Flag(), f.Label))
		sb.WriteString(fmt.Sprintf("      %s\n", strings.Join(f.Options, ", ")))
	}
	p.printBox("OPÇÕES DO PERFIL", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintError outputs a user-facing error message.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintError(msg string) {
	fmt.Fprintln(p.out, p.err.Render(msg))
}
