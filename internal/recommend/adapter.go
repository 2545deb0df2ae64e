package recommend

import "math"

// EmptyMessage is shown instead of cards when there is nothing to display.
const EmptyMessage = "Selecione uma matéria e clique em “Obter Recomendação” para visualizar os professores ideais."

const (
	// MaxDisplayed is the number of recommendations ever shown to a student.
	MaxDisplayed = 5
	// MaxStars is the size of the star scale.
	MaxStars = 5
)

// Displayable is a recommendation ready to render: one card per entry.
type Displayable struct {
	Rank           int    `json:"rank"`
	ProfessorID    int    `json:"id_professor"`
	Name           string `json:"nome"`
	SpecialtyLabel string `json:"especialidade"`
	StarCount      int    `json:"estrelas"`
}

// StarCount derives a whole number of stars in [0, MaxStars] from a record.
//
// A present rating wins over a similarity; a similarity is scaled by MaxStars first.
// Values are rounded half away from zero and clamped, and a record without either score gets 0.
func StarCount(r Record) int {
	var score float64
	switch {
	case r.Estrelas != nil:
		score = *r.Estrelas
	case r.Similaridade != nil:
		score = *r.Similaridade * MaxStars
	default:
		return 0
	}

	if math.IsNaN(score) {
		return 0
	}

	rounded := math.Round(score)
	switch {
	case rounded < 0:
		return 0
	case rounded > MaxStars:
		return MaxStars
	}
	return int(rounded)
}

// Prepare converts records into at most MaxDisplayed entries, in input order.
// Ranks are 1-based positions and every entry carries the same specialty label.
func Prepare(records []Record, specialtyLabel string) []Displayable {
	n := min(len(records), MaxDisplayed)
	out := make([]Displayable, 0, n)
	for i, r := range records[:n] {
		out = append(out, Displayable{
			Rank:           i + 1,
			ProfessorID:    r.ProfessorID,
			Name:           r.Name,
			SpecialtyLabel: specialtyLabel,
			StarCount:      StarCount(r),
		})
	}
	return out
}

// Glyphs splits a star count into filled and outline glyph counts summing to MaxStars.
func Glyphs(starCount int) (filled, outline int) {
	filled = max(0, min(starCount, MaxStars))
	return filled, MaxStars - filled
}

// Stars returns the filled/outline flags for each of the MaxStars positions.
func (d Displayable) Stars() []bool {
	filled, _ := Glyphs(d.StarCount)
	stars := make([]bool, MaxStars)
	for i := range filled {
		stars[i] = true
	}
	return stars
}

// Specialty returns the card subtitle, e.g. "Especialista em Banco de Dados".
func (d Displayable) Specialty() string {
	if d.SpecialtyLabel == "" {
		return ""
	}
	return "Especialista em " + d.SpecialtyLabel
}
