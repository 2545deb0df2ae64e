package types

// Criteria lists the evaluation criteria in the order the backend uses for its vectors.
var Criteria = []string{
	"slide",
	"quadro",
	"velocidade_aula",
	"provas",
	"trabalhos",
	"projetos",
	"interacao",
}

// CriterionLabels maps each criterion to its display label.
var CriterionLabels = map[string]string{
	"slide":           "Usa Slides",
	"quadro":          "Usa Quadro",
	"velocidade_aula": "Ritmo da Aula",
	"provas":          "Foco em Provas",
	"trabalhos":       "Foco em Trabalhos",
	"projetos":        "Foco em Projetos",
	"interacao":       "Interação e Participação",
}

// ProfessorAverages holds the averaged student evaluations (0-7) of a professor,
// as returned by GET /prof/media/{id}.
type ProfessorAverages struct {
	ProfessorID int                `json:"professor_id"`
	Medias      map[string]float64 `json:"medias"`
}

// CriterionAverage is a single labelled average.
type CriterionAverage struct {
	Criterion string
	Label     string
	Value     float64
}

// Ordered returns the averages in Criteria order. Missing criteria report 0.
func (p *ProfessorAverages) Ordered() []CriterionAverage {
	out := make([]CriterionAverage, 0, len(Criteria))
	for _, c := range Criteria {
		out = append(out, CriterionAverage{
			Criterion: c,
			Label:     CriterionLabels[c],
			Value:     p.Medias[c],
		})
	}
	return out
}
