package types

// Subject is a disciplina as listed by GET /aluno/disciplinas.
type Subject struct {
	ID   int    `json:"id_disciplina"`
	Nome string `json:"nome"`
}

// SubjectOption is a subject as shown in a selection list.
type SubjectOption struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// Subjects is the list of subjects available to the student.
type Subjects []Subject

// Options converts the subjects into selection options, preserving order.
func (s Subjects) Options() []SubjectOption {
	opts := make([]SubjectOption, 0, len(s))
	for _, subject := range s {
		opts = append(opts, SubjectOption{ID: subject.ID, Label: subject.Nome})
	}
	return opts
}

// Label returns the display name of the subject with the given ID, or "" if unknown.
func (s Subjects) Label(id int) string {
	for _, subject := range s {
		if subject.ID == id {
			return subject.Nome
		}
	}
	return ""
}
