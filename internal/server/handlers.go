package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sra-rio/sra-web/internal/apiclient"
	"github.com/sra-rio/sra-web/internal/logging"
	"github.com/sra-rio/sra-web/internal/metrics"
	"github.com/sra-rio/sra-web/internal/profile"
	"github.com/sra-rio/sra-web/internal/recommend"
	"github.com/sra-rio/sra-web/internal/server/middleware"
	"github.com/sra-rio/sra-web/internal/session"
	"github.com/sra-rio/sra-web/internal/types"
)

const (
	msgMissingCredentials = "Informe matrícula e senha."
	msgProfileSaveFailed  = "Erro ao salvar perfil."
)

// landingPath returns where an authenticated student goes next.
func landingPath(s *session.Session) string {
	if !s.HasProfile {
		return profilePath
	}
	return recommendationsPath
}

func redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// currentSession resolves the cookie without requiring it.
func (s *Server) currentSession(r *http.Request) (*session.Session, bool) {
	sess, _, err := middleware.Lookup(r, s.tokenService.AsTokenValidator(), s.sessions)
	if err != nil || !sess.Authenticated() {
		return nil, false
	}
	return sess, true
}

// expireSession drops the stored session after the backend rejected its token.
func (s *Server) expireSession(w http.ResponseWriter, r *http.Request, id string) {
	if id != "" {
		if err := s.sessions.Delete(r.Context(), id); err != nil {
			logging.Warn().Err(err).Msg("failed to delete session")
		}
	}
	middleware.ClearCookie(w)
	redirect(w, r, loginPath)
}

// handleHome sends the visitor to the page matching their session state.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentSession(r); ok {
		redirect(w, r, recommendationsPath)
		return
	}
	redirect(w, r, loginPath)
}

// handleLoginPage renders the login form, or skips it when already logged in.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.currentSession(r); ok {
		redirect(w, r, landingPath(sess))
		return
	}
	s.render(w, http.StatusOK, "login", loginPage{})
}

// handleLogin authenticates against the backend and starts a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "login", loginPage{Error: msgMissingCredentials})
		return
	}

	req := types.LoginRequest{
		Matricula: strings.TrimSpace(r.PostFormValue("matricula")),
		Senha:     r.PostFormValue("senha"),
	}
	page := loginPage{Matricula: req.Matricula}

	if err := req.Validate(); err != nil {
		verr := &ErrValidation{Field: "matricula/senha", Message: msgMissingCredentials}
		page.Error = userMessage(verr)
		s.render(w, HTTPStatus(verr), "login", page)
		return
	}

	token, err := s.backend.Login(r.Context(), req)
	if err != nil {
		logging.Info().Err(err).Str("matricula", req.Matricula).Msg("login failed")
		page.Error = userMessage(err)
		s.render(w, HTTPStatus(err), "login", page)
		return
	}

	sess := session.Session{
		Token:      token.AccessToken,
		UserName:   token.Nome,
		Matricula:  req.Matricula,
		HasProfile: !token.NeedsProfile(),
		CreatedAt:  time.Now(),
	}
	id := session.NewID()
	if err := s.sessions.Put(r.Context(), id.String(), sess); err != nil {
		logging.Error().Err(err).Msg("failed to store session")
		page.Error = userMessage(err)
		s.render(w, http.StatusInternalServerError, "login", page)
		return
	}

	cookie, err := s.tokenService.GenerateToken(id)
	if err != nil {
		logging.Error().Err(err).Msg("failed to sign session cookie")
		page.Error = userMessage(err)
		s.render(w, http.StatusInternalServerError, "login", page)
		return
	}
	middleware.SetCookie(w, r, cookie, s.tokenService.MaxAge())

	logging.Info().Str("matricula", req.Matricula).Bool("has_profile", sess.HasProfile).Msg("login succeeded")
	redirect(w, r, landingPath(&sess))
}

// handleLogout ends the session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, id, _ := middleware.Lookup(r, s.tokenService.AsTokenValidator(), s.sessions)
	s.expireSession(w, r, id)
}

func (s *Server) profileGreeting(sess *session.Session) string {
	return fmt.Sprintf("Olá, %s! Crie seu perfil!", sess.DisplayName())
}

// handleProfilePage renders the preference profile form.
func (s *Server) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	sess, _, err := middleware.GetSession(r)
	if err != nil {
		redirect(w, r, loginPath)
		return
	}

	var form profile.Form
	s.render(w, http.StatusOK, "profile", profilePage{
		Session:  sess,
		Greeting: s.profileGreeting(sess),
		Groups:   groupFields(&form),
	})
}

// handleSaveProfile validates and submits the preference profile.
func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	sess, id, err := middleware.GetSession(r)
	if err != nil {
		redirect(w, r, loginPath)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "profile", profilePage{
			Session:  sess,
			Greeting: s.profileGreeting(sess),
			Error:    msgProfileSaveFailed,
		})
		return
	}

	form := profile.FromValues(r.PostForm)
	page := profilePage{
		Session:  sess,
		Greeting: s.profileGreeting(sess),
		Groups:   groupFields(&form),
	}

	if err := form.Validate(); err != nil {
		page.Error = userMessage(err)
		s.render(w, http.StatusBadRequest, "profile", page)
		return
	}

	if err := s.backend.SaveProfile(r.Context(), sess.Token, form); err != nil {
		if errors.Is(err, apiclient.ErrUnauthenticated) {
			s.expireSession(w, r, id)
			return
		}
		logging.Warn().Err(err).Str("matricula", sess.Matricula).Msg("failed to save profile")
		page.Error = profileErrorMessage(err)
		s.render(w, HTTPStatus(err), "profile", page)
		return
	}

	updated := *sess
	updated.HasProfile = true
	if err := s.sessions.Put(r.Context(), id, updated); err != nil {
		logging.Warn().Err(err).Msg("failed to update session")
	}
	redirect(w, r, recommendationsPath)
}

// profileErrorMessage keeps backend details and availability problems, and
// reports everything else with the generic save failure message.
func profileErrorMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if errors.Is(err, apiclient.ErrUnavailable) {
		return apiclient.UserMessage(err)
	}
	return msgProfileSaveFailed
}

func rexGreeting(sess *session.Session) string {
	return fmt.Sprintf("Olá %s! Sou o Rex! Pronto para descobrir o professor perfeito para você?", sess.DisplayName())
}

// parseSubjectID reads disciplina_id. A missing parameter yields 0 with no error.
func parseSubjectID(r *http.Request) (int, error) {
	q := r.URL.Query()
	if !q.Has("disciplina_id") {
		return 0, nil
	}
	id, err := strconv.Atoi(strings.TrimSpace(q.Get("disciplina_id")))
	if err != nil || id <= 0 {
		return 0, apiclient.ErrSubjectRequired
	}
	return id, nil
}

// handleRecommendations renders the subject selector and, for a chosen subject,
// the ranked recommendation cards.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	sess, id, err := middleware.GetSession(r)
	if err != nil {
		redirect(w, r, loginPath)
		return
	}

	page := recommendationsPage{
		Session:  sess,
		Greeting: rexGreeting(sess),
		Empty:    recommend.EmptyMessage,
	}
	status := http.StatusOK

	subjectID, paramErr := parseSubjectID(r)
	page.SelectedID = subjectID

	var (
		g           errgroup.Group
		subjects    types.Subjects
		subjectsErr error
		records     []recommend.Record
	)
	g.Go(func() error {
		subjects, subjectsErr = s.backend.Subjects(r.Context(), sess.Token)
		return nil
	})
	if subjectID > 0 {
		g.Go(func() error {
			var err error
			records, err = s.backend.Recommendations(r.Context(), sess.Token, subjectID)
			return err
		})
	}
	recErr := g.Wait()

	if errors.Is(subjectsErr, apiclient.ErrUnauthenticated) || errors.Is(recErr, apiclient.ErrUnauthenticated) {
		s.expireSession(w, r, id)
		return
	}

	page.Subjects = subjects.Options()

	switch {
	case paramErr != nil:
		page.Error = userMessage(paramErr)
		status = HTTPStatus(paramErr)
	case recErr != nil:
		logging.Warn().Err(recErr).Int("disciplina_id", subjectID).Msg("failed to fetch recommendations")
		page.Error = userMessage(recErr)
		status = HTTPStatus(recErr)
	case subjectsErr != nil:
		logging.Warn().Err(subjectsErr).Msg("failed to fetch subjects")
		page.Error = userMessage(subjectsErr)
	}

	if subjectID > 0 && recErr == nil {
		page.Cards = recommend.Prepare(records, subjects.Label(subjectID))
		metrics.RecommendationsShown.Observe(float64(len(page.Cards)))
	}

	s.render(w, status, "recommendations", page)
}

// handleNotFound renders the 404 page for any unknown path.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.currentSession(r)
	s.render(w, http.StatusNotFound, "error", errorPage{
		Session:  sess,
		Title:    "Erro 404 not found",
		LinkHref: "/",
		LinkText: "Voltar a tela Inicial",
	})
}
