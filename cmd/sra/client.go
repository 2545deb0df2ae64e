package main

import (
	"errors"
	"fmt"

	"github.com/sra-rio/sra-web/internal/apiclient"
	"github.com/sra-rio/sra-web/internal/logging"
	"github.com/sra-rio/sra-web/internal/session"
)

func newClient() (*apiclient.Client, error) {
	return apiclient.New(&apiclient.Options{
		BaseURL: appConfig.APIURL,
		Timeout: appConfig.RequestTimeout(),
	})
}

func sessionStore() *session.FileStore {
	return session.NewFileStore(appConfig.SessionFile)
}

// requireSession loads the stored session, pointing the student to `sra login` when there is none.
func requireSession() (*session.Session, error) {
	sess, err := sessionStore().Load()
	if errors.Is(err, session.ErrNoSession) {
		return nil, fmt.Errorf("nenhuma sessão ativa; execute `sra login` primeiro")
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// checkAuth clears the stored session when the backend rejected its token.
func checkAuth(err error) error {
	if !errors.Is(err, apiclient.ErrUnauthenticated) {
		return err
	}
	if clearErr := sessionStore().Clear(); clearErr != nil {
		logging.Warn().Err(clearErr).Msg("failed to clear session file")
	}
	return fmt.Errorf("sessão expirada; execute `sra login` novamente: %w", err)
}
