package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sra-rio/sra-web/internal/session"
	"github.com/sra-rio/sra-web/internal/types"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with your matrícula",
	Long:  "Authenticates against the recommendation backend and stores the session locally. The password may be given with --senha or $SRA_SENHA.",
	RunE:  runLogin,
}

var (
	loginMatricula string
	loginSenha     string
)

func init() {
	loginCmd.Flags().StringVarP(&loginMatricula, "matricula", "m", "", "Matrícula, without the check digit (required)")
	loginCmd.Flags().StringVarP(&loginSenha, "senha", "s", "", "Password, the same as PUC Online (default $SRA_SENHA)")

	if err := loginCmd.MarkFlagRequired("matricula"); err != nil {
		panic(fmt.Sprintf("failed to mark matricula flag as required: %v", err))
	}

	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	senha := loginSenha
	if senha == "" {
		senha = os.Getenv("SRA_SENHA")
	}
	req := types.LoginRequest{Matricula: strings.TrimSpace(loginMatricula), Senha: senha}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("informe matrícula e senha")
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	token, err := client.Login(cmd.Context(), req)
	if err != nil {
		return err
	}

	sess := session.Session{
		Token:      token.AccessToken,
		UserName:   token.Nome,
		Matricula:  req.Matricula,
		HasProfile: !token.NeedsProfile(),
		CreatedAt:  time.Now(),
	}
	if err := sessionStore().Save(sess); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Olá, %s!\n", sess.DisplayName())
	newPrinter(cmd).PrintSession(&sess)
	if !sess.HasProfile {
		_, _ = fmt.Fprintln(out, "Próximo passo: crie seu perfil com `sra profile` (veja `sra profile --options`).")
	} else {
		_, _ = fmt.Fprintln(out, "Próximo passo: `sra subjects` e `sra recommend --disciplina ID`.")
	}
	return nil
}
