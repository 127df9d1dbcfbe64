package identity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageMapsKnownCodes(t *testing.T) {
	cases := map[string]string{
		CodeInvalidEmail:      "O e-mail fornecido é inválido.",
		CodeUserDisabled:      "Este usuário foi desativado.",
		CodeUserNotFound:      "Usuário não encontrado. Verifique suas credenciais.",
		CodeWrongPassword:     "Senha incorreta. Tente novamente.",
		CodeTooManyRequests:   "Muitas tentativas de login. Tente novamente mais tarde.",
		CodeInvalidCredential: "Credenciais inválidas",
		CodeEmailInUse:        "E-mail já cadastrado",
	}
	for code, want := range cases {
		assert.Equal(t, want, Message(&AuthError{Code: code}), code)
	}
}

func TestMessageFallsBack(t *testing.T) {
	assert.Equal(t, DefaultMessage, Message(&AuthError{Code: CodeInternal}))
	assert.Equal(t, "custom", Message(&AuthError{Code: "auth/other", Message: "custom"}))
	assert.Equal(t, DefaultMessage, Message(errors.New("pq: connection refused")))
	assert.Equal(t, "", Message(nil))
}

func TestCodeUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("login: %w", newError(CodeWrongPassword, nil))
	assert.Equal(t, CodeWrongPassword, Code(err))
	assert.Equal(t, "", Code(errors.New("plain")))
}
