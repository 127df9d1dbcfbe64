package identity

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the identity service.
const (
	CodeInvalidEmail      = "auth/invalid-email"
	CodeUserDisabled      = "auth/user-disabled"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidActionCode = "auth/invalid-action-code"
	CodeTokenExpired      = "auth/id-token-expired"
	CodeTokenRevoked      = "auth/id-token-revoked"
	CodeProviderFailed    = "auth/provider-failed"
	CodeInternal          = "auth/internal-error"
)

// DefaultMessage is shown for failures without a dedicated text.
const DefaultMessage = "Não foi possível realizar o login. Lembre-se de ativar a sua conta pelo e-mail enviado ao criar a conta."

// ProviderMessage is shown for any failed provider sign-in.
const ProviderMessage = "Erro ao realizar login com provedor externo. Tente novamente."

var messages = map[string]string{
	CodeInvalidEmail:      "O e-mail fornecido é inválido.",
	CodeUserDisabled:      "Este usuário foi desativado.",
	CodeUserNotFound:      "Usuário não encontrado. Verifique suas credenciais.",
	CodeWrongPassword:     "Senha incorreta. Tente novamente.",
	CodeTooManyRequests:   "Muitas tentativas de login. Tente novamente mais tarde.",
	CodeInvalidCredential: "Credenciais inválidas",
	CodeEmailInUse:        "E-mail já cadastrado",
	CodeWeakPassword:      "A senha deve ter pelo menos 6 caracteres.",
	CodeInvalidActionCode: "O link de redefinição de senha é inválido ou expirou.",
	CodeProviderFailed:    ProviderMessage,
}

// AuthError is a classified identity failure.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

func (e *AuthError) Unwrap() error { return e.Err }

func newError(code string, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

// Code extracts the code of an AuthError, or "" for anything else.
func Code(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}

// Message maps an error to the pt-BR text shown to the user. Errors that are
// not AuthErrors never leak their internals and get DefaultMessage.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return DefaultMessage
	}
	if msg, ok := messages[authErr.Code]; ok {
		return msg
	}
	if authErr.Message != "" {
		return authErr.Message
	}
	return DefaultMessage
}
