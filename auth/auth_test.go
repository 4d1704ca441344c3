package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	v := NewValidator([]byte("s3cret"))
	tok, err := v.Issue("doi:10.1234/example", time.Hour)
	require.NoError(t, err)

	claims, err := v.Validate(tok)
	require.NoError(t, err)
	require.Equal(t, "doi:10.1234/example", claims.DOI)
}

func TestValidateRejectsMissingToken(t *testing.T) {
	v := NewValidator([]byte("s3cret"))
	_, err := v.Validate("")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	v := NewValidator([]byte("s3cret"))
	tok, err := v.Issue("doi:10.1234/example", -time.Minute)
	require.NoError(t, err)

	_, err = v.Validate(tok)
	require.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewValidator([]byte("s3cret"))
	tok, err := issuer.Issue("doi:10.1234/example", time.Hour)
	require.NoError(t, err)

	verifier := NewValidator([]byte("different"))
	_, err = verifier.Validate(tok)
	require.Error(t, err)
}
