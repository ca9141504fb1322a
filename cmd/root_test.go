package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bossnet/party-signup/internal/client"
	"github.com/bossnet/party-signup/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRegisterCommand_PrecheckStopsBadForms(t *testing.T) {
	_, err := execute(t, "register", "--nickname", "x", "--email", "nope", "--api-url", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrPrecheckFailed)
}

func TestParticipantsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer geheim" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode([]model.PublicRegistration{{ID: 3, Nickname: "Morpheus", Paid: 1}})
	}))
	defer srv.Close()

	out, err := execute(t, "participants", "--api-url", srv.URL, "--token", "geheim")
	require.NoError(t, err)
	assert.Contains(t, out, "Morpheus")
	assert.Contains(t, out, "1 Teilnehmer")
	assert.Equal(t, srv.URL, cfg.APIURL)
}

func TestInvalidConfigurationFailsEarly(t *testing.T) {
	t.Setenv("TRACING_EXPORTER", "zipkin")

	_, err := execute(t, "participants", "--api-url", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRACING_EXPORTER")
}
