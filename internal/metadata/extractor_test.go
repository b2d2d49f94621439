package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gobotctl/internal/testhelpers"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
	<title>Acme Portal - Home</title>
	<meta property="og:title" content="Acme Claims Portal">
	<meta name="description" content="Submit insurance claims online.">
	<script src="https://www.google.com/recaptcha/api.js"></script>
</head>
<body>
	<form action="/claims" method="post">
		<input type="hidden" name="csrf_token">
		<input type="text" name="claim_number">
		<input type="text" name="claimant_name">
		<select name="claim_type"><option>auto</option></select>
		<textarea name="details"></textarea>
		<input type="submit" value="Send">
	</form>
</body>
</html>`

func TestInspectExtractsRegistrationHints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	e := NewExtractor(testhelpers.NewTestLogger())

	resp, err := e.Inspect(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Acme Claims Portal", resp.Name)
	assert.Equal(t, "acme-claims-portal", resp.Slug)
	assert.Equal(t, "Submit insurance claims online.", resp.Description)
	assert.Equal(t, []string{"claim_number", "claimant_name", "claim_type", "details"}, resp.FormFields)
	assert.True(t, resp.HasCaptcha)
	assert.False(t, resp.RequiresLogin)
}

func TestInspectFallsBackToTitleAndHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>  Plain Site  </title></head><body></body></html>`))
	}))
	defer server.Close()

	e := NewExtractor(testhelpers.NewTestLogger())

	resp, err := e.Inspect(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Plain Site", resp.Name)
	assert.Empty(t, resp.FormFields)
	assert.False(t, resp.HasCaptcha)
}

func TestInspectRejectsBadInput(t *testing.T) {
	e := NewExtractor(testhelpers.NewTestLogger())

	_, err := e.Inspect(context.Background(), "ftp://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}

func TestInspectRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	e := NewExtractor(testhelpers.NewTestLogger())

	_, err := e.Inspect(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 403")
}
