package lead

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL)
	require.NoError(t, err)
	client.SetRetries(2, time.Millisecond)
	return client, server
}

func TestLoginStoresSessionCookie(t *testing.T) {
	var loginBody map[string]string
	var variantCookie string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&loginBody))
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("GET /variant", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil {
			variantCookie = c.Value
		}
		fmt.Fprint(w, `[]`)
	})

	client, _ := newTestClient(t, mux)

	require.NoError(t, client.Login(context.Background(), "user@example.com", "secret"))
	assert.Equal(t, "user@example.com", loginBody["email"])
	assert.Equal(t, "secret", loginBody["password"])

	_, err := client.ListVariants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", variantCookie, "session cookie should be sent on later calls")
}

func TestLoginRejectedIsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad credentials"}`)
	})

	client, _ := newTestClient(t, mux)
	err := client.Login(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestListVariantsDecodesNullableFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /variant", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":1,"hgvs_transcript":"NM_020485.8:c.1A>G","grch38_chr":"1",
			 "grch38_pos":25284343,"grch38_ref":"A","grch38_alt":"G",
			 "exon":null,"intron":null,"rsid":"rs12075","gnomad_all":0.42},
			{"id":2,"hgvs_transcript":null,"grch38_chr":null,"grch38_pos":null,
			 "grch38_ref":null,"grch38_alt":null}
		]`)
	})

	client, _ := newTestClient(t, mux)
	variants, err := client.ListVariants(context.Background())
	require.NoError(t, err)
	require.Len(t, variants, 2)

	v := variants[0]
	assert.Equal(t, 1, v.ID)
	assert.Equal(t, "NM_020485.8:c.1A>G", Str(v.HGVSTranscript))
	assert.True(t, v.HasCoordinates())
	assert.False(t, v.HasExonIntron())
	assert.True(t, v.HasRsID())
	assert.True(t, v.HasGnomad())

	v = variants[1]
	assert.False(t, v.HasCoordinates())
	assert.False(t, v.HasRsID())
	assert.False(t, v.HasGnomad())
}

func TestPatchVariantSendsPartialUpdate(t *testing.T) {
	var patched map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /variant/7", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
		fmt.Fprint(w, `{}`)
	})

	client, _ := newTestClient(t, mux)
	err := client.PatchVariant(context.Background(), 7, map[string]any{
		"exon":   "5-6",
		"intron": nil,
	})
	require.NoError(t, err)

	require.Len(t, patched, 2)
	assert.Equal(t, "5-6", patched["exon"])
	assert.Nil(t, patched["intron"], "null should be sent to clear a field")
}

func TestGetJSONRetriesTransientFailure(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("GET /system", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[{"id":1,"symbol":"RH"},{"id":2,"symbol":"KEL"}]`)
	})

	client, _ := newTestClient(t, mux)
	systems, err := client.ListSystems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, systems, 2)
	assert.Equal(t, "RH", systems[0].Symbol)
}

func TestSearchAllelesEscapesSymbol(t *testing.T) {
	var gotSymbol string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /allele/search", func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("system_symbol")
		fmt.Fprint(w, `[{"id":11},{"id":12}]`)
	})

	client, _ := newTestClient(t, mux)
	alleles, err := client.SearchAlleles(context.Background(), "RHAG")
	require.NoError(t, err)
	assert.Equal(t, "RHAG", gotSymbol)
	require.Len(t, alleles, 2)
	assert.Equal(t, 11, alleles[0].ID)
}
