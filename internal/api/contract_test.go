// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		loader := openapi3.NewLoader()
		loader.IsExternalRefsAllowed = true
		doc, err := loader.LoadFromFile("openapi.yaml")
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiDoc = doc
	})
	if openapiErr != nil {
		t.Fatalf("openapi load failed: %v", openapiErr)
	}
	return openapiDoc
}

func validateOpenAPIResponse(t *testing.T, doc *openapi3.T, req *http.Request, rr *httptest.ResponseRecorder, opts *openapi3filter.Options) {
	t.Helper()
	router, err := legacy.NewRouter(doc)
	require.NoError(t, err, "openapi router init")

	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err, "openapi route lookup")

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status:  rr.Code,
		Header:  rr.Header(),
		Options: opts,
	}
	input.SetBodyBytes(rr.Body.Bytes())

	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input), "openapi response validation")
}

// contractRequest runs one request through the full handler stack and
// returns both sides for schema validation.
func contractRequest(t *testing.T, handler http.Handler, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return req, rr
}

func TestContractPlaybackStart(t *testing.T) {
	env := newTestEnv(t, testEnvOpts{})

	req, rr := contractRequest(t, env.handler, http.MethodPost, "/api/playback/"+env.traceID)
	require.Equal(t, http.StatusCreated, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)
}

func TestContractPlaybackLifecycle(t *testing.T) {
	env := newTestEnv(t, testEnvOpts{})
	doc := loadOpenAPIDoc(t)
	st := startPlayback(t, env, env.videoID)

	req, rr := contractRequest(t, env.handler, http.MethodGet, "/api/playback/"+st.PlaybackID)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr, nil)

	req, rr = contractRequest(t, env.handler, http.MethodPost, "/api/playback/"+st.PlaybackID+"/advance")
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr, nil)

	req, rr = contractRequest(t, env.handler, http.MethodDelete, "/api/playback/"+st.PlaybackID)
	require.Equal(t, http.StatusNoContent, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr, nil)
}

func TestContractPlaybackNotFound(t *testing.T) {
	env := newTestEnv(t, testEnvOpts{})

	req, rr := contractRequest(t, env.handler, http.MethodGet, "/api/playback/"+uuid.NewString())
	require.Equal(t, http.StatusNotFound, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)
}

func TestContractSessionsList(t *testing.T) {
	env := newCatalogEnv(t, catalogFixtureEntries())

	req, rr := contractRequest(t, env.handler, http.MethodGet, "/api/sessions")
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)
}

func TestContractSessionGet(t *testing.T) {
	entries := catalogFixtureEntries()
	env := newCatalogEnv(t, entries)

	req, rr := contractRequest(t, env.handler, http.MethodGet, "/api/sessions/"+entries[0].SessionID)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)
}
