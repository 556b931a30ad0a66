package server_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/fogstore/internal/database"
	"github.com/veilscan/fogstore/internal/server"
	"github.com/veilscan/fogstore/internal/testhelpers"
)

func newTestRouter(t *testing.T) (http.Handler, database.RecoveryDB) {
	t.Helper()
	store := testhelpers.NewSQLiteStore(t)
	return server.NewRouter(server.NewApiHandler(store)), store
}

func doJSON(t *testing.T, router http.Handler, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(raw)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	// plain responses keep the test side simple
	req.Header.Set("Accept-Encoding", "identity")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func TestGetInfo(t *testing.T) {
	router, store := newTestRouter(t)
	require.NoError(t, store.RegisterIngressKey(context.Background(), testhelpers.IngressKey(0x01), 0))

	var resp server.InfoResponse
	w := doJSON(t, router, http.MethodGet, "/info", nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, resp.IngressKeys)
}

func TestGetStatus(t *testing.T) {
	router, store := newTestRouter(t)
	ctx := context.Background()
	key := testhelpers.IngressKey(0x02)
	id := testhelpers.PrimaryInvocation(t, store, key, 0)

	_, err := store.AddBlockData(ctx, key, id, 0, testhelpers.Outputs(1, 0x10), nil)
	require.NoError(t, err)
	require.NoError(t, store.ReportMissedBlockRange(ctx, key, database.BlockRange{Start: 5, End: 8}))

	var resp server.StatusResponse
	w := doJSON(t, router, http.MethodGet, "/status/"+hex.EncodeToString(key), nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, hex.EncodeToString(key), resp.Key.IngressKey)
	assert.Equal(t, int64(0), resp.Key.LastScanned)
	require.Len(t, resp.Invocations, 1)
	assert.Equal(t, id, resp.Invocations[0].InvocationID)
	assert.True(t, resp.Invocations[0].Primary)
	assert.True(t, resp.BlockRange.Ingested)
	assert.Equal(t, uint64(0), resp.BlockRange.HighWater)
	require.Len(t, resp.MissedRanges, 1)
	assert.Equal(t, uint64(5), resp.MissedRanges[0].StartBlock)
	assert.Equal(t, uint64(8), resp.MissedRanges[0].EndBlock)
}

func TestGetStatusUnknownKey(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet,
		"/status/"+hex.EncodeToString(testhelpers.IngressKey(0x7f)), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStatusBadKey(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/status/nothex", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBlockRange(t *testing.T) {
	router, store := newTestRouter(t)
	key := testhelpers.IngressKey(0x03)
	id := testhelpers.PrimaryInvocation(t, store, key, 0)
	ctx := context.Background()

	var resp server.BlockRangeResponse
	w := doJSON(t, router, http.MethodGet, "/block-range/"+hex.EncodeToString(key), nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Ingested)

	_, err := store.AddBlockData(ctx, key, id, 0, nil, nil)
	require.NoError(t, err)
	_, err = store.AddBlockData(ctx, key, id, 2, nil, nil)
	require.NoError(t, err)

	w = doJSON(t, router, http.MethodGet, "/block-range/"+hex.EncodeToString(key), nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Ingested)
	assert.Equal(t, uint64(0), resp.HighWater)
	assert.Equal(t, []uint64{2}, resp.Gaps)
}

func TestGetRngRecords(t *testing.T) {
	router, store := newTestRouter(t)
	key := testhelpers.IngressKey(0x04)
	id := testhelpers.PrimaryInvocation(t, store, key, 0)
	account := testhelpers.AccountKey(0x01)
	require.NoError(t, store.AddRngRecord(context.Background(), id, account, 2, []byte{0xbe, 0xef}))

	var resp []server.RngRecordResponse
	w := doJSON(t, router, http.MethodGet, "/rng-records/"+hex.EncodeToString(key), nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp, 1)
	assert.Equal(t, hex.EncodeToString(account), resp[0].AccountPubkey)
	assert.Equal(t, "beef", resp[0].State)
	assert.Equal(t, uint64(2), resp[0].StartBlock)
}

func TestPostOutputs(t *testing.T) {
	router, store := newTestRouter(t)
	ctx := context.Background()
	key := testhelpers.IngressKey(0x05)
	id := testhelpers.PrimaryInvocation(t, store, key, 0)

	for idx := uint64(0); idx < 3; idx++ {
		_, err := store.AddBlockData(ctx, key, id, idx, testhelpers.Outputs(1, 0x20), nil)
		require.NoError(t, err)
	}

	var resp []server.OutputResponse
	w := doJSON(t, router, http.MethodPost, "/outputs", server.OutputsRequest{
		SearchKeys: []string{hex.EncodeToString(testhelpers.SearchKey(0x20))},
		StartBlock: 0,
		EndBlock:   2,
	}, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp, 2)
	assert.Equal(t, uint64(0), resp[0].BlockIndex)
	assert.Equal(t, uint64(1), resp[1].BlockIndex)
	assert.Equal(t, hex.EncodeToString(testhelpers.SearchKey(0x20)), resp[0].SearchKey)
}

func TestPostOutputsBadRequest(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/outputs", server.OutputsRequest{
		SearchKeys: []string{"zz-not-hex"},
		StartBlock: 0,
		EndBlock:   2,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// empty interval is a conflict, not a server error
	w = doJSON(t, router, http.MethodPost, "/outputs", server.OutputsRequest{
		SearchKeys: []string{hex.EncodeToString(testhelpers.SearchKey(0x21))},
		StartBlock: 5,
		EndBlock:   5,
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetMissedRanges(t *testing.T) {
	router, store := newTestRouter(t)
	key := testhelpers.IngressKey(0x06)
	require.NoError(t, store.RegisterIngressKey(context.Background(), key, 0))
	require.NoError(t, store.ReportMissedBlockRange(context.Background(), key,
		database.BlockRange{Start: 1, End: 4}))

	var resp []server.MissedRangeResponse
	w := doJSON(t, router, http.MethodGet, "/missed-ranges/"+hex.EncodeToString(key), nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp, 1)
	assert.Equal(t, uint64(1), resp[0].StartBlock)
	assert.Equal(t, uint64(4), resp[0].EndBlock)
}
