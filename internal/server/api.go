package server

import (
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veilscan/fogstore/internal/config"
	"github.com/veilscan/fogstore/internal/database"
	"github.com/veilscan/fogstore/internal/logging"
)

type ApiHandler struct {
	Store database.RecoveryDB
}

func NewApiHandler(store database.RecoveryDB) *ApiHandler {
	return &ApiHandler{Store: store}
}

// respondErr maps store error kinds onto HTTP statuses. Transient errors
// come back 503 so clients retry; everything unexpected is a 500.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrTransient):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logging.L.Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not retrieve data from database"})
	}
}

func (h *ApiHandler) GetInfo(c *gin.Context) {
	keys, err := h.Store.ListIngressKeys(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, InfoResponse{
		Backend:     config.Backend,
		IngressKeys: len(keys),
	})
}

// GetStatus is the per-key ingest summary: key state, every invocation,
// ingestion progress and reported missed ranges.
func (h *ApiHandler) GetStatus(c *gin.Context) {
	key, ok := ingressKeyFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	keyRec, err := h.Store.GetIngressKey(ctx, key)
	if err != nil {
		respondErr(c, err)
		return
	}
	invocations, err := h.Store.GetInvocations(ctx, key)
	if err != nil {
		respondErr(c, err)
		return
	}
	blockRange, err := h.Store.GetBlockRange(ctx, key)
	if err != nil {
		respondErr(c, err)
		return
	}
	missed, err := h.Store.GetMissedBlockRanges(ctx, key)
	if err != nil {
		respondErr(c, err)
		return
	}

	resp := StatusResponse{
		Key: IngressKeyResponse{
			IngressKey:     hex.EncodeToString(keyRec.Key),
			StartBlock:     keyRec.StartBlock,
			Decommissioned: keyRec.Decommissioned,
			LastScanned:    keyRec.LastScanned,
		},
		BlockRange: toBlockRangeResponse(blockRange),
	}
	for _, inv := range invocations {
		resp.Invocations = append(resp.Invocations, InvocationResponse{
			InvocationID:   inv.ID,
			Primary:        inv.Primary,
			StartBlock:     inv.StartBlock,
			LastActive:     inv.LastActive.UnixMilli(),
			Decommissioned: inv.Decommissioned,
		})
	}
	for _, r := range missed {
		resp.MissedRanges = append(resp.MissedRanges, MissedRangeResponse{
			StartBlock: r.Start,
			EndBlock:   r.End,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ApiHandler) GetBlockRange(c *gin.Context) {
	key, ok := ingressKeyFromContext(c)
	if !ok {
		return
	}
	blockRange, err := h.Store.GetBlockRange(c.Request.Context(), key)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toBlockRangeResponse(blockRange))
}

func (h *ApiHandler) GetRngRecords(c *gin.Context) {
	key, ok := ingressKeyFromContext(c)
	if !ok {
		return
	}
	records, err := h.Store.GetAllRngRecords(c.Request.Context(), key)
	if err != nil {
		respondErr(c, err)
		return
	}
	resp := make([]RngRecordResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, RngRecordResponse{
			AccountPubkey: hex.EncodeToString(r.AccountPubkey),
			InvocationID:  r.InvocationID,
			StartBlock:    r.StartBlock,
			State:         hex.EncodeToString(r.State),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ApiHandler) GetOutputs(c *gin.Context) {
	var req OutputsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse request body"})
		return
	}
	searchKeys := make([][]byte, 0, len(req.SearchKeys))
	for _, s := range req.SearchKeys {
		k, err := hex.DecodeString(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse search key"})
			return
		}
		searchKeys = append(searchKeys, k)
	}

	outputs, err := h.Store.GetOutputs(c.Request.Context(), searchKeys,
		database.BlockRange{Start: req.StartBlock, End: req.EndBlock})
	if err != nil {
		respondErr(c, err)
		return
	}
	resp := make([]OutputResponse, 0, len(outputs))
	for _, o := range outputs {
		resp = append(resp, OutputResponse{
			SearchKey:  hex.EncodeToString(o.SearchKey),
			Payload:    hex.EncodeToString(o.Payload),
			BlockIndex: o.BlockIndex,
			Timestamp:  o.Timestamp.UnixMilli(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ApiHandler) GetMissedRanges(c *gin.Context) {
	key, ok := ingressKeyFromContext(c)
	if !ok {
		return
	}
	missed, err := h.Store.GetMissedBlockRanges(c.Request.Context(), key)
	if err != nil {
		respondErr(c, err)
		return
	}
	resp := make([]MissedRangeResponse, 0, len(missed))
	for _, r := range missed {
		resp = append(resp, MissedRangeResponse{StartBlock: r.Start, EndBlock: r.End})
	}
	c.JSON(http.StatusOK, resp)
}

func toBlockRangeResponse(r *database.ProcessedBlockRange) BlockRangeResponse {
	return BlockRangeResponse{
		HighWater: r.HighWater,
		Ingested:  r.Ingested,
		Gaps:      r.Gaps,
	}
}
