package dto

import (
	"github.com/hivefi/ledger/internal/core/domain"
)

// ListTransactionsParams defines the query parameters for the audit log listing.
type ListTransactionsParams struct {
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
	NextToken string `form:"nextToken"`
}

// ListTransactionsResponse is one page of the audit log.
type ListTransactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
	NextToken    *string              `json:"nextToken,omitempty"`
}

// VerifyChainResponse reports the outcome of a chain verification.
type VerifyChainResponse struct {
	Valid         bool   `json:"valid"`
	Length        int    `json:"length"`
	FirstBadIndex *int   `json:"firstBadIndex,omitempty"`
	Reason        string `json:"reason,omitempty"`
	HeadHash      string `json:"headHash"`
}

// ReconcileResponse lists expenses that received a repaired CREATE entry.
type ReconcileResponse struct {
	Repaired []string `json:"repaired"`
}

// ToVerifyChainResponse converts a domain.VerifyResult to its DTO.
func ToVerifyChainResponse(r domain.VerifyResult) VerifyChainResponse {
	resp := VerifyChainResponse{
		Valid:    r.Valid,
		Length:   r.Length,
		Reason:   r.Reason,
		HeadHash: r.HeadHash,
	}
	if !r.Valid {
		idx := r.FirstBadIndex
		resp.FirstBadIndex = &idx
	}
	return resp
}
