package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tip is the node's most recently observed chain position.
type Tip struct {
	Slot        uint64 `json:"slot"`
	BlockHash   string `json:"blockHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Epoch       uint64 `json:"epoch"`
	IsSyncing   bool   `json:"isSyncing"`
}

// RawStatus is one unprocessed status report from the external node.
// Status is an open label set; callers must handle labels they don't know.
type RawStatus struct {
	Slot        uint64 `json:"slot"`
	BlockHash   string `json:"blockHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Epoch       uint64 `json:"epoch"`
	IsSyncing   bool   `json:"isSyncing"`
	Status      string `json:"status"`
}

// Tip returns the chain position carried by the report.
func (r *RawStatus) Tip() Tip {
	return Tip{
		Slot:        r.Slot,
		BlockHash:   r.BlockHash,
		BlockNumber: r.BlockNumber,
		Epoch:       r.Epoch,
		IsSyncing:   r.IsSyncing,
	}
}

// wireStatus mirrors RawStatus with pointer fields so missing keys can be
// told apart from zero values.
type wireStatus struct {
	Slot        *uint64 `json:"slot"`
	BlockHash   *string `json:"blockHash"`
	BlockNumber *uint64 `json:"blockNumber"`
	Epoch       *uint64 `json:"epoch"`
	IsSyncing   *bool   `json:"isSyncing"`
	Status      *string `json:"status"`
}

// DecodeStatus decodes a JSON status report. Every field is required; a
// missing field, a wrong type or an empty report yields a *MalformedError.
func DecodeStatus(report string) (*RawStatus, error) {
	if strings.TrimSpace(report) == "" {
		return nil, &MalformedError{Detail: "empty status report"}
	}

	var w wireStatus
	if err := json.Unmarshal([]byte(report), &w); err != nil {
		return nil, &MalformedError{Detail: fmt.Sprintf("decode status report: %v", err)}
	}

	var missing []string
	if w.Slot == nil {
		missing = append(missing, "slot")
	}
	if w.BlockHash == nil {
		missing = append(missing, "blockHash")
	}
	if w.BlockNumber == nil {
		missing = append(missing, "blockNumber")
	}
	if w.Epoch == nil {
		missing = append(missing, "epoch")
	}
	if w.IsSyncing == nil {
		missing = append(missing, "isSyncing")
	}
	if w.Status == nil {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return nil, &MalformedError{Detail: "status report missing " + strings.Join(missing, ", ")}
	}

	return &RawStatus{
		Slot:        *w.Slot,
		BlockHash:   *w.BlockHash,
		BlockNumber: *w.BlockNumber,
		Epoch:       *w.Epoch,
		IsSyncing:   *w.IsSyncing,
		Status:      *w.Status,
	}, nil
}
