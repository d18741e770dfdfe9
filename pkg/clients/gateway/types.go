package gateway

import (
	"encoding/json"
	"strings"
)

type LedgerState struct {
	Network      string `json:"network"`
	StateVersion int64  `json:"state_version"`
	Epoch        int64  `json:"epoch"`
	Round        int64  `json:"round"`
}

type vaultBalance struct {
	Balance string `json:"balance"`
}

type pendingWithdrawal struct {
	EpochNumber     int64  `json:"epoch_number"`
	StakeUnitAmount string `json:"stake_unit_amount"`
}

type validatorState struct {
	ClaimNft                            string              `json:"claim_nft"`
	AlreadyUnlockedOwnerStakeUnitAmount string              `json:"already_unlocked_owner_stake_unit_amount"`
	PendingOwnerStakeUnitWithdrawals    []pendingWithdrawal `json:"pending_owner_stake_unit_withdrawals"`
}

type validatorItem struct {
	Address                          string         `json:"address"`
	LockedOwnerStakeUnitVault        vaultBalance   `json:"locked_owner_stake_unit_vault"`
	PendingOwnerStakeUnitUnlockVault vaultBalance   `json:"pending_owner_stake_unit_unlock_vault"`
	State                            validatorState `json:"state"`
}

type validatorsListResponse struct {
	LedgerState LedgerState `json:"ledger_state"`
	Validators  struct {
		Items      []validatorItem `json:"items"`
		NextCursor *string         `json:"next_cursor"`
	} `json:"validators"`
}

type fungibleVaultsResponse struct {
	Items []struct {
		VaultAddress string `json:"vault_address"`
		Amount       string `json:"amount"`
	} `json:"items"`
	NextCursor *string `json:"next_cursor"`
}

type gatewayStatusResponse struct {
	LedgerState LedgerState `json:"ledger_state"`
}

type entityDetailsResponse struct {
	Items []struct {
		Address string `json:"address"`
		Details struct {
			Type        string `json:"type"`
			TotalMinted string `json:"total_minted"`
		} `json:"details"`
	} `json:"items"`
}

// ProgrammaticValue is the gateway's self-describing encoding of ledger data.
type ProgrammaticValue struct {
	Kind      string              `json:"kind"`
	FieldName string              `json:"field_name,omitempty"`
	Value     json.RawMessage     `json:"value,omitempty"`
	Fields    []ProgrammaticValue `json:"fields,omitempty"`
	Elements  []ProgrammaticValue `json:"elements,omitempty"`
	Entries   []ProgrammaticEntry `json:"entries,omitempty"`
}

type ProgrammaticEntry struct {
	Key   ProgrammaticValue `json:"key"`
	Value ProgrammaticValue `json:"value"`
}

// String returns the scalar value as a string. Composite values return "".
func (p *ProgrammaticValue) String() string {
	if len(p.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Value, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(p.Value))
}

// Field returns the named field of a Tuple, or nil.
func (p *ProgrammaticValue) Field(name string) *ProgrammaticValue {
	for i := range p.Fields {
		if p.Fields[i].FieldName == name {
			return &p.Fields[i]
		}
	}
	return nil
}

// Flatten maps each top level field name to its scalar value. Array fields are joined with ",".
func (p *ProgrammaticValue) Flatten() map[string]string {
	out := make(map[string]string, len(p.Fields))
	for _, f := range p.Fields {
		if f.FieldName == "" {
			continue
		}
		if len(f.Elements) > 0 {
			values := make([]string, 0, len(f.Elements))
			for _, e := range f.Elements {
				values = append(values, e.String())
			}
			out[f.FieldName] = strings.Join(values, ",")
			continue
		}
		out[f.FieldName] = f.String()
	}
	return out
}

type NonFungibleData struct {
	NonFungibleId string `json:"non_fungible_id"`
	IsBurned      bool   `json:"is_burned"`
	Data          struct {
		ProgrammaticJson ProgrammaticValue `json:"programmatic_json"`
	} `json:"data"`
}

type nonFungibleDataResponse struct {
	ResourceAddress string            `json:"resource_address"`
	NonFungibleIds  []NonFungibleData `json:"non_fungible_ids"`
}

type NonFungibleLocation struct {
	NonFungibleId                    string `json:"non_fungible_id"`
	IsBurned                         bool   `json:"is_burned"`
	OwningVaultAddress               string `json:"owning_vault_address"`
	OwningVaultGlobalAncestorAddress string `json:"owning_vault_global_ancestor_address"`
}

type nonFungibleLocationResponse struct {
	NonFungibleIds []NonFungibleLocation `json:"non_fungible_ids"`
}

type ResourceHolder struct {
	Type          string `json:"type"`
	HolderAddress string `json:"holder_address"`
	Amount        string `json:"amount"`
}

type ResourceHoldersPage struct {
	TotalCount int64            `json:"total_count"`
	NextCursor *string          `json:"next_cursor"`
	Items      []ResourceHolder `json:"items"`
}

type TransactionStatus string

const (
	TransactionStatus_CommittedSuccess             TransactionStatus = "CommittedSuccess"
	TransactionStatus_CommittedFailure             TransactionStatus = "CommittedFailure"
	TransactionStatus_PermanentlyRejected          TransactionStatus = "PermanentlyRejected"
	TransactionStatus_LikelyButNotCertainRejection TransactionStatus = "LikelyButNotCertainRejection"
	TransactionStatus_Pending                      TransactionStatus = "Pending"
	TransactionStatus_Unknown                      TransactionStatus = "Unknown"
)

// IsTerminal reports whether polling can stop.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatus_CommittedSuccess, TransactionStatus_CommittedFailure, TransactionStatus_PermanentlyRejected:
		return true
	}
	return false
}

type TransactionStatusResult struct {
	IntentStatus TransactionStatus `json:"intent_status"`
	ErrorMessage string            `json:"error_message"`
}

type submitResponse struct {
	Duplicate bool `json:"duplicate"`
}

type TransactionEvent struct {
	Name    string            `json:"name"`
	Emitter json.RawMessage   `json:"emitter"`
	Data    ProgrammaticValue `json:"data"`
}

type committedDetailsResponse struct {
	Transaction struct {
		IntentHash string `json:"intent_hash"`
		Receipt    struct {
			Status string             `json:"status"`
			Events []TransactionEvent `json:"events"`
		} `json:"receipt"`
	} `json:"transaction"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}
