package server

import (
	"encoding/json"
	"math/big"

	"earlyadopters/internal/chain"
	"earlyadopters/internal/domain"
)

// Request bodies

type DevLoginRequest struct {
	ActorID string `json:"actor_id" doc:"Account address or eip155 DID"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type CreateProjectRequest struct {
	MetadataURI string `json:"metadata_uri" example:"ipfs://bafkreih..."`
}

type AddActivityRequest struct {
	Type      string `json:"type" example:"SEND_FEEDBACK"`
	DetailURI string `json:"detail_uri"`
}

type SubmitCompletionRequest struct {
	Content string `json:"content"`
}

type AcceptRequest struct {
	CompletedActivityID string `json:"completed_activity_id" format:"uuid"`
	Author              string `json:"author"`
}

// AmountRequest carries a value either in native units or in wei. Exactly one
// of the two must be set.
type AmountRequest struct {
	Value    string `json:"value,omitempty" example:"0.1" doc:"Amount in native units"`
	ValueWei string `json:"value_wei,omitempty" example:"100000000000000000"`
}

type DistributeRequest struct {
	DetailURI string `json:"detail_uri"`
	AmountRequest
}

type ProfileRequest struct {
	URI string `json:"uri"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

// Responses

type MeResponse struct {
	ActorID string `json:"actor_id"`
	DID     string `json:"did"`
	Source  string `json:"source" enum:"jwt,api_key,legacy_header"`
}

type ContentResponse struct {
	URI string `json:"uri"`
}

type AcceptedResponse struct {
	Accepted bool `json:"accepted"`
}

type ChatAccessResponse struct {
	Status string `json:"status" example:"Access allowed"`
}

type BalanceResponse struct {
	Account   string `json:"account"`
	Wei       string `json:"wei"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty" format:"date-time"`
}

type RewardResponse struct {
	domain.Reward
	ValueFormatted string `json:"value_formatted"`
	Currency       string `json:"currency,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	Key       string `json:"key,omitempty" doc:"Only returned on creation"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	ProjectID  int64          `json:"project_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedProjects struct {
	Items      []domain.Project `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		ProjectID:  e.ProjectID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func balanceResponse(b domain.Balance, c chain.Chain) BalanceResponse {
	return BalanceResponse{
		Account:   b.Account,
		Wei:       b.Amount,
		Amount:    formatWei(b.Amount, c.Decimals),
		Currency:  c.Currency,
		UpdatedAt: b.UpdatedAt,
	}
}

func rewardResponse(r domain.Reward, c chain.Chain) RewardResponse {
	if r.Payouts == nil {
		r.Payouts = []domain.Payout{}
	}
	return RewardResponse{
		Reward:         r,
		ValueFormatted: formatWei(r.Value, c.Decimals),
		Currency:       c.Currency,
	}
}

func apiKeyResponse(k domain.APIKey, plaintext string) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt, Key: plaintext}
}

func formatWei(wei string, decimals int32) string {
	v, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return wei
	}
	return chain.FormatAmount(v, decimals)
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
