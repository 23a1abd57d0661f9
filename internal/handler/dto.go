package handler

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// SupplyAmount is a whole-token-unit quantity that accepts either a
// JSON number or a decimal string, so callers whose JSON libraries
// refuse large integers can still express supplies above 2^53.
type SupplyAmount struct {
	value *big.Int
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SupplyAmount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		raw = str
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fmt.Errorf("initialSupply must be a whole number, got %s", raw)
	}
	s.value = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s SupplyAmount) MarshalJSON() ([]byte, error) {
	if s.value == nil {
		return []byte("null"), nil
	}
	return []byte(s.value.String()), nil
}

// Value returns the parsed amount, nil when absent.
func (s SupplyAmount) Value() *big.Int {
	return s.value
}

// DeployTokenRequest is the request body for POST /deploy-token.
type DeployTokenRequest struct {
	Name           string       `json:"name" validate:"required,max=64"`
	Symbol         string       `json:"symbol" validate:"required,max=16"`
	InitialSupply  SupplyAmount `json:"initialSupply"`
	FactoryAddress string       `json:"factoryAddress" validate:"omitempty,len=42,startswith=0x"`
}

// DeployTokenResponse is the success body for POST /deploy-token. The
// per-step output fields carry the raw tool output for operator
// debugging.
type DeployTokenResponse struct {
	Success      bool   `json:"success"`
	TokenAddress string `json:"tokenAddress"`
	Message      string `json:"message"`
	DeploymentID string `json:"deploymentId"`

	DeployOutput   string `json:"deployOutput,omitempty"`
	ActivateOutput string `json:"activateOutput,omitempty"`
	CacheOutput    string `json:"cacheOutput,omitempty"`
	InitOutput     string `json:"initOutput,omitempty"`
	RegisterOutput string `json:"registerOutput,omitempty"`
}

// FailureDetails is the structured diagnostics block attached to a
// failed deployment response.
type FailureDetails struct {
	Message string `json:"message"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
	Stage   string `json:"stage"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
