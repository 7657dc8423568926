package types

import (
	"github.com/shopspring/decimal"

	"opay/errors"
	"opay/jsonx"
)

// Per-transaction lifecycle states
const (
	TxStateCreated       = "CREATED"
	TxStateSigned        = "SIGNED"
	TxStateQueued        = "QUEUED"
	TxStateSyncAttempted = "SYNC_ATTEMPTED"
	TxStateConfirmed     = "CONFIRMED"
	TxStateSyncFailed    = "SYNC_FAILED"
)

// TransactionPayload is the self-contained signed payment instruction. Its
// wire shape is the contract consumed by the remote verifier and must
// round-trip losslessly through any visual-code transport.
type TransactionPayload struct {
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId"`
	Amount     decimal.Decimal `json:"amount"`
	Nonce      string          `json:"nonce"`
	Signature  string          `json:"signature,omitempty"`
}

// payloadJSON keeps the amount numeric on the wire while the in-memory field
// stays a fixed-precision decimal
type payloadJSON struct {
	SenderID   string      `json:"senderId"`
	ReceiverID string      `json:"receiverId"`
	Amount     jsonxNumber `json:"amount"`
	Nonce      string      `json:"nonce"`
	Signature  string      `json:"signature,omitempty"`
}

type jsonxNumber string

func (n jsonxNumber) MarshalJSON() ([]byte, error) {
	return []byte(n), nil
}

func (n *jsonxNumber) UnmarshalJSON(data []byte) error {
	s := string(data)
	// accept both numeric and quoted amounts
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	*n = jsonxNumber(s)
	return nil
}

func (p *TransactionPayload) MarshalJSON() ([]byte, error) {
	return jsonx.Marshal(&payloadJSON{
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Amount:     jsonxNumber(p.Amount.StringFixed(2)),
		Nonce:      p.Nonce,
		Signature:  p.Signature,
	})
}

func (p *TransactionPayload) UnmarshalJSON(data []byte) error {
	var aux payloadJSON
	if err := jsonx.Unmarshal(data, &aux); err != nil {
		return err
	}

	amount, err := decimal.NewFromString(string(aux.Amount))
	if err != nil {
		return errors.NewError(errors.ErrCodeInvalidAmount, errors.ErrMsgInvalidAmount)
	}

	p.SenderID = aux.SenderID
	p.ReceiverID = aux.ReceiverID
	p.Amount = amount
	p.Nonce = aux.Nonce
	p.Signature = aux.Signature
	return nil
}

// Validate checks the payload fields before signing or transport.
func (p *TransactionPayload) Validate() error {
	if p.SenderID == "" || p.ReceiverID == "" {
		return errors.NewError(errors.ErrCodeInvalidPayload, errors.ErrMsgInvalidPayload)
	}
	if !p.Amount.IsPositive() {
		return errors.NewError(errors.ErrCodeInvalidAmount, errors.ErrMsgInvalidAmount)
	}
	if p.Nonce == "" {
		return errors.NewError(errors.ErrCodeInvalidPayload, errors.ErrMsgInvalidPayload)
	}
	return nil
}
