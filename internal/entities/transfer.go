package entities

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// RecordStatusSubmitted is the only status an audit record is ever written with.
const RecordStatusSubmitted = "submitted"

// Freshness is the recent blockhash a transfer is built against and the last
// block height at which the network still accepts it.
type Freshness struct {
	Blockhash            solana.Hash `json:"blockhash"`
	LastValidBlockHeight uint64      `json:"last_valid_block_height"`
}

// TransferRequest is an unsigned single-instruction value transfer.
type TransferRequest struct {
	SessionID string
	PlanLabel string

	Sender    solana.PublicKey
	Recipient solana.PublicKey

	// Amount is the decimal amount as entered, Lamports its exact conversion.
	Amount   string
	Lamports uint64

	Freshness   Freshness
	Transaction *solana.Transaction
}

// FeePayer returns the account paying the network fee.
func (r *TransferRequest) FeePayer() solana.PublicKey {
	if r.Transaction == nil || len(r.Transaction.Message.AccountKeys) == 0 {
		return solana.PublicKey{}
	}
	return r.Transaction.Message.AccountKeys[0]
}

// Encode returns the base64 wire form of the (possibly unsigned) transaction.
func (r *TransferRequest) Encode() (string, error) {
	if r.Transaction == nil {
		return "", fmt.Errorf("transfer request has no transaction")
	}

	buf := new(bytes.Buffer)
	if err := r.Transaction.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// TransferRecord is the audit document written once a transfer is confirmed.
type TransferRecord struct {
	SenderAddress    string    `json:"sender_address" bson:"senderPublicKey" db:"sender_address"`
	SenderEmail      string    `json:"sender_email,omitempty" bson:"senderEmail,omitempty" db:"sender_email"`
	RecipientAddress string    `json:"recipient_address" bson:"receiverPublicKey" db:"recipient_address"`
	PlanLabel        string    `json:"plan_label" bson:"card" db:"plan_label"`
	Amount           string    `json:"amount" bson:"amount" db:"amount"`
	AmountLamports   uint64    `json:"amount_lamports" bson:"amountLamports" db:"amount_lamports"`
	Signature        string    `json:"signature" bson:"signature" db:"signature"`
	Timestamp        time.Time `json:"timestamp" bson:"timestamp" db:"created_at"`
	Status           string    `json:"status" bson:"status" db:"status"`
}
