package blockchain

import "strconv"

// MiningSender is the sentinel sender identifying a coinbase reward. A
// transaction with this sender carries no signature and needs none: it
// creates new coins rather than spending an existing balance.
const MiningSender = "MINING"

// Transaction is a value transfer from Sender to Recipient. Sender and
// Recipient are hex-encoded DER public keys (see the wallet package);
// Signature is a hex-encoded PKCS#1 v1.5 signature over the canonical
// digest of (Sender, Recipient, Amount), empty for coinbase transactions.
//
// Field order matters: canonical serialization (used for block hashing and
// proof-of-work) always emits Sender, Recipient, Signature, Amount in that
// order; the signing payload is Sender, Recipient, Amount (SigningPayload),
// matching the order the node the spec was distilled from hashes in.
type Transaction struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Signature string  `json:"signature"`
}

// NewTransaction builds a Transaction value. It does not sign or verify;
// callers sign separately with wallet.Sign and verify with wallet.Verify or
// verifier.VerifyTransaction.
func NewTransaction(sender, recipient string, amount float64, signature string) Transaction {
	return Transaction{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Signature: signature,
	}
}

// IsCoinbase reports whether tx is a mining reward rather than a
// user-initiated transfer.
func (tx Transaction) IsCoinbase() bool {
	return tx.Sender == MiningSender
}

// SigningPayload returns the exact byte sequence whose SHA-256 digest is
// signed and verified: the UTF-8 concatenation of sender, recipient and the
// decimal rendering of amount, with no separators. This must stay bit-exact
// with the canonical form or previously issued signatures stop verifying.
func (tx Transaction) SigningPayload() []byte {
	return []byte(tx.Sender + tx.Recipient + formatAmount(tx.Amount))
}

// canonicalString renders the transaction the way it is embedded inside a
// block's hash input: its fields concatenated in a fixed order with no
// separators. The exact text
// form is part of chain identity (see blockchain.Hash), so field order and
// formatting are fixed, not merely descriptive.
func (tx Transaction) canonicalString() string {
	return tx.Sender + tx.Recipient + tx.Signature + formatAmount(tx.Amount)
}

// formatAmount renders a float64 as the shortest plain decimal that
// round-trips, with no exponent and no trailing ".0" for whole numbers (10
// renders as "10", 2.5 as "2.5"). This keeps hash/signature inputs stable
// across the whole node rather than tied to one call site's formatting.
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
