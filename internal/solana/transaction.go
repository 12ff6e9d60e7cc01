package solana

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// ErrSignerNotRequired is returned when the wallet is not one of the
// transaction's required signers.
var ErrSignerNotRequired = errors.New("wallet is not a required signer")

const versionPrefixMask = 0x80

// Transaction is a wire-format Solana transaction, legacy or versioned.
// Only the signature slots are modified; the message is kept as received.
type Transaction struct {
	Signatures [][]byte
	Message    []byte

	header      messageHeader
	accountKeys [][]byte
}

type messageHeader struct {
	numRequiredSignatures       uint8
	numReadonlySignedAccounts   uint8
	numReadonlyUnsignedAccounts uint8
}

// DecodeTransaction parses a base64 transaction as returned by swap providers.
func DecodeTransaction(b64 string) (*Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode transaction base64: %w", err)
	}
	return ParseTransaction(raw)
}

// ParseTransaction parses the wire layout: compact-u16 signature count,
// the signatures, then the message.
func ParseTransaction(raw []byte) (*Transaction, error) {
	count, n, err := decodeCompactU16(raw)
	if err != nil {
		return nil, fmt.Errorf("signature count: %w", err)
	}
	off := n
	if off+count*SignatureSize > len(raw) {
		return nil, fmt.Errorf("transaction truncated: %d signatures need %d bytes, have %d", count, count*SignatureSize, len(raw)-off)
	}
	tx := &Transaction{Signatures: make([][]byte, count)}
	for i := 0; i < count; i++ {
		tx.Signatures[i] = bytes.Clone(raw[off : off+SignatureSize])
		off += SignatureSize
	}
	tx.Message = bytes.Clone(raw[off:])
	if err := tx.parseMessage(); err != nil {
		return nil, err
	}
	if int(tx.header.numRequiredSignatures) != count {
		return nil, fmt.Errorf("message requires %d signatures, transaction has %d slots", tx.header.numRequiredSignatures, count)
	}
	return tx, nil
}

func (tx *Transaction) parseMessage() error {
	msg := tx.Message
	off := 0
	if len(msg) > 0 && msg[0]&versionPrefixMask != 0 {
		if v := msg[0] &^ versionPrefixMask; v != 0 {
			return fmt.Errorf("unsupported message version %d", v)
		}
		off = 1
	}
	if off+3 > len(msg) {
		return errors.New("message header truncated")
	}
	tx.header = messageHeader{
		numRequiredSignatures:       msg[off],
		numReadonlySignedAccounts:   msg[off+1],
		numReadonlyUnsignedAccounts: msg[off+2],
	}
	off += 3

	keys, n, err := decodeCompactU16(msg[off:])
	if err != nil {
		return fmt.Errorf("account key count: %w", err)
	}
	off += n
	if off+keys*PublicKeySize > len(msg) {
		return fmt.Errorf("message truncated: %d account keys", keys)
	}
	if keys < int(tx.header.numRequiredSignatures) {
		return fmt.Errorf("message lists %d keys but requires %d signers", keys, tx.header.numRequiredSignatures)
	}
	tx.accountKeys = make([][]byte, keys)
	for i := 0; i < keys; i++ {
		tx.accountKeys[i] = msg[off : off+PublicKeySize]
		off += PublicKeySize
	}
	return nil
}

// Signers returns the base58 addresses of the required signers in order.
func (tx *Transaction) Signers() []string {
	out := make([]string, tx.header.numRequiredSignatures)
	for i := range out {
		out[i] = base58.Encode(tx.accountKeys[i])
	}
	return out
}

// Sign places the wallet's signature over the message in the wallet's signer slot.
func (tx *Transaction) Sign(k *Keypair) error {
	for i := 0; i < int(tx.header.numRequiredSignatures); i++ {
		if bytes.Equal(tx.accountKeys[i], k.public) {
			tx.Signatures[i] = k.Sign(tx.Message)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSignerNotRequired, k.PublicKey())
}

// Serialize encodes the transaction in wire format.
func (tx *Transaction) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(encodeCompactU16(len(tx.Signatures)))
	for _, sig := range tx.Signatures {
		buf.Write(sig)
	}
	buf.Write(tx.Message)
	return buf.Bytes()
}

// ID returns the transaction id, the base58 fee-payer signature.
func (tx *Transaction) ID() string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return base58.Encode(tx.Signatures[0])
}

func decodeCompactU16(b []byte) (value, size int, err error) {
	for size < 3 {
		if size >= len(b) {
			return 0, 0, errors.New("compact-u16 truncated")
		}
		elem := int(b[size])
		value |= (elem & 0x7f) << (7 * size)
		size++
		if elem&0x80 == 0 {
			return value, size, nil
		}
	}
	return 0, 0, errors.New("compact-u16 overflow")
}

func encodeCompactU16(v int) []byte {
	var out []byte
	for {
		elem := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, elem)
		}
		out = append(out, elem|0x80)
	}
}
