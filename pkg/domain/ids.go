package domain

import (
	"encoding/hex"
	"strconv"
	"strings"

	dErrors "certtrace/pkg/domain-errors"
)

// AddressLength is the byte length of an actor identity.
const AddressLength = 20

// DigestLength is the byte length of an anchored document digest.
const DigestLength = 32

// Address identifies an actor (administrator, issuer, operator or producer).
// The zero value is the null identity and is never a valid grantee or owner.
type Address [AddressLength]byte

// ZeroAddress is the null identity.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed, 40 hex digit address. Case is ignored.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := decodeHex(s, AddressLength)
	if err != nil {
		return a, dErrors.Wrap(err, dErrors.CodeValidation, "invalid address")
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String renders the canonical lower-case 0x form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Digest is a fixed-size cryptographic digest of an off-record document.
// The zero value means "no digest" and is rejected on recording.
type Digest [DigestLength]byte

// ParseDigest parses a 0x-prefixed, 64 hex digit digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := decodeHex(s, DigestLength)
	if err != nil {
		return d, dErrors.Wrap(err, dErrors.CodeValidation, "invalid digest")
	}
	copy(d[:], raw)
	return d, nil
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CertificateID is the dense, 1-based handle of an issued certificate.
type CertificateID uint64

// ParseCertificateID parses a decimal handle. Zero is rejected: handles start at 1.
func ParseCertificateID(s string) (CertificateID, error) {
	n, err := parsePositive(s)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeValidation, "invalid certificate id")
	}
	return CertificateID(n), nil
}

func (id CertificateID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// OperationID is the dense, 1-based sequence number of a recorded operation.
type OperationID uint64

// ParseOperationID parses a decimal sequence number. Zero is rejected.
func ParseOperationID(s string) (OperationID, error) {
	n, err := parsePositive(s)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeValidation, "invalid operation id")
	}
	return OperationID(n), nil
}

func (id OperationID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func decodeHex(s string, size int) ([]byte, error) {
	s = strings.TrimSpace(s)
	body, ok := strings.CutPrefix(s, "0x")
	if !ok {
		body, ok = strings.CutPrefix(s, "0X")
	}
	if !ok {
		return nil, errMissingPrefix
	}
	if len(body) != size*2 {
		return nil, errBadLength
	}
	return hex.DecodeString(body)
}

func parsePositive(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errZeroID
	}
	return n, nil
}

type parseError string

func (e parseError) Error() string { return string(e) }

const (
	errMissingPrefix parseError = "missing 0x prefix"
	errBadLength     parseError = "wrong length"
	errZeroID        parseError = "identifiers start at 1"
)
