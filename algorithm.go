package fieldmask

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

// HashAlgorithm identifies the digest used to mask field values.
// It is selected once per run and applied to every field.
type HashAlgorithm uint16

const (
	// AlgoMD5 is the default. Weak, but permitted for non-adversarial test data.
	AlgoMD5 HashAlgorithm = iota

	// AlgoSHA1 produces 40 hex characters.
	AlgoSHA1

	// AlgoSHA256 produces 64 hex characters.
	AlgoSHA256

	// AlgoSHA512 produces 128 hex characters.
	AlgoSHA512

	// AlgoXXH64 is xxHash64 (16 hex characters). Not cryptographic.
	AlgoXXH64

	// AlgoXXH3 is xxHash3-128 (32 hex characters). Not cryptographic.
	AlgoXXH3

	// AlgoMurmur3 is MurmurHash3 x64 128-bit (32 hex characters). Not cryptographic.
	AlgoMurmur3
)

// String returns the algorithm name.
func (a HashAlgorithm) String() string {
	switch a {
	case AlgoMD5:
		return "md5"
	case AlgoSHA1:
		return "sha1"
	case AlgoSHA256:
		return "sha256"
	case AlgoSHA512:
		return "sha512"
	case AlgoXXH64:
		return "xxh64"
	case AlgoXXH3:
		return "xxh3"
	case AlgoMurmur3:
		return "murmur3"
	default:
		return "unknown"
	}
}

// ParseHashAlgorithm maps a user-facing name such as "SHA-256" to a HashAlgorithm.
// Matching ignores case, dashes and underscores.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	norm := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(name)))
	switch norm {
	case "md5":
		return AlgoMD5, nil
	case "sha1":
		return AlgoSHA1, nil
	case "sha256":
		return AlgoSHA256, nil
	case "sha512":
		return AlgoSHA512, nil
	case "xxh64", "xxhash", "xxhash64":
		return AlgoXXH64, nil
	case "xxh3", "xxh3128":
		return AlgoXXH3, nil
	case "murmur3", "murmur3128":
		return AlgoMurmur3, nil
	default:
		return AlgoMD5, fmt.Errorf("%w: %q", fmerrors.ErrUnknownAlgorithm, name)
	}
}

// DigestSize returns the digest length in bytes.
func (a HashAlgorithm) DigestSize() int {
	switch a {
	case AlgoMD5:
		return md5.Size
	case AlgoSHA1:
		return sha1.Size
	case AlgoSHA256:
		return sha256.Size
	case AlgoSHA512:
		return sha512.Size
	case AlgoXXH64:
		return 8
	case AlgoXXH3, AlgoMurmur3:
		return 16
	default:
		return 0
	}
}

func (a HashAlgorithm) valid() bool {
	return a <= AlgoMurmur3
}

// digestInto appends the digest of data to dst and returns the extended slice.
// Multi-word digests are laid out big-endian, high word first, so the hex
// rendering matches the canonical form printed by the reference tools.
func (a HashAlgorithm) digestInto(dst, data []byte) []byte {
	switch a {
	case AlgoSHA1:
		sum := sha1.Sum(data)
		return append(dst, sum[:]...)
	case AlgoSHA256:
		sum := sha256.Sum256(data)
		return append(dst, sum[:]...)
	case AlgoSHA512:
		sum := sha512.Sum512(data)
		return append(dst, sum[:]...)
	case AlgoXXH64:
		return binary.BigEndian.AppendUint64(dst, xxhash.Sum64(data))
	case AlgoXXH3:
		h := xxh3.Hash128(data)
		dst = binary.BigEndian.AppendUint64(dst, h.Hi)
		return binary.BigEndian.AppendUint64(dst, h.Lo)
	case AlgoMurmur3:
		h1, h2 := murmur3.Sum128(data)
		dst = binary.BigEndian.AppendUint64(dst, h1)
		return binary.BigEndian.AppendUint64(dst, h2)
	default:
		sum := md5.Sum(data)
		return append(dst, sum[:]...)
	}
}
