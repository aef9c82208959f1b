package issue

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// IDLen is the fixed width of an issue identifier.
const IDLen = 24

type ID string

func (id ID) String() string { return string(id) }

// ParseID checks the identifier contract. Only the width in characters is
// enforced; the characters themselves are opaque.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrMissingID
	}
	if !utf8.ValidString(s) || utf8.RuneCountInString(s) != IDLen {
		return "", ErrInvalidID
	}
	return ID(s), nil
}

var (
	idCounter = randomCounterSeed()
	idProcess = randomBytes5()
)

// NewID returns a 24-char hex id: 4 bytes of unix seconds, 5 bytes fixed per
// process, 3 bytes of a wrapping counter. Ids sort by creation second.
func NewID() ID {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(time.Now().Unix()))
	copy(b[4:9], idProcess[:])
	c := atomic.AddUint32(&idCounter, 1)
	b[9] = byte(c >> 16)
	b[10] = byte(c >> 8)
	b[11] = byte(c)
	return ID(hex.EncodeToString(b[:]))
}

func randomBytes5() [5]byte {
	var b [5]byte
	_, _ = rand.Read(b[:])
	return b
}

func randomCounterSeed() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}
