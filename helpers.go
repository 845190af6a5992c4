package zeropeer

import (
	"crypto/rand"

	"github.com/pkg/errors"
)

const (
	peerIDPrefix      = "-ZP0100-"
	peerIDAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	peerIDRandomLen   = 12
	handshakeProtocol = "v2"
)

func peerID() (string, error) {
	var buf [peerIDRandomLen]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", errors.WithStack(err)
	}

	id := make([]byte, 0, len(peerIDPrefix)+peerIDRandomLen)
	id = append(id, peerIDPrefix...)
	for _, b := range buf {
		id = append(id, peerIDAlphabet[int(b)%len(peerIDAlphabet)])
	}
	return string(id), nil
}
