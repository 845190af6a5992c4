// Package peeraddr packs and unpacks the binary peer addresses carried by pex and findHashIds.
//
// Packed address is the raw host (4 bytes for IPv4, 16 for IPv6, base32-decoded name for
// onion services) followed by the port as 2 little-endian bytes.
package peeraddr

import (
	"encoding/base32"
	"encoding/binary"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	onionSuffix   = ".onion"
	onionV2Len    = 10
	onionV3Len    = 35
	portLen       = 2
	packedIPv4Len = 4 + portLen
	packedIPv6Len = 16 + portLen
)

var (
	// ErrInvalidAddress is returned when address cannot be parsed or packed form is malformed.
	ErrInvalidAddress = errors.New("invalid peer address")

	// ErrInvalidPort is returned when port is not a valid number.
	ErrInvalidPort = errors.New("invalid port")
)

// Kind is the kind of network address.
type Kind uint8

// Kinds of addresses.
const (
	IPv4 Kind = iota + 1
	IPv6
	Onion
)

// Address is the unpacked peer address.
type Address struct {
	Kind Kind
	Host string
	Port uint16
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.FormatUint(uint64(a.Port), 10))
}

// Parse parses "host:port" address.
func Parse(hostPort string) (Address, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Address{}, errors.Wrap(ErrInvalidAddress, err.Error())
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, errors.Wrapf(ErrInvalidPort, "%q: %s", portStr, err)
	}

	if strings.HasSuffix(host, onionSuffix) {
		return Address{Kind: Onion, Host: strings.ToLower(host), Port: uint16(port)}, nil
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return Address{}, errors.Wrap(ErrInvalidAddress, err.Error())
	}
	ip = ip.Unmap()
	if ip.Is4() {
		return Address{Kind: IPv4, Host: ip.String(), Port: uint16(port)}, nil
	}
	return Address{Kind: IPv6, Host: ip.String(), Port: uint16(port)}, nil
}

// Pack packs the address.
func (a Address) Pack() ([]byte, error) {
	var host []byte
	switch a.Kind {
	case IPv4, IPv6:
		ip, err := netip.ParseAddr(a.Host)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidAddress, err.Error())
		}
		ip = ip.Unmap()
		if ip.Is4() != (a.Kind == IPv4) {
			return nil, errors.Wrapf(ErrInvalidAddress, "%s does not match address kind", a.Host)
		}
		host = ip.AsSlice()
	case Onion:
		name := strings.TrimSuffix(strings.ToLower(a.Host), onionSuffix)
		decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(name))
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidAddress, "onion %q: %s", a.Host, err)
		}
		if len(decoded) != onionV2Len && len(decoded) != onionV3Len {
			return nil, errors.Wrapf(ErrInvalidAddress, "onion %q has invalid length", a.Host)
		}
		host = decoded
	default:
		return nil, errors.Wrapf(ErrInvalidAddress, "unknown address kind %d", a.Kind)
	}

	return binary.LittleEndian.AppendUint16(host, a.Port), nil
}

// Pack parses "host:port" address and packs it.
func Pack(hostPort string) ([]byte, error) {
	addr, err := Parse(hostPort)
	if err != nil {
		return nil, err
	}
	return addr.Pack()
}

// Unpack unpacks the address. Kind is deduced from the length.
func Unpack(packed []byte) (Address, error) {
	if len(packed) <= portLen {
		return Address{}, errors.Wrapf(ErrInvalidAddress, "packed address too short: %d bytes", len(packed))
	}

	host, port := packed[:len(packed)-portLen], binary.LittleEndian.Uint16(packed[len(packed)-portLen:])
	switch len(packed) {
	case packedIPv4Len, packedIPv6Len:
		ip, ok := netip.AddrFromSlice(host)
		if !ok {
			return Address{}, errors.Wrapf(ErrInvalidAddress, "invalid ip %x", host)
		}
		kind := IPv6
		if ip.Is4() {
			kind = IPv4
		}
		return Address{Kind: kind, Host: ip.String(), Port: port}, nil
	case onionV2Len + portLen, onionV3Len + portLen:
		name := strings.ToLower(base32.StdEncoding.EncodeToString(host))
		return Address{Kind: Onion, Host: name + onionSuffix, Port: port}, nil
	default:
		return Address{}, errors.Wrapf(ErrInvalidAddress, "unexpected packed address length %d", len(packed))
	}
}

// UnpackAll unpacks list of addresses.
func UnpackAll(packed [][]byte) ([]Address, error) {
	addrs := make([]Address, 0, len(packed))
	for _, p := range packed {
		addr, err := Unpack(p)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// PackAll packs list of addresses grouped by kind, as they are sent in pex.
func PackAll(addrs []Address) (ipv4, ipv6, onion [][]byte, err error) {
	ipv4, ipv6, onion = [][]byte{}, [][]byte{}, [][]byte{}
	for _, addr := range lo.Uniq(addrs) {
		packed, err := addr.Pack()
		if err != nil {
			return nil, nil, nil, err
		}
		switch addr.Kind {
		case IPv4:
			ipv4 = append(ipv4, packed)
		case IPv6:
			ipv6 = append(ipv6, packed)
		default:
			onion = append(onion, packed)
		}
	}
	return ipv4, ipv6, onion, nil
}
