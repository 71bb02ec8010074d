// Package candidate parses and serializes ICE candidate attribute lines
// (RFC 8839 section 5.1) with an explicit tokenizer.
package candidate

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/pion/webrtc/v4"
)

var ErrMalformedCandidate = errors.New("malformed ICE candidate")

const (
	prefix           = "candidate:"
	maxFoundationLen = 32
)

type Type string

const (
	TypeHost  = Type("host")
	TypeSrflx = Type("srflx")
	TypePrflx = Type("prflx")
	TypeRelay = Type("relay")
)

func (t Type) valid() bool {
	switch t {
	case TypeHost, TypeSrflx, TypePrflx, TypeRelay:
		return true
	}
	return false
}

// knownExtensions are the attribute pairs browsers append after the fixed fields.
var knownExtensions = map[string]bool{
	"generation":   true,
	"ufrag":        true,
	"network-id":   true,
	"network-cost": true,
	"tcptype":      true,
}

type RelatedAddress struct {
	Address string
	Port    uint16
}

type Extension struct {
	Key   string
	Value string
}

// Record is a parsed candidate line plus the media section it belongs to.
// IP and Related.Address keep the literal text seen on the wire.
type Record struct {
	Foundation    string
	Component     int
	Protocol      string
	Priority      uint32
	IP            string
	Port          uint16
	Type          Type
	Related       *RelatedAddress
	Extensions    []Extension
	SDPMid        string
	SDPMLineIndex uint16
}

// ParseError names the field that failed to parse. It matches ErrMalformedCandidate.
type ParseError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("malformed ICE candidate: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed ICE candidate: %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedCandidate
}

func fieldError(field, value, reason string) error {
	return &ParseError{Field: field, Value: value, Reason: reason}
}

type tokenizer struct {
	tokens []string
	pos    int
}

func (t *tokenizer) next(field string) (string, error) {
	if t.pos >= len(t.tokens) {
		return "", fieldError(field, "", "missing")
	}
	tok := t.tokens[t.pos]
	t.pos++
	if tok == "" {
		return "", fieldError(field, "", "empty token, fields must be separated by a single space")
	}
	return tok, nil
}

func (t *tokenizer) done() bool {
	return t.pos >= len(t.tokens)
}

// Parse decodes a candidate line such as
//
//	candidate:842163049 1 udp 1677729535 203.0.113.7 46154 typ srflx raddr 10.0.0.5 rport 46154
//
// The whole line must match; a valid prefix followed by anything else fails.
func Parse(line, sdpMid string, sdpMLineIndex uint16) (Record, error) {
	if !strings.HasPrefix(line, prefix) {
		return Record{}, fieldError("prefix", line, `line must start with "candidate:"`)
	}
	t := &tokenizer{tokens: strings.Split(strings.TrimPrefix(line, prefix), " ")}
	r := Record{SDPMid: sdpMid, SDPMLineIndex: sdpMLineIndex}

	tok, err := t.next("foundation")
	if err != nil {
		return Record{}, err
	}
	if err := validateFoundation(tok); err != nil {
		return Record{}, err
	}
	r.Foundation = tok

	if tok, err = t.next("component"); err != nil {
		return Record{}, err
	}
	component, err := strconv.ParseUint(tok, 10, 31)
	if err != nil {
		return Record{}, fieldError("component", tok, "not a non-negative integer")
	}
	r.Component = int(component)

	if tok, err = t.next("protocol"); err != nil {
		return Record{}, err
	}
	if !isToken(tok) {
		return Record{}, fieldError("protocol", tok, "not a transport token")
	}
	r.Protocol = tok

	if tok, err = t.next("priority"); err != nil {
		return Record{}, err
	}
	priority, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return Record{}, fieldError("priority", tok, "not a 32-bit unsigned integer")
	}
	r.Priority = uint32(priority)

	if tok, err = t.next("ip"); err != nil {
		return Record{}, err
	}
	if err := validateAddress("ip", tok); err != nil {
		return Record{}, err
	}
	r.IP = tok

	if tok, err = t.next("port"); err != nil {
		return Record{}, err
	}
	if r.Port, err = parsePort("port", tok); err != nil {
		return Record{}, err
	}

	if tok, err = t.next("typ"); err != nil {
		return Record{}, err
	}
	if tok != "typ" {
		return Record{}, fieldError("typ", tok, `expected keyword "typ"`)
	}
	if tok, err = t.next("type"); err != nil {
		return Record{}, err
	}
	r.Type = Type(tok)
	if !r.Type.valid() {
		return Record{}, fieldError("type", tok, "unknown candidate type")
	}

	for !t.done() {
		key, err := t.next("attribute")
		if err != nil {
			return Record{}, err
		}
		switch {
		case key == "raddr":
			if r.Related != nil || len(r.Extensions) > 0 {
				return Record{}, fieldError("raddr", key, "related address must directly follow the type")
			}
			if r.Related, err = parseRelated(t); err != nil {
				return Record{}, err
			}
		case knownExtensions[key]:
			value, err := t.next(key)
			if err != nil {
				return Record{}, err
			}
			r.Extensions = append(r.Extensions, Extension{Key: key, Value: value})
		default:
			return Record{}, fieldError("attribute", key, "unexpected trailing data")
		}
	}

	return r, nil
}

func parseRelated(t *tokenizer) (*RelatedAddress, error) {
	addr, err := t.next("raddr")
	if err != nil {
		return nil, err
	}
	if err := validateAddress("raddr", addr); err != nil {
		return nil, err
	}
	keyword, err := t.next("rport")
	if err != nil {
		return nil, fieldError("rport", "", "raddr without rport")
	}
	if keyword != "rport" {
		return nil, fieldError("rport", keyword, `expected keyword "rport"`)
	}
	tok, err := t.next("rport")
	if err != nil {
		return nil, err
	}
	port, err := parsePort("rport", tok)
	if err != nil {
		return nil, err
	}
	return &RelatedAddress{Address: addr, Port: port}, nil
}

// Serialize renders r as a candidate line that Parse accepts.
func Serialize(r Record) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(r.Foundation)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(r.Component))
	b.WriteByte(' ')
	b.WriteString(r.Protocol)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(uint64(r.Priority), 10))
	b.WriteByte(' ')
	b.WriteString(r.IP)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(uint64(r.Port), 10))
	b.WriteString(" typ ")
	b.WriteString(string(r.Type))
	if r.Related != nil {
		b.WriteString(" raddr ")
		b.WriteString(r.Related.Address)
		b.WriteString(" rport ")
		b.WriteString(strconv.FormatUint(uint64(r.Related.Port), 10))
	}
	for _, ext := range r.Extensions {
		b.WriteByte(' ')
		b.WriteString(ext.Key)
		b.WriteByte(' ')
		b.WriteString(ext.Value)
	}
	return b.String()
}

func ToICECandidateInit(r Record) webrtc.ICECandidateInit {
	mid := r.SDPMid
	index := r.SDPMLineIndex
	return webrtc.ICECandidateInit{
		Candidate:     Serialize(r),
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	}
}

// FromICECandidateInit parses init.Candidate; a missing sdpMid or index becomes its zero value.
func FromICECandidateInit(init webrtc.ICECandidateInit) (Record, error) {
	var (
		mid   string
		index uint16
	)
	if init.SDPMid != nil {
		mid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		index = *init.SDPMLineIndex
	}
	return Parse(init.Candidate, mid, index)
}

func validateFoundation(s string) error {
	if len(s) > maxFoundationLen {
		return fieldError("foundation", s, "longer than 32 characters")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isAlnum(c) && c != '+' && c != '/' {
			return fieldError("foundation", s, "contains a character outside ice-char")
		}
	}
	return nil
}

func validateAddress(field, s string) error {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return fieldError(field, s, "not an IPv4 or IPv6 literal")
	}
	if addr.Zone() != "" {
		return fieldError(field, s, "zoned IPv6 addresses are not allowed")
	}
	return nil
}

func parsePort(field, s string) (uint16, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fieldError(field, s, "not a port number")
	}
	return uint16(port), nil
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isAlnum(s[i]) {
			return false
		}
	}
	return true
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
