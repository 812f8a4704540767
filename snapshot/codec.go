package snapshot

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Format selects a snapshot encoding.
type Format string

const (
	FormatCBOR    Format = "cbor"
	FormatMsgpack Format = "msgpack"
	FormatText    Format = "text"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCBOR, FormatMsgpack, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("snapshot: unknown format %q (want cbor, msgpack or text)", s)
}

// cborEncMode uses canonical mode so equal snapshots encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalCBOR serializes a Snapshot to canonical CBOR bytes.
func MarshalCBOR(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalCBOR deserializes a Snapshot from CBOR bytes.
func UnmarshalCBOR(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal cbor: %w", err)
	}
	return &s, nil
}

// MarshalMsgpack serializes a Snapshot to msgpack bytes.
func MarshalMsgpack(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("snapshot: marshal msgpack: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalMsgpack deserializes a Snapshot from msgpack bytes.
func UnmarshalMsgpack(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal msgpack: %w", err)
	}
	return &s, nil
}

// Digest is the SHA-256 of the canonical CBOR encoding. Version counters
// are excluded, so two runtimes with the same graph share a digest.
func (s *Snapshot) Digest() ([32]byte, error) {
	c := *s
	c.Version, c.HierarchyEpoch = 0, 0
	data, err := MarshalCBOR(&c)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// Encode writes s to w in the given format.
func Encode(w io.Writer, s *Snapshot, f Format) error {
	switch f {
	case FormatCBOR:
		data, err := MarshalCBOR(s)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(s)
	case FormatText:
		return WriteText(w, s)
	}
	return fmt.Errorf("snapshot: unknown format %q", f)
}

// Decode reads a binary snapshot. Text snapshots cannot be decoded.
func Decode(r io.Reader, f Format) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatCBOR:
		return UnmarshalCBOR(data)
	case FormatMsgpack:
		return UnmarshalMsgpack(data)
	}
	return nil, fmt.Errorf("snapshot: cannot decode format %q", f)
}

// WriteText renders s for people: one block per module with its
// ancestors and method entries.
func WriteText(w io.Writer, s *Snapshot) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "runtime %s (version %d, epoch %d)\n", s.Runtime, s.Version, s.HierarchyEpoch)
	for _, m := range s.Modules {
		fmt.Fprintf(&buf, "\n%s %s", m.Kind, m.Name)
		if m.Superclass != "" {
			fmt.Fprintf(&buf, " < %s", m.Superclass)
		}
		if m.Frozen {
			buf.WriteString(" (frozen)")
		}
		buf.WriteByte('\n')
		fmt.Fprintf(&buf, "  ancestors: %v\n", m.Ancestors)
		for _, me := range m.Methods {
			if me.Undefined {
				fmt.Fprintf(&buf, "  undef %s\n", me.Name)
				continue
			}
			fmt.Fprintf(&buf, "  %-9s %s/%s", me.Visibility, me.Name, arityString(me))
			if me.Owner != m.Name {
				fmt.Fprintf(&buf, " from %s", me.Owner)
			}
			if me.Original != "" {
				fmt.Fprintf(&buf, " alias of %s", me.Original)
			}
			buf.WriteByte('\n')
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func arityString(me Method) string {
	s := fmt.Sprint(me.Required)
	if me.Optional > 0 {
		s += fmt.Sprintf("..%d", me.Required+me.Optional)
	}
	if me.Rest {
		s += "+"
	}
	return s
}
