package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionV1 = 1

const (
	flagAuthenticated     = 1 << 0
	flagTwoFactorVerified = 1 << 1
)

// Encode renders s as the compact binary record stored in Redis. The session
// id itself lives in the Redis key and is not part of the blob.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionV1)

	if err := writeShortString(&buf, s.AccountID, "accountID"); err != nil {
		return nil, err
	}
	if err := writeString(&buf, s.Email, "email"); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, s.Role, "role"); err != nil {
		return nil, err
	}
	if err := writeString(&buf, s.IP, "ip"); err != nil {
		return nil, err
	}
	if err := writeString(&buf, s.UserAgent, "userAgent"); err != nil {
		return nil, err
	}

	var flags byte
	if s.Authenticated {
		flags |= flagAuthenticated
	}
	if s.TwoFactorVerified {
		flags |= flagTwoFactorVerified
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a stored record. It fails on unknown schema versions rather
// than guessing.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionV1 {
		return nil, errors.New("unknown session schema version")
	}

	s := &Session{}
	if s.AccountID, err = readShortString(reader); err != nil {
		return nil, err
	}
	if s.Email, err = readString(reader); err != nil {
		return nil, err
	}
	if s.Role, err = readShortString(reader); err != nil {
		return nil, err
	}
	if s.IP, err = readString(reader); err != nil {
		return nil, err
	}
	if s.UserAgent, err = readString(reader); err != nil {
		return nil, err
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.Authenticated = flags&flagAuthenticated != 0
	s.TwoFactorVerified = flags&flagTwoFactorVerified != 0

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}

func writeShortString(buf *bytes.Buffer, v, field string) error {
	if len(v) > 255 {
		return errors.New(field + " too long")
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func writeString(buf *bytes.Buffer, v, field string) error {
	if len(v) > 65535 {
		return errors.New(field + " too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
