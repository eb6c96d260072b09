package vault

// SecretBytes is a zero-on-drop container for key and plaintext material.
// Callers must call Close when the value is no longer needed; Close
// overwrites the backing array before releasing it.
type SecretBytes struct {
	b []byte
}

// NewSecretBytes takes ownership of b and wraps it.
func NewSecretBytes(b []byte) *SecretBytes {
	return &SecretBytes{b: b}
}

// Bytes returns the underlying slice. The caller must not retain it past
// the container's Close call.
func (s *SecretBytes) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// String exposes the secret as a string. Use sparingly; Go strings are
// immutable and cannot be zeroed, so prefer Bytes for anything long-lived.
func (s *SecretBytes) String() string {
	if s == nil {
		return ""
	}
	return string(s.b)
}

// Close zeroes the backing array.
func (s *SecretBytes) Close() {
	if s == nil {
		return
	}
	for i := range s.b {
		s.b[i] = 0
	}
	s.b = nil
}
