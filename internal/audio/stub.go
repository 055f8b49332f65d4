package audio

import "context"

// StubNormalizer returns canned results for tests and wiring checks.
type StubNormalizer struct {
	Blob  *Blob
	Err   error
	Calls int
}

var _ Normalizer = (*StubNormalizer)(nil)

// Normalize returns the configured blob or error.
func (s *StubNormalizer) Normalize(ctx context.Context, data []byte, sourceExt string) (*Blob, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Blob != nil {
		return s.Blob, nil
	}
	return &Blob{Data: data, ContentType: NormalizedContentType, Ext: NormalizedExt}, nil
}
