package message

import (
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
)

// NewConfiguration creates the configuration of an instance run by the
// given trustees, in this order.
func NewConfiguration(trustees []kyber.Point, threshold int, params Parameters) (*Configuration, error) {
	c := &Configuration{
		Threshold:  uint32(threshold),
		Parameters: params,
	}
	for _, t := range trustees {
		buf, err := t.MarshalBinary()
		if err != nil {
			return nil, xerrors.Errorf("marshalling trustee key: %v: %w", err, conclave.ErrSerialization)
		}
		c.Trustees = append(c.Trustees, buf)
	}
	if _, err := c.Keys(); err != nil {
		return nil, err
	}
	return c, nil
}

// Keys decodes and checks the trustee keys: there must be at least one
// trustee, all keys distinct, and the threshold between 1 and the number of
// trustees.
func (c *Configuration) Keys() ([]kyber.Point, error) {
	n := len(c.Trustees)
	if n == 0 {
		return nil, xerrors.Errorf("configuration without trustees: %w", conclave.ErrValidation)
	}
	if c.Threshold < 1 || int(c.Threshold) > n {
		return nil, xerrors.Errorf("threshold %d out of range for %d trustees: %w",
			c.Threshold, n, conclave.ErrValidation)
	}
	keys := make([]kyber.Point, n)
	for i, buf := range c.Trustees {
		p := conclave.Suite.Point()
		if err := p.UnmarshalBinary(buf); err != nil {
			return nil, xerrors.Errorf("trustee %d key: %v: %w", i, err, conclave.ErrValidation)
		}
		for j := 0; j < i; j++ {
			if keys[j].Equal(p) {
				return nil, xerrors.Errorf("trustees %d and %d share a key: %w", j, i, conclave.ErrValidation)
			}
		}
		keys[i] = p
	}
	return keys, nil
}

// Position returns the index of the key in the trustee list, or -1.
func (c *Configuration) Position(public kyber.Point) int {
	buf, err := public.MarshalBinary()
	if err != nil {
		return -1
	}
	for i, t := range c.Trustees {
		if string(t) == string(buf) {
			return i
		}
	}
	return -1
}

// AuthorityKey decodes Parameters.Authority. It returns nil if no
// authority is set.
func (c *Configuration) AuthorityKey() (kyber.Point, error) {
	if len(c.Parameters.Authority) == 0 {
		return nil, nil
	}
	p := conclave.Suite.Point()
	if err := p.UnmarshalBinary(c.Parameters.Authority); err != nil {
		return nil, xerrors.Errorf("authority key: %v: %w", err, conclave.ErrValidation)
	}
	return p, nil
}
