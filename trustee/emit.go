package trustee

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/lib"
	"go.dedis.ch/conclave/message"
)

// emit returns the statements the folded state obliges the trustee to
// post. A statement is only produced if the trustee has neither posted it
// on the board nor produced it in an earlier step.
func (t *Trustee) emit(s *state) ([]*message.Message, []Action, error) {
	if s.inst == nil || s.fault != nil {
		return nil, nil, nil
	}
	var out []*message.Message
	var actions []Action
	me := s.inst.position
	add := func(kind message.Kind, payload interface{}, artifact interface{}) error {
		var buf []byte
		if artifact != nil {
			var err error
			if buf, err = message.EncodeArtifact(artifact); err != nil {
				return err
			}
		}
		m, err := message.NewMessage(t.pair, t.name, message.NewStatement(s.inst.hash, payload), buf)
		if err != nil {
			return err
		}
		log.Lvlf2("%s: %s posts %v", t.board, t.name, kind)
		out = append(out, m)
		s.emitted[kind] = true
		return nil
	}
	want := func(kind message.Kind, posted bool) bool {
		return !posted && !s.emitted[kind]
	}

	_, approved := s.approvals[me]
	if want(message.KindApproval, approved) {
		if err := add(message.KindApproval, &message.Approval{Hash: s.inst.hash}, nil); err != nil {
			return nil, nil, err
		}
	}

	_, committed := s.commitments[me]
	dealing := len(s.dealers) < s.inst.threshold
	if s.approved() && dealing && want(message.KindCommitment, committed) {
		poly, created, err := t.polynomial(s, true)
		if err != nil {
			return nil, nil, err
		}
		if created {
			actions = append(actions, Action{Kind: PersistSecret, Phase: s.phase, Secret: t.secretKey(s)})
		}
		coeffs, err := lib.PointsToBytes(poly.Commit())
		if err != nil {
			return nil, nil, err
		}
		prf, err := poly.Prove(s.inst.hash)
		if err != nil {
			return nil, nil, conclave.ErrorOrNil(err, "proving commitment")
		}
		err = add(message.KindCommitment, &message.Commitment{Threshold: uint32(s.inst.threshold)},
			&message.CommitmentArtifact{Coefficients: coeffs, Proof: prf})
		if err != nil {
			return nil, nil, err
		}
	}

	_, dealt := s.shares[me]
	if !dealing && s.qualified(me) && want(message.KindShare, dealt) {
		poly, _, err := t.polynomial(s, false)
		if err != nil {
			return nil, nil, err
		}
		if !poly.Commit()[0].Equal(s.commitments[me][0]) {
			return nil, nil, xerrors.Errorf("stored polynomial does not match our commitment: %w",
				conclave.ErrConfig)
		}
		a := &message.SharesArtifact{Encrypted: make([][]byte, s.inst.n())}
		for i, k := range s.inst.keys {
			if a.Encrypted[i], err = lib.EncryptShare(k, poly.Eval(i)); err != nil {
				return nil, nil, err
			}
		}
		if err := add(message.KindShare, &message.Share{Count: uint32(s.inst.n())}, a); err != nil {
			return nil, nil, err
		}
	}

	_, announced := s.publicKeys[me]
	if s.keyed() && want(message.KindPublicKey, announced) {
		buf, err := s.jointKey.MarshalBinary()
		if err != nil {
			return nil, nil, xerrors.Errorf("encoding public key: %v: %w", err, conclave.ErrSerialization)
		}
		if err := add(message.KindPublicKey, &message.PublicKey{Key: buf}, nil); err != nil {
			return nil, nil, err
		}
	}

	round := s.mixer(me)
	_, shuffled := s.mixes[round]
	if in := s.mixInput(round); round >= 0 && in != nil && want(message.KindMixProof, shuffled) {
		K, C, prf, err := lib.Shuffle(s.jointKey, in.K, in.C, lib.MixContext(s.inst.hash, round))
		if err != nil {
			return nil, nil, err
		}
		cts, err := lib.EncodeCiphertexts(K, C)
		if err != nil {
			return nil, nil, err
		}
		err = add(message.KindMixProof, &message.MixProof{Round: uint32(round), InputDigest: in.digest},
			&message.MixArtifact{Ciphertexts: cts, Proof: prf})
		if err != nil {
			return nil, nil, err
		}
	}

	_, decrypted := s.partials[me]
	if s.mixed() && want(message.KindDecryptionShare, decrypted) {
		last := s.lastMix()
		partial, err := lib.PartialDecrypt(me, s.secret, last.K)
		if err != nil {
			return nil, nil, err
		}
		a, err := partial.Encode()
		if err != nil {
			return nil, nil, err
		}
		err = add(message.KindDecryptionShare, &message.DecryptionShare{InputDigest: last.digest}, a)
		if err != nil {
			return nil, nil, err
		}
	}

	_, published := s.plaintexts[me]
	if s.result != nil && want(message.KindPlaintexts, published) {
		st := message.NewStatement(s.inst.hash, &message.Plaintexts{
			InputDigest: s.lastMix().digest,
			Count:       uint32(len(s.result.points)),
		})
		m, err := message.NewMessage(t.pair, t.name, st, s.result.artifact)
		if err != nil {
			return nil, nil, err
		}
		log.Lvlf2("%s: %s posts %v", t.board, t.name, message.KindPlaintexts)
		out = append(out, m)
		s.emitted[message.KindPlaintexts] = true
	}
	return out, actions, nil
}

func (t *Trustee) secretKey(s *state) string {
	return fmt.Sprintf("%s/%x/polynomial", t.board, s.inst.hash)
}

// polynomial loads the polynomial dealt by the trustee from the secret
// store. If create is set and there is none, a new one is stored.
func (t *Trustee) polynomial(s *state, create bool) (*lib.Polynomial, bool, error) {
	key := t.secretKey(s)
	v, err := t.secrets.Get(key)
	switch {
	case err == nil:
		buf, err := hex.DecodeString(v)
		if err != nil {
			return nil, false, xerrors.Errorf("secret %s: %v: %w", key, err, conclave.ErrConfig)
		}
		poly, err := lib.UnmarshalPolynomial(buf)
		if err != nil {
			return nil, false, conclave.Classify(conclave.ErrConfig, err)
		}
		if poly.Threshold() != s.inst.threshold {
			return nil, false, xerrors.Errorf("secret %s has threshold %d: %w", key,
				poly.Threshold(), conclave.ErrConfig)
		}
		return poly, false, nil
	case xerrors.Is(err, ErrNotFound) && create:
		poly := lib.NewPolynomial(s.inst.threshold)
		buf, err := poly.MarshalBinary()
		if err != nil {
			return nil, false, err
		}
		if err := t.secrets.Put(key, hex.EncodeToString(buf)); err != nil {
			return nil, false, conclave.Classify(conclave.ErrConfig, err)
		}
		log.Lvlf2("%s: %s stored a new polynomial", t.board, t.name)
		return poly, true, nil
	case xerrors.Is(err, ErrNotFound):
		return nil, false, xerrors.Errorf("secret %s is missing: %w", key, conclave.ErrConfig)
	}
	return nil, false, conclave.Classify(conclave.ErrConfig, err)
}
