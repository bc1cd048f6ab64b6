package trustee

import (
	"bytes"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/lib"
	"go.dedis.ch/conclave/message"
)

type outcome int

const (
	accepted outcome = iota
	dropped
	deferred
	faulted
)

func (t *Trustee) drop(o *message.Opened, err error) (outcome, error) {
	log.Lvlf2("%s: %s drops entry %d (%v from %s, %v): %v", t.board, t.name, o.ID, o.Kind(),
		o.Sender.Name, conclave.KindOf(err), err)
	return dropped, nil
}

func (t *Trustee) raise(s *state, o *message.Opened, reason error) (outcome, error) {
	s.fault = &Fault{
		Board:  t.board,
		Entry:  o.ID,
		Sender: o.Sender.Name,
		Phase:  s.phase,
		Kind:   o.Kind(),
		Reason: reason,
	}
	log.Error(t.name, ":", s.fault)
	return faulted, nil
}

func invalid(format string, args ...interface{}) error {
	return xerrors.Errorf(format+": %w", append(args, conclave.ErrValidation)...)
}

// apply folds one verified entry. The returned error is only set for
// failures of the trustee itself, never for a bad entry.
func (t *Trustee) apply(s *state, o *message.Opened) (outcome, error) {
	kind := o.Kind()
	if s.inst == nil {
		if kind != message.KindConfiguration {
			return deferred, nil
		}
		return t.onConfiguration(s, o)
	}
	if !bytes.Equal(o.Statement.Header.ConfigurationHash, s.inst.hash) {
		return t.drop(o, invalid("statement of instance %x", o.Statement.Header.ConfigurationHash))
	}
	switch kind {
	case message.KindConfiguration:
		return t.drop(o, invalid("a configuration is already tracked"))
	case message.KindMixRequest:
		return t.onMixRequest(s, o)
	}

	p := indexOf(s.inst.keys, o.Public)
	if p < 0 {
		return t.drop(o, invalid("sender is not a trustee"))
	}
	switch kind {
	case message.KindApproval:
		return t.onApproval(s, o, p)
	case message.KindCommitment:
		return t.onCommitment(s, o, p)
	case message.KindShare:
		return t.onShare(s, o, p)
	case message.KindPublicKey:
		return t.onPublicKey(s, o, p)
	case message.KindMixProof:
		return t.onMixProof(s, o, p)
	case message.KindDecryptionShare:
		return t.onDecryptionShare(s, o, p)
	case message.KindPlaintexts:
		return t.onPlaintexts(s, o, p)
	}
	return t.drop(o, invalid("unknown statement kind %v", kind))
}

func (t *Trustee) onConfiguration(s *state, o *message.Opened) (outcome, error) {
	c := o.Statement.Configuration
	hash, err := c.Hash()
	if err != nil {
		return t.drop(o, err)
	}
	if !bytes.Equal(hash, o.Statement.Header.ConfigurationHash) {
		return t.drop(o, invalid("header does not carry the configuration hash"))
	}
	if !t.pinnedTo(hash) {
		return t.drop(o, invalid("configuration %x is not the pinned instance", hash))
	}
	keys, err := c.Keys()
	if err != nil {
		return t.drop(o, err)
	}
	position := c.Position(t.pair.Public)
	if position < 0 {
		return t.drop(o, invalid("configuration %x does not list us", hash))
	}
	if !t.allowedProposer(o.Public, keys) {
		return t.drop(o, invalid("%s may not propose a configuration", o.Sender.Name))
	}
	authority, err := c.AuthorityKey()
	if err != nil {
		return t.drop(o, err)
	}
	if authority == nil {
		authority = o.Public
	}

	s.inst = &instance{
		config:    c,
		hash:      hash,
		keys:      keys,
		threshold: int(c.Threshold),
		position:  position,
		authority: authority,
	}
	if p := c.Position(o.Public); p >= 0 {
		s.approvals[p] = o.ID
	}
	log.Lvlf2("%s: %s tracks configuration %x from %s, position %d of %d, threshold %d",
		t.board, t.name, hash, o.Sender.Name, position, len(keys), c.Threshold)
	return accepted, nil
}

func (t *Trustee) onApproval(s *state, o *message.Opened, p int) (outcome, error) {
	if !bytes.Equal(o.Statement.Approval.Hash, s.inst.hash) {
		return t.drop(o, invalid("approval of another configuration"))
	}
	if _, ok := s.approvals[p]; ok {
		return t.drop(o, invalid("duplicate approval"))
	}
	s.approvals[p] = o.ID
	return accepted, nil
}

func (t *Trustee) onCommitment(s *state, o *message.Opened, p int) (outcome, error) {
	if !s.approved() {
		return deferred, nil
	}
	if _, ok := s.commitments[p]; ok {
		return t.drop(o, invalid("duplicate commitment"))
	}
	if int(o.Statement.Commitment.Threshold) != s.inst.threshold {
		return t.raise(s, o, faultf("commitment for threshold %d", o.Statement.Commitment.Threshold))
	}
	var a message.CommitmentArtifact
	if err := message.DecodeArtifact(o.Artifact, &a); err != nil {
		return t.drop(o, err)
	}
	commits, err := lib.PointsFromBytes(a.Coefficients)
	if err != nil {
		return t.drop(o, err)
	}
	if err := lib.VerifyCommitment(commits, s.inst.threshold, a.Proof, s.inst.hash); err != nil {
		return t.raise(s, o, err)
	}
	s.commitments[p] = commits
	s.dealers = append(s.dealers, p)
	return accepted, nil
}

func (t *Trustee) onShare(s *state, o *message.Opened, p int) (outcome, error) {
	commits, ok := s.commitments[p]
	if !ok {
		return deferred, nil
	}
	if !s.qualified(p) {
		return t.drop(o, invalid("%s is not one of the first %d dealers", o.Sender.Name, s.inst.threshold))
	}
	if _, ok := s.shares[p]; ok {
		return t.drop(o, invalid("duplicate share"))
	}
	var a message.SharesArtifact
	if err := message.DecodeArtifact(o.Artifact, &a); err != nil {
		return t.drop(o, err)
	}
	if len(a.Encrypted) != s.inst.n() {
		return t.raise(s, o, faultf("%d shares for %d trustees", len(a.Encrypted), s.inst.n()))
	}
	sh, err := lib.DecryptShare(t.pair.Private, a.Encrypted[s.inst.position])
	if err != nil {
		return t.raise(s, o, err)
	}
	if !lib.CheckShare(commits, s.inst.position, sh) {
		return t.raise(s, o, faultf("share does not match the commitments of %s", o.Sender.Name))
	}
	s.shares[p] = sh
	if len(s.shares) == s.inst.threshold {
		t.assemble(s)
	}
	return accepted, nil
}

// assemble derives the joint key, the secret share and the verification
// keys once the shares of the first threshold dealers are in.
func (t *Trustee) assemble(s *state) {
	qualified := s.dealers[:s.inst.threshold]
	dealers := make([][]kyber.Point, len(qualified))
	shares := make([]kyber.Scalar, len(qualified))
	for i, d := range qualified {
		dealers[i] = s.commitments[d]
		shares[i] = s.shares[d]
	}
	s.jointKey = lib.JointKey(dealers)
	s.secret = lib.CombineShares(shares)
	s.verify = make([]kyber.Point, s.inst.n())
	for i := range s.verify {
		s.verify[i] = lib.VerificationKey(dealers, i)
	}
	log.Lvlf2("%s: %s assembled public key %v from dealers %v", t.board, t.name, s.jointKey, qualified)
}

func (t *Trustee) onPublicKey(s *state, o *message.Opened, p int) (outcome, error) {
	if !s.keyed() {
		return deferred, nil
	}
	if _, ok := s.publicKeys[p]; ok {
		return t.drop(o, invalid("duplicate public key"))
	}
	X, err := lib.PointFromBytes(o.Statement.PublicKey.Key)
	if err != nil {
		return t.raise(s, o, faultf("public key: %v", err))
	}
	if !X.Equal(s.jointKey) {
		return t.raise(s, o, faultf("%s assembled public key %v instead of %v", o.Sender.Name, X, s.jointKey))
	}
	s.publicKeys[p] = X
	s.announced = append(s.announced, p)
	return accepted, nil
}

func (t *Trustee) onMixRequest(s *state, o *message.Opened) (outcome, error) {
	if !o.Public.Equal(s.inst.authority) {
		return t.drop(o, invalid("ballots not posted by the authority"))
	}
	if !s.ready() {
		return deferred, nil
	}
	if s.ballots != nil {
		return t.drop(o, invalid("ballots already posted"))
	}
	var a message.Ciphertexts
	if err := message.DecodeArtifact(o.Artifact, &a); err != nil {
		return t.drop(o, err)
	}
	K, C, err := lib.DecodeCiphertexts(a)
	if err != nil {
		return t.drop(o, err)
	}
	if len(K) < 2 || int(o.Statement.MixRequest.Count) != len(K) {
		return t.drop(o, invalid("%d ballots announced, %d posted", o.Statement.MixRequest.Count, len(K)))
	}
	s.ballots = &ciphertexts{K: K, C: C, digest: message.Digest(o.Artifact)}
	log.Lvlf2("%s: %s accepted %d ballots", t.board, t.name, len(K))
	return accepted, nil
}

func (t *Trustee) onMixProof(s *state, o *message.Opened, p int) (outcome, error) {
	round := int(o.Statement.MixProof.Round)
	if round >= s.inst.threshold {
		return t.drop(o, invalid("mix of round %d with %d rounds", round, s.inst.threshold))
	}
	in := s.mixInput(round)
	if in == nil {
		return deferred, nil
	}
	if s.mixer(p) != round {
		return t.drop(o, invalid("round %d posted by trustee %d", round, p))
	}
	if _, ok := s.mixes[round]; ok {
		return t.drop(o, invalid("duplicate mix of round %d", round))
	}
	if !bytes.Equal(o.Statement.MixProof.InputDigest, in.digest) {
		return t.raise(s, o, faultf("mix of round %d shuffles another input", round))
	}
	var a message.MixArtifact
	if err := message.DecodeArtifact(o.Artifact, &a); err != nil {
		return t.drop(o, err)
	}
	K, C, err := lib.DecodeCiphertexts(a.Ciphertexts)
	if err != nil {
		return t.drop(o, err)
	}
	err = lib.VerifyShuffle(s.jointKey, in.K, in.C, K, C, a.Proof, lib.MixContext(s.inst.hash, round))
	if err != nil {
		return t.raise(s, o, err)
	}
	s.mixes[round] = &ciphertexts{K: K, C: C, digest: message.Digest(o.Artifact)}
	return accepted, nil
}

func (t *Trustee) onDecryptionShare(s *state, o *message.Opened, p int) (outcome, error) {
	if !s.mixed() {
		return deferred, nil
	}
	if _, ok := s.partials[p]; ok {
		return t.drop(o, invalid("duplicate decryption share"))
	}
	last := s.lastMix()
	if !bytes.Equal(o.Statement.DecryptionShare.InputDigest, last.digest) {
		return t.raise(s, o, faultf("decryption of another mix"))
	}
	var a message.DecryptionArtifact
	if err := message.DecodeArtifact(o.Artifact, &a); err != nil {
		return t.drop(o, err)
	}
	partial, err := lib.DecodePartial(p, &a)
	if err != nil {
		return t.drop(o, err)
	}
	if err := partial.Verify(s.verify[p], last.K); err != nil {
		return t.raise(s, o, err)
	}
	s.partials[p] = partial
	s.partialOrder = append(s.partialOrder, p)

	if s.result == nil && len(s.partials) >= s.inst.threshold {
		chosen := make([]*lib.Partial, s.inst.threshold)
		for i := range chosen {
			chosen[i] = s.partials[s.partialOrder[i]]
		}
		points, err := lib.Combine(chosen, last.C, s.inst.threshold, s.inst.n())
		if err != nil {
			return t.raise(s, o, err)
		}
		buf, err := lib.PointsToBytes(points)
		if err != nil {
			return dropped, err
		}
		artifact, err := message.EncodeArtifact(&message.PlaintextsArtifact{Points: buf})
		if err != nil {
			return dropped, err
		}
		s.result = &result{points: points, artifact: artifact, digest: message.Digest(artifact)}
		log.Lvlf2("%s: %s decrypted %d ballots", t.board, t.name, len(points))
	}
	return accepted, nil
}

func (t *Trustee) onPlaintexts(s *state, o *message.Opened, p int) (outcome, error) {
	if s.result == nil {
		return deferred, nil
	}
	if _, ok := s.plaintexts[p]; ok {
		return t.drop(o, invalid("duplicate plaintexts"))
	}
	if !bytes.Equal(o.Statement.Plaintexts.InputDigest, s.lastMix().digest) {
		return t.raise(s, o, faultf("plaintexts of another mix"))
	}
	if !bytes.Equal(o.Statement.Header.ArtifactDigest, s.result.digest) {
		return t.raise(s, o, faultf("%s decrypted other plaintexts", o.Sender.Name))
	}
	s.plaintexts[p] = s.result.digest
	return accepted, nil
}
