package message

// PROTOSTART
// package conclave;
// type :Kind:uint32
//
// option java_package = "ch.epfl.dedis.lib.proto";
// option java_outer_classname = "ConclaveProto";

// Sender identifies the signer of a message. The board does not check that
// the sender actually signed it, every trustee does.
type Sender struct {
	// Name is a human readable name, only used in logs.
	Name string
	// Public is the marshalled Ed25519 public key of the signer.
	Public []byte
}

// Message is the signed envelope that is appended to a board.
type Message struct {
	Sender Sender
	// Signature is a Schnorr signature over Statement.
	Signature []byte
	// Statement is the canonical encoding of a Statement.
	Statement []byte
	// Artifact is an optional large payload. Its digest is part of the
	// statement header, so it is covered by the signature.
	Artifact []byte
}

// Entry is a message once it has been appended to a board.
type Entry struct {
	// ID is assigned by the board and strictly increasing.
	ID uint64
	// Timestamp is the unix time in nanoseconds at which the board appended
	// the message.
	Timestamp int64
	Message   Message
}

// Statement is the sole data structure signed by trustees. Exactly one of
// the payload fields is set.
type Statement struct {
	Header Header

	Configuration   *Configuration
	Approval        *Approval
	Commitment      *Commitment
	Share           *Share
	PublicKey       *PublicKey
	MixRequest      *MixRequest
	MixProof        *MixProof
	DecryptionShare *DecryptionShare
	Plaintexts      *Plaintexts
}

// Header binds a statement to a protocol instance and to its artifact.
type Header struct {
	// Version of the statement encoding.
	Version uint32
	// ConfigurationHash identifies the protocol instance.
	ConfigurationHash []byte
	// ArtifactDigest is the SHA-256 of the artifact, empty if there is none.
	ArtifactDigest []byte
}

// Configuration describes the parameters of one protocol instance. Its hash
// is the instance identifier.
type Configuration struct {
	// Trustees are the marshalled public keys of the trustees, in position
	// order.
	Trustees [][]byte
	// Threshold is the number of trustees needed to approve the
	// configuration and to decrypt.
	Threshold  uint32
	Parameters Parameters
}

// Parameters are the instance parameters that are not about the trustees.
type Parameters struct {
	// Label is a free-form description of the instance.
	Label string
	// Authority is the marshalled public key allowed to post ballots. If
	// empty, the proposer of the configuration is the authority.
	Authority []byte
	// Nonce makes two otherwise identical configurations distinct.
	Nonce []byte
}

// Approval is posted by a trustee that accepts a configuration.
type Approval struct {
	Hash []byte
}

// Commitment announces the Feldman commitments of the sender's polynomial.
// The artifact is a CommitmentArtifact.
type Commitment struct {
	Threshold uint32
}

// Share carries the encrypted evaluations of the sender's polynomial, one
// per trustee. The artifact is a SharesArtifact.
type Share struct {
	Count uint32
}

// PublicKey is the joint public key as assembled by the sender.
type PublicKey struct {
	Key []byte
}

// MixRequest carries the ballots to be mixed. The artifact is a
// Ciphertexts.
type MixRequest struct {
	Count uint32
}

// MixProof is one shuffle round. The artifact is a MixArtifact.
type MixProof struct {
	Round uint32
	// InputDigest is the artifact digest of the round's input.
	InputDigest []byte
}

// DecryptionShare carries the sender's partial decryption of the last mix.
// The artifact is a DecryptionArtifact.
type DecryptionShare struct {
	// InputDigest is the artifact digest of the last mix.
	InputDigest []byte
}

// Plaintexts is the final output of an instance. The artifact is a
// PlaintextsArtifact.
type Plaintexts struct {
	// InputDigest is the artifact digest of the last mix.
	InputDigest []byte
	Count       uint32
}

// CommitmentArtifact holds the commitments to the coefficients of a
// polynomial and a proof of knowledge of its constant term.
type CommitmentArtifact struct {
	Coefficients [][]byte
	Proof        []byte
}

// SharesArtifact holds one encrypted share per trustee, in position order.
type SharesArtifact struct {
	Encrypted [][]byte
}

// Ciphertexts is a list of ElGamal ciphertexts (K, C).
type Ciphertexts struct {
	K [][]byte
	C [][]byte
}

// MixArtifact is the output of one shuffle round with its proof.
type MixArtifact struct {
	Ciphertexts Ciphertexts
	Proof       []byte
}

// DLEQProof is a proof of equality of discrete logarithms.
type DLEQProof struct {
	C  []byte
	R  []byte
	VG []byte
	VH []byte
}

// DecryptionArtifact holds one decryption factor and its proof per
// ciphertext of the last mix.
type DecryptionArtifact struct {
	Factors [][]byte
	Proofs  []DLEQProof
}

// PlaintextsArtifact holds the decrypted points, in the order of the last
// mix.
type PlaintextsArtifact struct {
	Points [][]byte
}
