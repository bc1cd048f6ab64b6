package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"

	"go.dedis.ch/conclave"
	"go.dedis.ch/conclave/board"
	"go.dedis.ch/conclave/lib"
	"go.dedis.ch/conclave/message"
)

// post signs the statement and appends it to the board.
func post(ctx context.Context, b board.Board, pair *key.Pair, sender, name string,
	st *message.Statement, artifact []byte) (uint64, error) {
	m, err := message.NewMessage(pair, sender, st, artifact)
	if err != nil {
		return 0, err
	}
	ids, err := b.SendMessages(ctx, name, []message.Message{*m})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// propose posts a configuration of the trustees and returns its hash.
func propose(ctx context.Context, b board.Board, pair *key.Pair, sender, name string,
	trustees []kyber.Point, threshold int, params message.Parameters) ([]byte, error) {
	c, err := message.NewConfiguration(trustees, threshold, params)
	if err != nil {
		return nil, err
	}
	hash, err := c.Hash()
	if err != nil {
		return nil, err
	}
	if _, err := post(ctx, b, pair, sender, name, message.NewStatement(hash, c), nil); err != nil {
		return nil, err
	}
	return hash, nil
}

// instance is a configuration found on a board with the entries of the
// board.
type instance struct {
	config  *message.Configuration
	hash    []byte
	keys    []kyber.Point
	entries []*message.Opened
}

// findInstance reads the board and returns the first configuration posted
// on it, or the one with the given hash.
func findInstance(ctx context.Context, b board.Board, name string, hash []byte) (*instance, error) {
	entries, err := b.GetMessages(ctx, name, board.Beginning)
	if err != nil {
		return nil, err
	}
	var in *instance
	var opened []*message.Opened
	for i := range entries {
		o, err := entries[i].Open()
		if err != nil {
			continue
		}
		opened = append(opened, o)
		if in != nil || o.Kind() != message.KindConfiguration {
			continue
		}
		h, err := o.Statement.Configuration.Hash()
		if err != nil || !bytes.Equal(h, o.Statement.Header.ConfigurationHash) {
			continue
		}
		if len(hash) > 0 && !bytes.Equal(h, hash) {
			continue
		}
		keys, err := o.Statement.Configuration.Keys()
		if err != nil {
			continue
		}
		in = &instance{config: o.Statement.Configuration, hash: h, keys: keys}
	}
	if in == nil {
		return nil, xerrors.Errorf("no configuration on board %s: %w", name, conclave.ErrValidation)
	}
	for _, o := range opened {
		if bytes.Equal(o.Statement.Header.ConfigurationHash, in.hash) {
			in.entries = append(in.entries, o)
		}
	}
	return in, nil
}

// jointKey returns the key announced by the trustees of the instance once
// at least threshold of them agree on it.
func (in *instance) jointKey() (kyber.Point, error) {
	var X kyber.Point
	seen := make(map[int]bool)
	for _, o := range in.entries {
		if o.Kind() != message.KindPublicKey {
			continue
		}
		p := -1
		for i, k := range in.keys {
			if k.Equal(o.Public) {
				p = i
			}
		}
		if p < 0 || seen[p] {
			continue
		}
		k, err := lib.PointFromBytes(o.Statement.PublicKey.Key)
		if err != nil {
			return nil, err
		}
		if X != nil && !X.Equal(k) {
			return nil, xerrors.Errorf("trustees announced different keys: %w", conclave.ErrCryptographicFault)
		}
		X = k
		seen[p] = true
	}
	if len(seen) < int(in.config.Threshold) {
		return nil, xerrors.Errorf("%d of %d trustees announced the key, %d needed: %w", len(seen),
			len(in.keys), in.config.Threshold, conclave.ErrValidation)
	}
	return X, nil
}

// postBallots encrypts the ballots under the joint key and posts them.
func postBallots(ctx context.Context, b board.Board, pair *key.Pair, sender, name string,
	in *instance, ballots []string) error {
	X, err := in.jointKey()
	if err != nil {
		return err
	}
	var K, C []kyber.Point
	for _, ballot := range ballots {
		k, c, err := lib.Encrypt(X, []byte(ballot))
		if err != nil {
			return err
		}
		K = append(K, k)
		C = append(C, c)
	}
	cts, err := lib.EncodeCiphertexts(K, C)
	if err != nil {
		return err
	}
	artifact, err := message.EncodeArtifact(&cts)
	if err != nil {
		return err
	}
	st := message.NewStatement(in.hash, &message.MixRequest{Count: uint32(len(ballots))})
	_, err = post(ctx, b, pair, sender, name, st, artifact)
	return err
}

// describe writes one line per entry.
func describe(w io.Writer, entries []message.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tSENDER\tSTATEMENT\tINSTANCE")
	for i := range entries {
		e := &entries[i]
		ts := time.Unix(0, e.Timestamp).UTC().Format(time.RFC3339)
		o, err := e.Open()
		if err != nil {
			fmt.Fprintf(tw, "%d\t%s\t%s\tinvalid (%v)\t\n", e.ID, ts, e.Message.Sender.Name, conclave.KindOf(err))
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t%x\n", e.ID, ts, o.Sender.Name, o.Kind(),
			o.Statement.Header.ConfigurationHash)
	}
	return tw.Flush()
}
