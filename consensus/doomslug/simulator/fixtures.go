// Package simulator drives many Doomslug instances through a discrete-event
// network test double, exercising the property and scenario tests that
// cannot be expressed as single-instance unit tests: safety and liveness
// under randomized delay, message loss, byzantine skippers, and offline
// validators.
package simulator

import (
	"encoding/binary"

	"github.com/shardstake/gtos/common"
	"github.com/shardstake/gtos/consensus/doomslug"
	"github.com/shardstake/gtos/crypto/ed25519"
	"github.com/shardstake/gtos/params"
	"github.com/shardstake/gtos/validator"
)

// Validator bundles one simulated validator's signing key with its
// Doomslug instance, the unit the scheduler drives each tick.
type Validator struct {
	Account  common.Address
	PubKey   ed25519.PublicKey
	Signer   *doomslug.Ed25519Signer
	Instance *doomslug.Instance

	// Byzantine, when true, makes the scheduler re-sign every endorsement
	// this validator's ProcessTimer emits as a skip before sending it, so
	// peers only ever receive skips from it, per spec.md's S3 byzantine
	// skipper.
	Byzantine bool
	// Offline, when true, never has its ProcessTimer driven and never
	// delivers messages to other validators, per spec.md's S3 offline
	// validator.
	Offline bool
}

// BuildEqualStakeValidators deterministically derives n validator keypairs
// (seeded, not crypto/rand, so scenarios are exactly reproducible) with
// equal stake 1 each, returning the validator.Set and one Validator per
// member in derivation (seed index) order, not sorted by address.
func BuildEqualStakeValidators(n int, cfg params.DoomslugConfig) (*validator.Set, []*Validator, error) {
	stakes := make([]uint64, n)
	for i := range stakes {
		stakes[i] = 1
	}
	return BuildValidators(stakes, cfg)
}

// BuildValidators derives one deterministic ed25519 keypair per entry in
// stakes and wires each into its own Doomslug Instance sharing cfg and the
// resulting validator.Set. The i-th returned Validator holds stakes[i].
func BuildValidators(stakes []uint64, cfg params.DoomslugConfig) (*validator.Set, []*Validator, error) {
	entries := make([]validator.Stake, len(stakes))
	vals := make([]*Validator, len(stakes))
	for i, amt := range stakes {
		seed := deterministicSeed(i)
		priv := ed25519.NewKeyFromSeed(seed[:])
		pub := ed25519.PublicFromPrivate(priv)
		signer := doomslug.NewEd25519Signer(priv)
		account := signer.AccountID()
		entries[i] = validator.Stake{Account: account, StakeAmt: amt, PublicKey: pub}
		vals[i] = &Validator{Account: account, PubKey: pub, Signer: signer}
	}
	set, err := validator.NewSet(entries)
	if err != nil {
		return nil, nil, err
	}
	for _, v := range vals {
		v.Instance = doomslug.New(cfg, set, v.Signer)
	}
	return set, vals, nil
}

// deterministicSeed expands an index into a 32-byte ed25519 seed, giving
// every BuildValidators call over the same stakes slice an identical key
// set run to run — required since the project never seeds from
// crypto/rand in a way that would make scenario replays non-reproducible.
func deterministicSeed(i int) [32]byte {
	var seed [32]byte
	binary.BigEndian.PutUint64(seed[24:], uint64(i)+1)
	return seed
}

// Hash of the simulated genesis block, the parent of the first produced
// block.
var GenesisHash = common.HashBytes([]byte("doomslug-simulator-genesis"))

// ChildHash derives a deterministic block hash from its parent and height,
// standing in for the chain layer's real block hashing so the simulator
// never needs actual block bodies.
func ChildHash(parent common.Hash, height uint64) common.Hash {
	buf := make([]byte, common.HashLength+8)
	copy(buf, parent[:])
	binary.BigEndian.PutUint64(buf[common.HashLength:], height)
	return common.HashBytes(buf)
}
