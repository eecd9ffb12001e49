// Package validator holds the fixed validator-set view Doomslug consults
// for one epoch: account identity, stake, and public key. Building this set
// from on-chain registration state (who is staked, how much) is the chain
// layer's job and happens once per epoch; this package only represents the
// already-selected, immutable-for-the-epoch result.
package validator

import (
	"bytes"
	"errors"
	"sort"

	"github.com/shardstake/gtos/common"
)

// ErrUnknownValidator names an account not present in the set. Set's lookups
// do not return it: they report an unknown account as nil, 0, or false.
var ErrUnknownValidator = errors.New("validator: unknown account")

// ErrDuplicateValidator is returned by NewSet when the same account appears
// twice in the input.
var ErrDuplicateValidator = errors.New("validator: duplicate account in set")

// ErrNonPositiveStake is returned by NewSet when a stake value is not
// strictly positive.
var ErrNonPositiveStake = errors.New("validator: stake must be strictly positive")

// Stake describes one validator's identity, stake, and public key —
// exactly the ValidatorStake data model entry.
type Stake struct {
	Account   common.Address
	StakeAmt  uint64
	PublicKey []byte
}

// Set is the fixed, read-only mapping from account to stake and public key
// for one validator-set epoch.
type Set struct {
	byAccount  map[common.Address]Stake
	ordered    []common.Address // address-ascending, deterministic iteration
	totalStake uint64
}

// addressAscending sorts common.Address values in ascending byte order,
// giving deterministic validator ordering independent of input order.
type addressAscending []common.Address

func (a addressAscending) Len() int      { return len(a) }
func (a addressAscending) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a addressAscending) Less(i, j int) bool {
	return bytes.Compare(a[i][:], a[j][:]) < 0
}

// NewSet builds a validator set from a slice of stakes. Every stake must be
// strictly positive and every account must appear at most once.
func NewSet(stakes []Stake) (*Set, error) {
	byAccount := make(map[common.Address]Stake, len(stakes))
	ordered := make([]common.Address, 0, len(stakes))
	var total uint64
	for _, s := range stakes {
		if s.StakeAmt == 0 {
			return nil, ErrNonPositiveStake
		}
		if _, exists := byAccount[s.Account]; exists {
			return nil, ErrDuplicateValidator
		}
		byAccount[s.Account] = s
		ordered = append(ordered, s.Account)
		total += s.StakeAmt
	}
	sort.Sort(addressAscending(ordered))
	return &Set{byAccount: byAccount, ordered: ordered, totalStake: total}, nil
}

// PublicKey returns the registered public key for account, or nil if unknown.
func (s *Set) PublicKey(account common.Address) []byte {
	st, ok := s.byAccount[account]
	if !ok {
		return nil
	}
	return st.PublicKey
}

// Stake returns the stake amount for account, or 0 if unknown.
func (s *Set) Stake(account common.Address) uint64 {
	return s.byAccount[account].StakeAmt
}

// Contains reports whether account is a member of the set.
func (s *Set) Contains(account common.Address) bool {
	_, ok := s.byAccount[account]
	return ok
}

// TotalStake returns the sum of every member's stake.
func (s *Set) TotalStake() uint64 {
	return s.totalStake
}

// Len returns the number of validators in the set.
func (s *Set) Len() int {
	return len(s.ordered)
}

// Accounts returns the set's members in deterministic address-ascending
// order. The returned slice must not be mutated by callers.
func (s *Set) Accounts() []common.Address {
	return s.ordered
}
