// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package dstake

import (
	"math/big"

	"github.com/aquadao/treasury/currency"
	"github.com/aquadao/treasury/ledger"
)

// StakeInfo is one account's position in the flat staking ledger: the number
// of shares it holds against the pool's principal, and how much underlying
// it has withdrawn over its lifetime. Matches
// original_source/treasury-staking/src/lib.rs's StakeInfo{shares, withdrawn}.
type StakeInfo struct {
	Shares    *big.Int
	Withdrawn *big.Int
}

// Config holds the flat staking ledger's configuration constants.
type Config struct {
	// Currency is the underlying asset staked into and withdrawn out of the
	// pool (the original pallet is generic over MultiCurrency::CurrencyId;
	// the treasury core fixes it to one configured currency).
	Currency currency.ID
	// PalletAccount holds the staked principal on behalf of all stakers.
	PalletAccount ledger.AccountID
}

// Events - flat DAO staking ledger
type Staked struct {
	Who    ledger.AccountID
	Amount *big.Int
}

type Unstaked struct {
	Who    ledger.AccountID
	Amount *big.Int
	Fee    *big.Int
}
