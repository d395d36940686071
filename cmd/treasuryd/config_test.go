// Copyright (C) 2025, AquaDAO Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"math/big"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aquadao/treasury/fixedpoint"
)

func TestRatioUConvertsExactFraction(t *testing.T) {
	r := Ratio{Num: 1, Den: 10}
	require.Equal(t, fixedpoint.UFromRat(1, 10).String(), r.u().String())
}

func TestRatioIHandlesNegativeNumerator(t *testing.T) {
	r := Ratio{Num: -1, Den: 4}
	want := fixedpoint.ZeroI().Sub(fixedpoint.IFromU(fixedpoint.UFromRat(1, 4)))
	require.Equal(t, want.String(), r.i().String())
}

func TestRatioZeroDenIsZero(t *testing.T) {
	r := Ratio{}
	require.True(t, r.u().IsZero())
}

func TestBigOrZeroParsesDecimalStrings(t *testing.T) {
	require.Equal(t, big.NewInt(12345), bigOrZero("12345"))
	require.Equal(t, big.NewInt(0), bigOrZero(""))
}

func TestBigOrNilTreatsEmptyStringAsUnbounded(t *testing.T) {
	require.Nil(t, bigOrNil(""))
	require.Equal(t, big.NewInt(7), bigOrNil("7"))
}

func TestLoadConfigDefaultsBlockPeriod(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/treasuryd.yaml"
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.NotZero(t, cfg.BlockPeriod)
}
