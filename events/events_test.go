// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
)

func TestAppendAndList(t *testing.T) {
	require := require.New(t)

	l, err := NewLog(memdb.New())
	require.NoError(err)
	require.Zero(l.Len())

	appended := []*Event{
		{
			Type:   TxSubmitted,
			Time:   100,
			TxID:   1,
			Actor:  ids.ShortID{1},
			To:     ids.ShortID{2},
			Amount: 500,
		},
		{
			Type:  TxConfirmed,
			Time:  101,
			TxID:  1,
			Actor: ids.ShortID{3},
		},
		{
			Type:      MessageFailed,
			Time:      102,
			MessageID: ids.ID{9},
			Detail:    "unknown transaction",
		},
	}
	for _, e := range appended {
		require.NoError(l.Append(e))
	}
	require.Equal(uint64(3), l.Len())

	listed, err := l.List()
	require.NoError(err)
	require.Equal(appended, listed)
}

func TestLogRecoversSequence(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	l, err := NewLog(db)
	require.NoError(err)
	require.NoError(l.Append(&Event{Type: TxSubmitted, TxID: 1}))
	require.NoError(l.Append(&Event{Type: TxExecuted, TxID: 1}))

	// Reopening continues the sequence instead of overwriting.
	reopened, err := NewLog(db)
	require.NoError(err)
	require.Equal(uint64(2), reopened.Len())
	require.NoError(reopened.Append(&Event{Type: TxSubmitted, TxID: 2}))

	listed, err := reopened.List()
	require.NoError(err)
	require.Len(listed, 3)
	require.Equal(TxSubmitted, listed[2].Type)
	require.Equal(uint64(2), listed[2].TxID)
}

func TestTypeString(t *testing.T) {
	require := require.New(t)

	require.Equal("tx_submitted", TxSubmitted.String())
	require.Equal("message_recovered", MessageRecovered.String())
	require.NotEmpty(Type(250).String())
}
