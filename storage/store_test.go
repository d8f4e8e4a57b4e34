package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"kumachain/core/types"
	"kumachain/native/stake"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestStoreStakeRoundTrip(t *testing.T) {
	store := NewStore(NewMemDB())
	addr := testAddr(0x01)

	_, ok := store.StakeGet(addr)
	require.False(t, ok)

	record := &stake.Stake{
		TotalStake:     big.NewInt(1000),
		AccReward:      big.NewInt(50),
		LastUpdateTime: 1234,
	}
	require.NoError(t, store.StakePut(addr, record))

	loaded, ok := store.StakeGet(addr)
	require.True(t, ok)
	require.Equal(t, "1000", loaded.TotalStake.String())
	require.Equal(t, "50", loaded.AccReward.String())
	require.Equal(t, uint64(1234), loaded.LastUpdateTime)

	// Records are keyed per address.
	_, ok = store.StakeGet(testAddr(0x02))
	require.False(t, ok)
}

func TestStoreAccountRoundTrip(t *testing.T) {
	store := NewStore(NewMemDB())
	addr := testAddr(0x03)

	_, ok := store.GetAccount(addr)
	require.False(t, ok)

	require.NoError(t, store.PutAccount(addr, &types.Account{Nonce: 7, Balance: big.NewInt(4200)}))

	loaded, ok := store.GetAccount(addr)
	require.True(t, ok)
	require.Equal(t, uint64(7), loaded.Nonce)
	require.Equal(t, "4200", loaded.Balance.String())
}

func TestStoreAccountNilBalanceNormalized(t *testing.T) {
	store := NewStore(NewMemDB())
	addr := testAddr(0x04)
	require.NoError(t, store.PutAccount(addr, &types.Account{}))

	loaded, ok := store.GetAccount(addr)
	require.True(t, ok)
	require.NotNil(t, loaded.Balance)
	require.Zero(t, loaded.Balance.Sign())
}

func TestStoreSupply(t *testing.T) {
	store := NewStore(NewMemDB())
	require.Zero(t, store.TotalSupply().Sign())

	require.NoError(t, store.SetTotalSupply(big.NewInt(123456)))
	require.Equal(t, "123456", store.TotalSupply().String())

	require.Error(t, store.SetTotalSupply(nil))
	require.Error(t, store.SetTotalSupply(big.NewInt(-1)))
	require.Equal(t, "123456", store.TotalSupply().String())
}

func TestStoreCorruptValueReadsAsMissing(t *testing.T) {
	db := NewMemDB()
	store := NewStore(db)
	addr := testAddr(0x05)
	require.NoError(t, db.Put(addrKey(stakePrefix, addr), []byte("{not json")))

	_, ok := store.StakeGet(addr)
	require.False(t, ok)
}

func TestStoreNilWritesRejected(t *testing.T) {
	store := NewStore(NewMemDB())
	require.Error(t, store.StakePut(testAddr(0x06), nil))
	require.Error(t, store.PutAccount(testAddr(0x06), nil))
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)

	// The stored value is detached from the caller's slice.
	value[0] = 'x'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), again)
}
