package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"MintVault/internal/asset"
	"MintVault/internal/effect"
	"MintVault/internal/engine"
	fpmath "MintVault/internal/math"
	"MintVault/internal/oracle"
	"MintVault/internal/state"
	"MintVault/internal/testutil"
)

const (
	owner      = "owner0000"
	collector  = "collector0000"
	assetToken = "asset0000"
	baseDenom  = "uusd"
)

func dec(s string) decimal.Decimal { return fpmath.MustParse(s) }

type fixture struct {
	engine *engine.Engine
	store  *state.MemStore
	oracle *oracle.Static
}

// newFixture seeds a config with a 1% protocol fee and registers asset0000
// at a 150% minimum collateral ratio, priced 1.0 by default.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := state.NewMemStore()
	err := store.PutConfig(&state.Config{
		Owner:            owner,
		Oracle:           "oracle0000",
		Collector:        collector,
		CollateralOracle: "collateraloracle0000",
		Staking:          "staking0000",
		Factory:          "factory0000",
		BaseDenom:        baseDenom,
		TokenCodeID:      10,
		ProtocolFeeRate:  dec("0.01"),
	})
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}

	static := oracle.NewStatic()
	static.SetPrice(assetToken, dec("1"))

	eng := engine.New(store, static, static, testutil.Metrics())
	if _, err := eng.RegisterAsset(context.Background(), assetToken, dec("1.5")); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	return &fixture{engine: eng, store: store, oracle: static}
}

func (f *fixture) open(t *testing.T, collateralAmount int64, ratio string) *state.Position {
	t.Helper()
	_, err := f.engine.OpenPosition(
		context.Background(), owner,
		asset.New(asset.Native(baseDenom), collateralAmount),
		assetToken, dec(ratio),
	)
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	idx, err := f.store.NextPositionIdx()
	if err != nil {
		t.Fatalf("next idx: %v", err)
	}
	pos, err := f.store.Position(idx - 1)
	if err != nil {
		t.Fatalf("load opened position: %v", err)
	}
	return pos
}

func attr(t *testing.T, res *engine.Result, key string) string {
	t.Helper()
	for _, a := range res.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	t.Fatalf("attribute %q missing from %v", key, res.Attributes)
	return ""
}

func TestOpenPosition_MintAmount(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.OpenPosition(
		context.Background(), owner,
		asset.New(asset.Native(baseDenom), 1_000_000),
		assetToken, dec("1.5"),
	)
	if err != nil {
		t.Fatalf("open position: %v", err)
	}

	if got := attr(t, res, "mint_amount"); got != "666666asset0000" {
		t.Errorf("mint_amount: got %q, want %q", got, "666666asset0000")
	}
	if got := attr(t, res, "position_idx"); got != "1" {
		t.Errorf("position_idx: got %q, want %q", got, "1")
	}
	if got := attr(t, res, "collateral_amount"); got != "1000000uusd" {
		t.Errorf("collateral_amount: got %q, want %q", got, "1000000uusd")
	}

	if len(res.Effects) != 1 {
		t.Fatalf("effects: got %d, want 1", len(res.Effects))
	}
	mint, ok := res.Effects[0].(effect.MintToken)
	if !ok {
		t.Fatalf("effect type: got %T, want MintToken", res.Effects[0])
	}
	if mint.Recipient != owner || !mint.Amount.Equal(dec("666666")) {
		t.Errorf("mint effect: got %s to %s", mint.Amount, mint.Recipient)
	}

	pos, err := f.store.Position(1)
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if pos.Owner != owner {
		t.Errorf("owner: got %q, want %q", pos.Owner, owner)
	}
	if !pos.Asset.Amount.Equal(dec("666666")) {
		t.Errorf("minted: got %s, want 666666", pos.Asset.Amount)
	}
}

func TestOpenPosition_HighAssetPrice(t *testing.T) {
	f := newFixture(t)
	f.oracle.SetPrice(assetToken, dec("100"))

	pos := f.open(t, 1_000_000, "1.5")
	if !pos.Asset.Amount.Equal(dec("6666")) {
		t.Errorf("minted: got %s, want 6666", pos.Asset.Amount)
	}
}

func TestOpenPosition_BelowMinimumRatio(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.OpenPosition(
		context.Background(), owner,
		asset.New(asset.Native(baseDenom), 1_000_000),
		assetToken, dec("1.4"),
	)
	if !errors.Is(err, engine.ErrOpenBelowFloor) {
		t.Fatalf("got %v, want ErrOpenBelowFloor", err)
	}

	// A rejected open must not burn an idx.
	next, _ := f.store.NextPositionIdx()
	if next != 1 {
		t.Errorf("next idx after rejected open: got %d, want 1", next)
	}
}

func TestOpenPosition_ZeroMint(t *testing.T) {
	f := newFixture(t)
	f.oracle.SetPrice(assetToken, dec("100"))

	_, err := f.engine.OpenPosition(
		context.Background(), owner,
		asset.New(asset.Native(baseDenom), 100),
		assetToken, dec("1.5"),
	)
	if !errors.Is(err, engine.ErrZeroMint) {
		t.Fatalf("got %v, want ErrZeroMint", err)
	}
}

func TestOpenPosition_UnregisteredAsset(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.OpenPosition(
		context.Background(), owner,
		asset.New(asset.Native(baseDenom), 1_000_000),
		"asset9999", dec("1.5"),
	)
	if !errors.Is(err, engine.ErrAssetNotRegistered) {
		t.Fatalf("got %v, want ErrAssetNotRegistered", err)
	}
}

func TestOpenPosition_RevokedCollateral(t *testing.T) {
	f := newFixture(t)
	f.oracle.SetCollateral("collat0000", oracle.CollateralInfo{
		Price: dec("1"), Multiplier: dec("1"), Revoked: true,
	})

	_, err := f.engine.OpenPosition(
		context.Background(), owner,
		asset.New(asset.Token("collat0000"), 1_000_000),
		assetToken, dec("1.5"),
	)
	if !errors.Is(err, engine.ErrCollateralRevoked) {
		t.Fatalf("got %v, want ErrCollateralRevoked", err)
	}
}

func TestOpenPosition_CollateralMultiplier(t *testing.T) {
	f := newFixture(t)
	f.oracle.SetCollateral("collat0000", oracle.CollateralInfo{
		Price: dec("1"), Multiplier: dec("2"),
	})

	// The multiplier doubles the collateral value, so the mint doubles too.
	res, err := f.engine.OpenPosition(
		context.Background(), owner,
		asset.New(asset.Token("collat0000"), 1_000_000),
		assetToken, dec("2"),
	)
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	if got := attr(t, res, "mint_amount"); got != "1000000asset0000" {
		t.Errorf("mint_amount: got %q, want %q", got, "1000000asset0000")
	}
}

func TestOpenPosition_IdxMonotonic(t *testing.T) {
	f := newFixture(t)

	first := f.open(t, 1_000_000, "1.5")
	second := f.open(t, 2_000_000, "1.5")
	if first.Idx != 1 || second.Idx != 2 {
		t.Errorf("idx sequence: got %d, %d, want 1, 2", first.Idx, second.Idx)
	}
	next, _ := f.store.NextPositionIdx()
	if next != 3 {
		t.Errorf("next idx: got %d, want 3", next)
	}
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "1.5")

	res, err := f.engine.Deposit(context.Background(), pos.Idx,
		asset.New(asset.Native(baseDenom), 500_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := attr(t, res, "deposit_amount"); got != "500000uusd" {
		t.Errorf("deposit_amount: got %q, want %q", got, "500000uusd")
	}
	if len(res.Effects) != 0 {
		t.Errorf("deposit must emit no effects, got %d", len(res.Effects))
	}

	got, _ := f.store.Position(pos.Idx)
	if !got.Collateral.Amount.Equal(dec("1500000")) {
		t.Errorf("collateral: got %s, want 1500000", got.Collateral.Amount)
	}
}

func TestDeposit_WrongCollateral(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "1.5")

	_, err := f.engine.Deposit(context.Background(), pos.Idx,
		asset.New(asset.Native("ukrw"), 500_000))
	if !errors.Is(err, engine.ErrWrongCollateral) {
		t.Fatalf("mismatched denom: got %v, want ErrWrongCollateral", err)
	}

	_, err = f.engine.Deposit(context.Background(), pos.Idx,
		asset.New(asset.Native(baseDenom), 0))
	if !errors.Is(err, engine.ErrWrongCollateral) {
		t.Fatalf("zero amount: got %v, want ErrWrongCollateral", err)
	}
}

func TestDeposit_NegativeAmount(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1500, "1.5")

	// 1500 collateral backing 1000 debt. A negative deposit would be an
	// unchecked withdrawal leaving the position under the minimum ratio.
	neg := asset.Asset{Info: asset.Native(baseDenom), Amount: dec("-1000")}
	_, err := f.engine.Deposit(context.Background(), pos.Idx, neg)
	if !errors.Is(err, engine.ErrWrongCollateral) {
		t.Fatalf("negative deposit: got %v, want ErrWrongCollateral", err)
	}

	got, err := f.store.Position(pos.Idx)
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if !got.Collateral.Amount.Equal(dec("1500")) {
		t.Errorf("collateral after rejected deposit: got %s, want 1500", got.Collateral.Amount)
	}
}

func TestDeposit_FractionalAmount(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "1.5")

	frac := asset.Asset{Info: asset.Native(baseDenom), Amount: dec("0.5")}
	_, err := f.engine.Deposit(context.Background(), pos.Idx, frac)
	if !errors.Is(err, engine.ErrWrongCollateral) {
		t.Fatalf("fractional deposit: got %v, want ErrWrongCollateral", err)
	}
}

func TestWithdraw_ExactBoundary(t *testing.T) {
	f := newFixture(t)
	// 1,000,000 at ratio 200% mints 500,000; the MCR of 150% requires the
	// position to retain 750,000.
	pos := f.open(t, 1_000_000, "2")

	amount := asset.New(asset.Native(baseDenom), 250_000)
	res, err := f.engine.Withdraw(context.Background(), owner, pos.Idx, &amount)
	if err != nil {
		t.Fatalf("withdraw at exact boundary: %v", err)
	}
	if got := attr(t, res, "withdraw_amount"); got != "250000uusd" {
		t.Errorf("withdraw_amount: got %q, want %q", got, "250000uusd")
	}

	send, ok := res.Effects[0].(effect.SendNative)
	if !ok {
		t.Fatalf("effect type: got %T, want SendNative", res.Effects[0])
	}
	if send.Recipient != owner || !send.Amount.Equal(dec("250000")) {
		t.Errorf("send effect: got %s to %s", send.Amount, send.Recipient)
	}

	got, _ := f.store.Position(pos.Idx)
	if !got.Collateral.Amount.Equal(dec("750000")) {
		t.Errorf("remaining collateral: got %s, want 750000", got.Collateral.Amount)
	}
}

func TestWithdraw_OverLimit(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "2")

	amount := asset.New(asset.Native(baseDenom), 250_001)
	_, err := f.engine.Withdraw(context.Background(), owner, pos.Idx, &amount)
	if !errors.Is(err, engine.ErrWithdrawOverLimit) {
		t.Fatalf("got %v, want ErrWithdrawOverLimit", err)
	}

	// The rejected withdraw must not touch the position.
	got, _ := f.store.Position(pos.Idx)
	if !got.Collateral.Amount.Equal(dec("1000000")) {
		t.Errorf("collateral after rejection: got %s, want 1000000", got.Collateral.Amount)
	}
}

func TestWithdraw_MaximumWhenAmountOmitted(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "2")

	res, err := f.engine.Withdraw(context.Background(), owner, pos.Idx, nil)
	if err != nil {
		t.Fatalf("withdraw max: %v", err)
	}
	if got := attr(t, res, "withdraw_amount"); got != "250000uusd" {
		t.Errorf("withdraw_amount: got %q, want %q", got, "250000uusd")
	}

	// A second maximal withdraw has nothing left to release.
	_, err = f.engine.Withdraw(context.Background(), owner, pos.Idx, nil)
	if !errors.Is(err, engine.ErrWithdrawOverLimit) {
		t.Fatalf("second withdraw: got %v, want ErrWithdrawOverLimit", err)
	}
}

func TestWithdraw_NotOwner(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "2")

	amount := asset.New(asset.Native(baseDenom), 1)
	_, err := f.engine.Withdraw(context.Background(), "addr0001", pos.Idx, &amount)
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestWithdraw_MoreThanLocked(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "2")

	amount := asset.New(asset.Native(baseDenom), 1_000_001)
	_, err := f.engine.Withdraw(context.Background(), owner, pos.Idx, &amount)
	if !errors.Is(err, engine.ErrWithdrawTooMuch) {
		t.Fatalf("got %v, want ErrWithdrawTooMuch", err)
	}
}

func TestMint_Boundary(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "2")

	// 666,666 total minted needs 999,999 collateral at the 150% MCR; one
	// more unit would need 1,000,000.5 and must fail.
	mint := asset.New(asset.Token(assetToken), 166_666)
	if _, err := f.engine.Mint(context.Background(), owner, pos.Idx, mint); err != nil {
		t.Fatalf("mint within limit: %v", err)
	}

	one := asset.New(asset.Token(assetToken), 1)
	_, err := f.engine.Mint(context.Background(), owner, pos.Idx, one)
	if !errors.Is(err, engine.ErrMintOverLimit) {
		t.Fatalf("got %v, want ErrMintOverLimit", err)
	}

	got, _ := f.store.Position(pos.Idx)
	if !got.Asset.Amount.Equal(dec("666666")) {
		t.Errorf("minted: got %s, want 666666", got.Asset.Amount)
	}
}

func TestMint_WrongAsset(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "2")

	_, err := f.engine.Mint(context.Background(), owner, pos.Idx,
		asset.New(asset.Token("asset9999"), 1))
	if !errors.Is(err, engine.ErrWrongAsset) {
		t.Fatalf("got %v, want ErrWrongAsset", err)
	}
}

func TestMint_NegativeAmount(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1500, "1.5")

	neg := asset.Asset{Info: asset.Token(assetToken), Amount: dec("-900")}
	_, err := f.engine.Mint(context.Background(), owner, pos.Idx, neg)
	if !errors.Is(err, engine.ErrWrongAsset) {
		t.Fatalf("negative mint: got %v, want ErrWrongAsset", err)
	}

	got, err := f.store.Position(pos.Idx)
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if !got.Asset.Amount.Equal(dec("1000")) {
		t.Errorf("debt after rejected mint: got %s, want 1000", got.Asset.Amount)
	}
}

func TestBurn_ProtocolFee(t *testing.T) {
	f := newFixture(t)
	f.oracle.SetPrice(assetToken, dec("100"))

	// 2,000,000 at ratio 150% and price 100 mints 13,333. Burning all of it
	// at a 1% fee charges trunc(13,333 x 100 x 0.01 / 1) = 13,333 uusd.
	pos := f.open(t, 2_000_000, "1.5")
	if !pos.Asset.Amount.Equal(dec("13333")) {
		t.Fatalf("minted: got %s, want 13333", pos.Asset.Amount)
	}

	res, err := f.engine.Burn(context.Background(), owner, pos.Idx,
		asset.New(asset.Token(assetToken), 13_333))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := attr(t, res, "protocol_fee"); got != "13333uusd" {
		t.Errorf("protocol_fee: got %q, want %q", got, "13333uusd")
	}

	if len(res.Effects) != 2 {
		t.Fatalf("effects: got %d, want burn + fee transfer", len(res.Effects))
	}
	burn, ok := res.Effects[0].(effect.BurnToken)
	if !ok || !burn.Amount.Equal(dec("13333")) {
		t.Errorf("burn effect: got %+v", res.Effects[0])
	}
	feeSend, ok := res.Effects[1].(effect.SendNative)
	if !ok || feeSend.Recipient != collector || !feeSend.Amount.Equal(dec("13333")) {
		t.Errorf("fee effect: got %+v", res.Effects[1])
	}

	// Burn repays debt but never auto-releases principal.
	got, _ := f.store.Position(pos.Idx)
	if !got.Asset.Amount.IsZero() {
		t.Errorf("debt after full burn: got %s, want 0", got.Asset.Amount)
	}
	if !got.Collateral.Amount.Equal(dec("1986667")) {
		t.Errorf("collateral after fee: got %s, want 1986667", got.Collateral.Amount)
	}
}

func TestBurn_FeeCappedAtCollateral(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_500, "1.5")

	// The price spikes after the open; the computed fee would exceed the
	// locked collateral, so it is capped there.
	f.oracle.SetPrice(assetToken, dec("10000"))

	res, err := f.engine.Burn(context.Background(), owner, pos.Idx,
		asset.New(asset.Token(assetToken), 1_000))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := attr(t, res, "protocol_fee"); got != "1500uusd" {
		t.Errorf("protocol_fee: got %q, want %q", got, "1500uusd")
	}

	got, _ := f.store.Position(pos.Idx)
	if !got.Collateral.Amount.IsZero() {
		t.Errorf("collateral: got %s, want 0", got.Collateral.Amount)
	}
}

func TestBurn_OverMinted(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "1.5")

	_, err := f.engine.Burn(context.Background(), owner, pos.Idx,
		asset.New(asset.Token(assetToken), 666_667))
	if !errors.Is(err, engine.ErrBurnOverMinted) {
		t.Fatalf("got %v, want ErrBurnOverMinted", err)
	}
}

func TestBurn_NegativeAmount(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "1.5")

	neg := asset.Asset{Info: asset.Token(assetToken), Amount: dec("-1")}
	_, err := f.engine.Burn(context.Background(), owner, pos.Idx, neg)
	if !errors.Is(err, engine.ErrWrongAsset) {
		t.Fatalf("negative burn: got %v, want ErrWrongAsset", err)
	}

	got, err := f.store.Position(pos.Idx)
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if !got.Asset.Amount.Equal(dec("666666")) {
		t.Errorf("debt after rejected burn: got %s, want 666666", got.Asset.Amount)
	}
}

func TestBurn_NotOwner(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "1.5")

	_, err := f.engine.Burn(context.Background(), "addr0001", pos.Idx,
		asset.New(asset.Token(assetToken), 1))
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestMigratedAsset(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "2")

	res, err := f.engine.RegisterMigration(context.Background(), assetToken, dec("2"))
	if err != nil {
		t.Fatalf("register migration: %v", err)
	}
	if _, ok := res.Effects[0].(effect.RevokeCollateral); !ok {
		t.Fatalf("effect type: got %T, want RevokeCollateral", res.Effects[0])
	}

	cfg, _ := f.store.AssetConfig(assetToken)
	if !cfg.Migrated() || !cfg.MinCollateralRatio.Equal(dec("1")) {
		t.Fatalf("migrated config: %+v", cfg)
	}

	// Ratio-raising operations reject on the deprecated asset.
	if _, err := f.engine.Mint(context.Background(), owner, pos.Idx,
		asset.New(asset.Token(assetToken), 1)); !errors.Is(err, engine.ErrAssetMigrated) {
		t.Errorf("mint: got %v, want ErrAssetMigrated", err)
	}
	if _, err := f.engine.Deposit(context.Background(), pos.Idx,
		asset.New(asset.Native(baseDenom), 1)); !errors.Is(err, engine.ErrAssetMigrated) {
		t.Errorf("deposit: got %v, want ErrAssetMigrated", err)
	}
	if _, err := f.engine.OpenPosition(context.Background(), owner,
		asset.New(asset.Native(baseDenom), 1_000_000),
		assetToken, dec("1.5")); !errors.Is(err, engine.ErrAssetMigrated) {
		t.Errorf("open: got %v, want ErrAssetMigrated", err)
	}

	// Burn prices at the end price, not at whatever the oracle says now.
	f.oracle.SetPrice(assetToken, dec("999"))
	burnRes, err := f.engine.Burn(context.Background(), owner, pos.Idx,
		asset.New(asset.Token(assetToken), 100_000))
	if err != nil {
		t.Fatalf("burn migrated: %v", err)
	}
	// fee = trunc(100,000 x 2 x 0.01) at collateral price 1
	if got := attr(t, burnRes, "protocol_fee"); got != "2000uusd" {
		t.Errorf("protocol_fee: got %q, want %q", got, "2000uusd")
	}

	// Withdraw runs against the relaxed 1.0 ratio at the end price.
	// Remaining debt 400,000 x 2 = 800,000 required; 198,000 is free.
	withdrawRes, err := f.engine.Withdraw(context.Background(), owner, pos.Idx, nil)
	if err != nil {
		t.Fatalf("withdraw migrated: %v", err)
	}
	if got := attr(t, withdrawRes, "withdraw_amount"); got != "198000uusd" {
		t.Errorf("withdraw_amount: got %q, want %q", got, "198000uusd")
	}

	// Migration is one-way.
	if _, err := f.engine.RegisterMigration(context.Background(), assetToken, dec("3")); !errors.Is(err, engine.ErrAssetMigrated) {
		t.Errorf("second migration: got %v, want ErrAssetMigrated", err)
	}
}

func TestRegisterAsset(t *testing.T) {
	f := newFixture(t)

	// The fixture already registered asset0000.
	_, err := f.engine.RegisterAsset(context.Background(), assetToken, dec("1.5"))
	if !errors.Is(err, state.ErrAlreadyRegistered) {
		t.Fatalf("duplicate: got %v, want ErrAlreadyRegistered", err)
	}
	cfg, _ := f.store.AssetConfig(assetToken)
	if !cfg.MinCollateralRatio.Equal(dec("1.5")) {
		t.Errorf("duplicate registration must not change the first: %+v", cfg)
	}

	_, err = f.engine.RegisterAsset(context.Background(), "asset0001", dec("1.05"))
	if !errors.Is(err, state.ErrRatioBelowFloor) {
		t.Fatalf("low ratio: got %v, want ErrRatioBelowFloor", err)
	}

	res, err := f.engine.RegisterAsset(context.Background(), "asset0001", dec("1.1"))
	if err != nil {
		t.Fatalf("register at the floor: %v", err)
	}
	reg, ok := res.Effects[0].(effect.RegisterCollateral)
	if !ok {
		t.Fatalf("effect type: got %T, want RegisterCollateral", res.Effects[0])
	}
	if !reg.Multiplier.Equal(dec("1")) || reg.Asset.Token != "asset0001" {
		t.Errorf("register effect: %+v", reg)
	}
}

func TestUpdateAsset(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.UpdateAsset(context.Background(), assetToken, dec("2")); err != nil {
		t.Fatalf("update asset: %v", err)
	}
	cfg, _ := f.store.AssetConfig(assetToken)
	if !cfg.MinCollateralRatio.Equal(dec("2")) {
		t.Errorf("mcr: got %s, want 2", cfg.MinCollateralRatio)
	}

	_, err := f.engine.UpdateAsset(context.Background(), assetToken, dec("1.0"))
	if !errors.Is(err, state.ErrRatioBelowFloor) {
		t.Fatalf("got %v, want ErrRatioBelowFloor", err)
	}
}

func TestUpdateConfig(t *testing.T) {
	f := newFixture(t)

	bad := dec("1")
	_, err := f.engine.UpdateConfig(context.Background(), state.ConfigUpdate{ProtocolFeeRate: &bad})
	if !errors.Is(err, state.ErrFeeRateTooHigh) {
		t.Fatalf("got %v, want ErrFeeRateTooHigh", err)
	}

	rate := dec("0.015")
	newOwner := "owner0001"
	if _, err := f.engine.UpdateConfig(context.Background(), state.ConfigUpdate{
		Owner:           &newOwner,
		ProtocolFeeRate: &rate,
	}); err != nil {
		t.Fatalf("update config: %v", err)
	}

	cfg, _ := f.store.Config()
	if cfg.Owner != newOwner || !cfg.ProtocolFeeRate.Equal(rate) {
		t.Errorf("config after update: %+v", cfg)
	}
}

func TestOracleFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, 1_000_000, "2")

	// A fresh oracle with no price table simulates an outage.
	static := oracle.NewStatic()
	broken := engine.New(f.store, static, static, testutil.Metrics())

	_, err := broken.Mint(context.Background(), owner, pos.Idx,
		asset.New(asset.Token(assetToken), 1))
	if !errors.Is(err, oracle.ErrUnknownAsset) {
		t.Fatalf("got %v, want ErrUnknownAsset", err)
	}

	got, _ := f.store.Position(pos.Idx)
	if !got.Asset.Amount.Equal(pos.Asset.Amount) {
		t.Errorf("position changed on oracle failure: got %s, want %s",
			got.Asset.Amount, pos.Asset.Amount)
	}
}
