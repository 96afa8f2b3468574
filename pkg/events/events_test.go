package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/lightpool/lightpool-go/pkg/bincode"
	"github.com/lightpool/lightpool-go/pkg/types"
)

func TestEnvelopeJSON(t *testing.T) {
	ev := New(CallOrderCancelled, []byte{1, 2, 255})

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	want := `{"event_type":{"Call":"order_cancelled"},"data":{"Bytes":[1,2,255]}}`
	if string(data) != want {
		t.Errorf("event json = %s, want %s", data, want)
	}

	var back Event
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if back.EventType.Call != CallOrderCancelled {
		t.Errorf("call = %q, want %q", back.EventType.Call, CallOrderCancelled)
	}
	if len(back.Data) != 3 || back.Data[2] != 255 {
		t.Errorf("data = %v, want [1 2 255]", back.Data)
	}
}

func TestOrderEventsRoundTrip(t *testing.T) {
	orderID := types.OrderIdFromWords([4]uint64{1, 2, 3, 4})
	marketID := types.ObjectID{0xaa}
	creator := types.Address{0x11}

	created := OrderCreatedEvent{
		OrderID:  orderID,
		MarketID: marketID,
		Side:     types.Sell,
		Amount:   5_000_000,
		Price:    50_000_000_000,
		Creator:  creator,
	}
	gotCreated, err := DecodeOrderCreated(created.Encode())
	if err != nil {
		t.Fatalf("failed to decode order created: %v", err)
	}
	if gotCreated != created {
		t.Errorf("order created = %+v, want %+v", gotCreated, created)
	}

	filled := OrderFilledEvent{
		OrderID:  orderID,
		MarketID: marketID,
		Amount:   1_000_000,
		Price:    49_999_000_000,
		Maker:    creator,
		Taker:    types.Address{0x22},
	}
	gotFilled, err := DecodeOrderFilled(filled.Encode())
	if err != nil {
		t.Fatalf("failed to decode order filled: %v", err)
	}
	if gotFilled != filled {
		t.Errorf("order filled = %+v, want %+v", gotFilled, filled)
	}

	cancelled := OrderCancelledEvent{OrderID: orderID, MarketID: marketID}
	gotCancelled, err := DecodeOrderCancelled(cancelled.Encode())
	if err != nil {
		t.Fatalf("failed to decode order cancelled: %v", err)
	}
	if gotCancelled != cancelled {
		t.Errorf("order cancelled = %+v, want %+v", gotCancelled, cancelled)
	}
}

func TestTokenCreatedRoundTrip(t *testing.T) {
	ev := TokenCreatedEvent{
		TokenID:      types.ObjectID{0x01},
		TokenAddress: types.Address{0x02},
		Name:         "Wrapped BTC",
		Symbol:       "WBTC",
		TotalSupply:  21_000_000_000_000,
		Creator:      types.Address{0x03},
		Mintable:     true,
		To:           types.Address{0x03},
		BalanceID:    types.ObjectID{0x04},
	}
	got, err := DecodeTokenCreated(ev.Encode())
	if err != nil {
		t.Fatalf("failed to decode token created: %v", err)
	}
	if got != ev {
		t.Errorf("token created = %+v, want %+v", got, ev)
	}
}

func TestTransferRemainderOption(t *testing.T) {
	base := TransferEvent{
		From:          types.Address{0x01},
		To:            types.Address{0x02},
		Amount:        750,
		FromBalanceID: types.ObjectID{0x03},
		ToBalanceID:   types.ObjectID{0x04},
	}

	// No remainder: the option tag is absent and remainder stays zero.
	got, err := DecodeTransfer(base.Encode())
	if err != nil {
		t.Fatalf("failed to decode transfer: %v", err)
	}
	if got.RemainderID != nil || got.Remainder != 0 {
		t.Errorf("remainder = (%v, %d), want (nil, 0)", got.RemainderID, got.Remainder)
	}

	rem := types.ObjectID{0x05}
	withRem := base
	withRem.RemainderID = &rem
	withRem.Remainder = 250

	got, err = DecodeTransfer(withRem.Encode())
	if err != nil {
		t.Fatalf("failed to decode transfer with remainder: %v", err)
	}
	if got.RemainderID == nil || *got.RemainderID != rem {
		t.Fatalf("remainder id = %v, want %s", got.RemainderID, rem)
	}
	if got.Remainder != 250 {
		t.Errorf("remainder = %d, want 250", got.Remainder)
	}
}

func TestMarketCreatedRoundTrip(t *testing.T) {
	ev := MarketCreatedEvent{
		MarketID:          types.ObjectID{0x01},
		MarketAddress:     types.Address{0x02},
		Name:              "BTC/USDC",
		BaseToken:         types.Address{0x03},
		QuoteToken:        types.Address{0x04},
		BaseBalanceID:     types.ObjectID{0x05},
		QuoteBalanceID:    types.ObjectID{0x06},
		MinOrderSize:      1000,
		TickSize:          100,
		MakerFeeBps:       10,
		TakerFeeBps:       20,
		AllowMarketOrders: true,
		State:             types.MarketActive,
		Creator:           types.Address{0x07},
	}
	got, err := DecodeMarketCreated(ev.Encode())
	if err != nil {
		t.Fatalf("failed to decode market created: %v", err)
	}
	if got != ev {
		t.Errorf("market created = %+v, want %+v", got, ev)
	}
}

func TestParseDispatch(t *testing.T) {
	created := OrderCreatedEvent{
		OrderID: types.OrderIdFromWords([4]uint64{9, 0, 0, 0}),
		Side:    types.Buy,
		Amount:  42,
	}

	parsed, err := Parse(created.Envelope())
	if err != nil {
		t.Fatalf("failed to parse event: %v", err)
	}
	got, ok := parsed.(OrderCreatedEvent)
	if !ok {
		t.Fatalf("parsed type = %T, want OrderCreatedEvent", parsed)
	}
	if got != created {
		t.Errorf("parsed = %+v, want %+v", got, created)
	}

	// Unknown call names pass through untouched.
	raw := New("solar_flare", []byte{0xde, 0xad})
	parsed, err = Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse unknown event: %v", err)
	}
	ev, ok := parsed.(Event)
	if !ok {
		t.Fatalf("parsed type = %T, want Event", parsed)
	}
	if ev.EventType.Call != "solar_flare" || len(ev.Data) != 2 {
		t.Errorf("unknown event mangled: %+v", ev)
	}
}

func TestParseTruncatedPayload(t *testing.T) {
	full := OrderCreatedEvent{Side: types.Buy, Amount: 1}.Encode()

	_, err := Parse(New(CallOrderCreated, full[:len(full)-1]))
	if err == nil {
		t.Fatal("expected error for truncated payload")
	}
	if !errors.Is(err, bincode.ErrTruncated) {
		t.Errorf("error = %v, want ErrTruncated", err)
	}
}
