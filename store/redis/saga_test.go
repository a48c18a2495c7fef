package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/stockledger"
	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/id"
	ledgerstore "github.com/xraph/stockledger/store"
	"github.com/xraph/stockledger/store/storetest"
)

var errLostReply = errors.New("i/o timeout")

// scriptServer answers the saga scripts in process. It can apply a command
// and then drop its reply, or apply a command twice as a resent request
// would.
type scriptServer struct {
	mu       sync.Mutex
	stock    map[string]int64
	markers  map[string]int64
	billSaga map[string]string
	drop     map[string]bool
	replay   map[string]bool
	handlers map[string]func(keys []string, args []any) any
}

func newScriptServer() *scriptServer {
	f := &scriptServer{
		stock:    map[string]int64{},
		markers:  map[string]int64{},
		billSaga: map[string]string{},
		drop:     map[string]bool{},
		replay:   map[string]bool{},
	}
	f.handlers = map[string]func([]string, []any) any{
		decrementScript.Hash():    f.decrement,
		restoreStockScript.Hash(): f.restore,
		insertBillScript.Hash():   f.insertBill,
		releaseBillScript.Hash():  f.releaseBill,
	}
	return f
}

func (f *scriptServer) decrement(keys []string, args []any) any {
	if _, ok := f.markers[keys[1]]; ok {
		return []any{int64(1), f.stock[keys[0]]}
	}
	stock, ok := f.stock[keys[0]]
	if !ok {
		return []any{int64(-1), int64(0)}
	}
	qty := toInt64(args[0])
	if stock < qty {
		return []any{int64(0), stock}
	}
	f.stock[keys[0]] = stock - qty
	f.markers[keys[1]] = qty
	return []any{int64(1), stock - qty}
}

func (f *scriptServer) restore(keys []string, _ []any) any {
	qty, ok := f.markers[keys[1]]
	if !ok {
		return int64(0)
	}
	delete(f.markers, keys[1])
	f.stock[keys[0]] += qty
	return int64(1)
}

func (f *scriptServer) insertBill(keys []string, args []any) any {
	token := fmt.Sprint(args[4])
	if saga, ok := f.billSaga[keys[0]]; ok {
		if saga == token {
			return int64(1)
		}
		return int64(0)
	}
	f.billSaga[keys[0]] = token
	return int64(1)
}

func (f *scriptServer) releaseBill(keys []string, args []any) any {
	if saga, ok := f.billSaga[keys[0]]; !ok || saga != fmt.Sprint(args[0]) {
		return int64(0)
	}
	delete(f.billSaga, keys[0])
	return int64(1)
}

func (f *scriptServer) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f *scriptServer) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (f *scriptServer) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		if cmd.Name() != "evalsha" || len(args) < 3 {
			err := fmt.Errorf("unexpected command %v", args)
			cmd.SetErr(err)
			return err
		}
		hash := fmt.Sprint(args[1])
		n := int(toInt64(args[2]))
		keys := make([]string, n)
		for i := range keys {
			keys[i] = fmt.Sprint(args[3+i])
		}
		rest := args[3+n:]

		f.mu.Lock()
		defer f.mu.Unlock()
		h, ok := f.handlers[hash]
		if !ok {
			err := fmt.Errorf("unknown script %s", hash)
			cmd.SetErr(err)
			return err
		}
		reply := h(keys, rest)
		if f.replay[hash] {
			reply = h(keys, rest)
		}
		if f.drop[hash] {
			cmd.SetErr(errLostReply)
			return errLostReply
		}
		cmd.(*redis.Cmd).SetVal(reply)
		return nil
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	default:
		panic(fmt.Sprintf("not an integer: %T", v))
	}
}

func newSagaStore(t *testing.T) (*Store, *scriptServer) {
	t.Helper()
	srv := newScriptServer()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	client.AddHook(srv)
	t.Cleanup(func() { _ = client.Close() })

	s := New(client)
	srv.stock[s.stockKey("A")] = 10
	return s, srv
}

func sagaBill(number string) *bill.Bill {
	return storetest.Bill(number, "V", "A", 6, bill.PaymentDue, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestSagaCompensation(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		setup     func(s *Store, srv *scriptServer)
		failAfter bool
		wantStock int64
		wantBills int
		wantErr   error
	}{
		{
			name:      "decrement reply lost",
			setup:     func(_ *Store, srv *scriptServer) { srv.drop[decrementScript.Hash()] = true },
			wantStock: 10,
			wantErr:   errLostReply,
		},
		{
			name:      "bill reply lost",
			setup:     func(_ *Store, srv *scriptServer) { srv.drop[insertBillScript.Hash()] = true },
			wantStock: 10,
			wantErr:   errLostReply,
		},
		{
			name:      "decrement delivered twice",
			setup:     func(_ *Store, srv *scriptServer) { srv.replay[decrementScript.Hash()] = true },
			wantStock: 4,
			wantBills: 1,
		},
		{
			name:      "bill delivered twice",
			setup:     func(_ *Store, srv *scriptServer) { srv.replay[insertBillScript.Hash()] = true },
			wantStock: 4,
			wantBills: 1,
		},
		{
			name:      "failure after both writes",
			setup:     func(*Store, *scriptServer) {},
			failAfter: true,
			wantStock: 10,
			wantErr:   boom,
		},
		{
			name: "number owned by another sale",
			setup: func(s *Store, srv *scriptServer) {
				srv.billSaga[s.billKey("B-1")] = "sale_other"
			},
			wantStock: 10,
			wantBills: 1,
			wantErr:   stockledger.ErrDuplicateBillNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, srv := newSagaStore(t)
			tt.setup(s, srv)

			err := s.RunInTx(context.Background(), func(ctx context.Context, tx ledgerstore.Tx) error {
				if _, err := tx.TryDecrement(ctx, "A", 6); err != nil {
					return err
				}
				if err := tx.InsertBill(ctx, sagaBill("B-1")); err != nil {
					return err
				}
				if tt.failAfter {
					return boom
				}
				return nil
			})

			if tt.wantErr == nil && err != nil {
				t.Fatalf("RunInTx: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("RunInTx: got %v, want %v", err, tt.wantErr)
			}
			if errors.Is(err, stockledger.ErrCompensationFailed) {
				t.Fatalf("compensation failed: %v", err)
			}
			if got := srv.stock[s.stockKey("A")]; got != tt.wantStock {
				t.Errorf("stock: got %d, want %d", got, tt.wantStock)
			}
			if got := len(srv.billSaga); got != tt.wantBills {
				t.Errorf("bills: got %d, want %d", got, tt.wantBills)
			}
			if tt.wantErr != nil && len(srv.markers) != 0 {
				t.Errorf("decrement markers left after compensation: %v", srv.markers)
			}
		})
	}
}

func TestSagaTokenPerTransaction(t *testing.T) {
	s, srv := newSagaStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := s.RunInTx(ctx, func(ctx context.Context, tx ledgerstore.Tx) error {
			_, err := tx.TryDecrement(ctx, "A", 3)
			return err
		})
		if err != nil {
			t.Fatalf("sale %d: %v", i, err)
		}
	}
	if got := srv.stock[s.stockKey("A")]; got != 4 {
		t.Errorf("stock: got %d, want 4", got)
	}
	if len(srv.markers) != 2 {
		t.Errorf("markers: got %d, want one per sale", len(srv.markers))
	}

	tokens := map[string]bool{}
	for key := range srv.markers {
		// stockledger:saga:<token>:<step>
		parts := strings.Split(strings.TrimPrefix(key, DefaultPrefix+"saga:"), ":")
		if _, err := id.ParseSaleID(parts[0]); err != nil {
			t.Errorf("saga token %q: %v", parts[0], err)
		}
		tokens[parts[0]] = true
	}
	if len(tokens) != 2 {
		t.Errorf("tokens: got %d distinct, want 2", len(tokens))
	}
}
