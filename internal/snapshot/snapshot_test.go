package snapshot

import (
	"sync"
	"testing"

	"mdgateway/internal/book"
	"mdgateway/pkg/types"
)

func TestReadBeforePublishReturnsZeroValue(t *testing.T) {
	t.Parallel()
	v := New()
	snap := v.Read()
	if snap.Symbol != "" || len(snap.BidLevels) != 0 {
		t.Errorf("expected zero-value snapshot, got %+v", snap)
	}
}

func TestPublishFromIsVisibleToRead(t *testing.T) {
	t.Parallel()
	b := book.New("BTC-EUR")
	b.Update(types.Quote{Side: types.Bid, Price: 100, Size: 1})
	b.Update(types.Quote{Side: types.Ask, Price: 101, Size: 1})

	v := New()
	v.PublishFrom(b, 10)

	snap := v.Read()
	if snap.Symbol != "BTC-EUR" {
		t.Errorf("Symbol = %q, want BTC-EUR", snap.Symbol)
	}
	if snap.BestBid != 100 || snap.BestAsk != 101 {
		t.Errorf("got bestBid=%v bestAsk=%v", snap.BestBid, snap.BestAsk)
	}
	if snap.MonoTS.IsZero() {
		t.Error("expected MonoTS to be set")
	}
}

func TestPublishAlternatesSlotsAndNeverTearsAReader(t *testing.T) {
	t.Parallel()
	b := book.New("BTC-EUR")
	v := New()

	const maxLevels = 20
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			b.Update(types.Quote{Side: types.Bid, Price: float64(100 + i%50), Size: 1})
			b.Update(types.Quote{Side: types.Ask, Price: float64(200 + i%50), Size: 1})
			v.PublishFrom(b, maxLevels)
		}
		close(stop)
	}()

	readers := 4
	wg.Add(readers)
	for r := 0; r < readers; r++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := v.Read()
				if len(snap.BidLevels) > maxLevels || len(snap.AskLevels) > maxLevels {
					t.Errorf("snapshot exceeded maxLevels: bids=%d asks=%d", len(snap.BidLevels), len(snap.AskLevels))
				}
			}
		}()
	}

	wg.Wait()
}
