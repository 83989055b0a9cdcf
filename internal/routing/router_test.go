package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-service/internal/domain"
)

func destinations() []domain.PrinterDestination {
	return []domain.PrinterDestination{
		{ID: 1, Name: "cocina-principal", Category: domain.CategoryKitchen, Active: true, Priority: 1},
		{ID: 2, Name: "cocina-backup", Category: domain.CategoryKitchen, Active: true, Priority: 2},
		{ID: 3, Name: "barra", Category: domain.CategoryBar, Active: true, Priority: 1},
	}
}

func kitchenItem(name string, qty int) domain.TicketItem {
	return domain.TicketItem{ProductID: 10, Name: name, Quantity: qty, Category: domain.CategoryKitchen}
}

func TestRoutePrefersLowestRank(t *testing.T) {
	r, err := NewRouter(destinations())
	require.NoError(t, err)

	now := time.Now()
	tickets, err := r.Route(5, now, []domain.TicketItem{kitchenItem("hamburguesa", 2)})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(1), tickets[0].PrinterID)
	assert.Equal(t, 5, tickets[0].TableNumber)
	assert.Equal(t, now, tickets[0].IssuedAt)
	assert.False(t, tickets[0].Degraded)
}

func TestRouteFailoverWithinCategoryIsNotDegraded(t *testing.T) {
	r, err := NewRouter(destinations())
	require.NoError(t, err)

	// primary kitchen printer goes down mid-session
	r.SetActive(1, false)

	tickets, err := r.Route(5, time.Now(), []domain.TicketItem{kitchenItem("pizza", 1)})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(2), tickets[0].PrinterID)
	assert.False(t, tickets[0].Degraded, "rank 2 of the same category is normal routing, not degraded")
}

func TestRouteCrossCategoryFallbackIsDegraded(t *testing.T) {
	r, err := NewRouter(destinations())
	require.NoError(t, err)

	// whole kitchen category down: items must land on the bar printer, flagged
	r.SetActive(1, false)
	r.SetActive(2, false)

	tickets, err := r.Route(3, time.Now(), []domain.TicketItem{
		kitchenItem("milanesa", 1),
		{ProductID: 20, Name: "fernet", Quantity: 2, Category: domain.CategoryBar},
	})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(3), tickets[0].PrinterID)
	assert.True(t, tickets[0].Degraded)
	assert.Len(t, tickets[0].Items, 2)
}

func TestRouteNoActivePrinters(t *testing.T) {
	r, err := NewRouter(destinations())
	require.NoError(t, err)
	for _, id := range []int64{1, 2, 3} {
		r.SetActive(id, false)
	}

	_, err = r.Route(3, time.Now(), []domain.TicketItem{kitchenItem("flan", 1)})
	assert.ErrorIs(t, err, domain.ErrNoActivePrinters)
}

func TestRouteSplitsByCategory(t *testing.T) {
	r, err := NewRouter(destinations())
	require.NoError(t, err)

	tickets, err := r.Route(8, time.Now(), []domain.TicketItem{
		kitchenItem("ravioles", 1),
		{ProductID: 21, Name: "vermut", Quantity: 1, Category: domain.CategoryBar},
	})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	// deterministic order by printer id
	assert.Equal(t, int64(1), tickets[0].PrinterID)
	assert.Equal(t, int64(3), tickets[1].PrinterID)
}

func TestRouteEmptyBatch(t *testing.T) {
	r, err := NewRouter(destinations())
	require.NoError(t, err)
	tickets, err := r.Route(1, time.Now(), nil)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestRouteWhilePrinterFlips(t *testing.T) {
	r, err := NewRouter(destinations())
	require.NoError(t, err)

	// a printer going up and down mid-service must never corrupt a routing pass
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			r.SetActive(1, i%2 == 0)
		}
	}()
	for i := 0; i < 200; i++ {
		tickets, err := r.Route(5, time.Now(), []domain.TicketItem{kitchenItem("pizza", 1)})
		require.NoError(t, err)
		require.Len(t, tickets, 1)
		// whichever kitchen printer won, the batch stays in-category
		assert.Contains(t, []int64{1, 2}, tickets[0].PrinterID)
		assert.False(t, tickets[0].Degraded)
	}
	<-done
}

func TestSetDestinationsRejectsDuplicateRank(t *testing.T) {
	_, err := NewRouter([]domain.PrinterDestination{
		{ID: 1, Name: "a", Category: domain.CategoryKitchen, Active: true, Priority: 1},
		{ID: 2, Name: "b", Category: domain.CategoryKitchen, Active: true, Priority: 1},
	})
	assert.Error(t, err)

	// same rank in different categories is fine
	_, err = NewRouter([]domain.PrinterDestination{
		{ID: 1, Name: "a", Category: domain.CategoryKitchen, Active: true, Priority: 1},
		{ID: 2, Name: "b", Category: domain.CategoryBar, Active: true, Priority: 1},
	})
	assert.NoError(t, err)
}
