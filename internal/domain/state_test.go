package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionLegal(t *testing.T) {
	cases := []struct {
		from  TableState
		event TableEvent
		want  TableState
	}{
		{StateLibre, EventFirstItem, StateOcupada},
		{StateLibre, EventReserve, StateReservada},
		{StateReservada, EventFirstItem, StateOcupada},
		{StateReservada, EventCancelReservation, StateLibre},
		{StateOcupada, EventSendToKitchen, StateEsperandoPedido},
		{StateEsperandoPedido, EventSendToKitchen, StateEsperandoPedido},
		{StateOcupada, EventRequestBill, StateCuentaPedida},
		{StateEsperandoPedido, EventRequestBill, StateCuentaPedida},
		{StateCuentaPedida, EventFinalize, StateLibre},
		{StateOcupada, EventCancelOrder, StateLibre},
		{StateEsperandoPedido, EventCancelOrder, StateLibre},
		{StateCuentaPedida, EventCancelOrder, StateLibre},
		{StateLibre, EventOutOfService, StateFueraDeServicio},
		{StateReservada, EventOutOfService, StateFueraDeServicio},
		{StateFueraDeServicio, EventRestore, StateLibre},
	}
	for _, c := range cases {
		got, err := Transition(c.from, c.event)
		require.NoError(t, err, "%s + %s", c.from, c.event)
		assert.Equal(t, c.want, got, "%s + %s", c.from, c.event)
	}
}

func TestTransitionIllegal(t *testing.T) {
	cases := []struct {
		from  TableState
		event TableEvent
	}{
		{StateLibre, EventSendToKitchen},
		{StateLibre, EventRequestBill},
		{StateLibre, EventFinalize},
		{StateLibre, EventCancelOrder},
		{StateLibre, EventRestore},
		{StateReservada, EventSendToKitchen},
		{StateReservada, EventRequestBill},
		{StateOcupada, EventFirstItem},
		{StateOcupada, EventReserve},
		{StateOcupada, EventFinalize},
		{StateOcupada, EventOutOfService},
		{StateEsperandoPedido, EventFinalize},
		{StateCuentaPedida, EventSendToKitchen},
		{StateCuentaPedida, EventRequestBill},
		{StateCuentaPedida, EventFirstItem},
		{StateFueraDeServicio, EventFirstItem},
		{StateFueraDeServicio, EventReserve},
		{StateFueraDeServicio, EventOutOfService},
	}
	for _, c := range cases {
		got, err := Transition(c.from, c.event)
		require.Error(t, err, "%s + %s", c.from, c.event)

		var ite *InvalidTransitionError
		require.ErrorAs(t, err, &ite)
		assert.Equal(t, c.from, ite.State)
		assert.Equal(t, c.event, ite.Event)
		// state reported back unchanged
		assert.Equal(t, c.from, got)
	}
}

func TestOccupiedFamily(t *testing.T) {
	assert.True(t, StateOcupada.OccupiedFamily())
	assert.True(t, StateEsperandoPedido.OccupiedFamily())
	assert.True(t, StateCuentaPedida.OccupiedFamily())
	assert.False(t, StateLibre.OccupiedFamily())
	assert.False(t, StateReservada.OccupiedFamily())
	assert.False(t, StateFueraDeServicio.OccupiedFamily())
}
