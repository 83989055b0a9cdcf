package domain

// TableState is the occupancy state of a mesa. Names follow the floor staff's
// vocabulary rather than inventing English equivalents.
type TableState string

const (
	StateLibre           TableState = "libre"
	StateOcupada         TableState = "ocupada"
	StateEsperandoPedido TableState = "esperando_pedido"
	StateCuentaPedida    TableState = "cuenta_pedida"
	StateReservada       TableState = "reservada"
	StateFueraDeServicio TableState = "fuera_de_servicio"
)

type TableEvent string

const (
	EventFirstItem         TableEvent = "first_item"
	EventReserve           TableEvent = "reserve"
	EventCancelReservation TableEvent = "cancel_reservation"
	EventSendToKitchen     TableEvent = "send_to_kitchen"
	EventRequestBill       TableEvent = "request_bill"
	EventFinalize          TableEvent = "finalize"
	EventCancelOrder       TableEvent = "cancel_order"
	EventOutOfService      TableEvent = "out_of_service"
	EventRestore           TableEvent = "restore"
)

// OccupiedFamily reports whether the state implies an active order exists.
func (s TableState) OccupiedFamily() bool {
	switch s {
	case StateOcupada, StateEsperandoPedido, StateCuentaPedida:
		return true
	}
	return false
}

type transitionKey struct {
	from  TableState
	event TableEvent
}

var transitions = map[transitionKey]TableState{
	{StateLibre, EventFirstItem}:             StateOcupada,
	{StateLibre, EventReserve}:               StateReservada,
	{StateReservada, EventFirstItem}:         StateOcupada,
	{StateReservada, EventCancelReservation}: StateLibre,
	{StateOcupada, EventSendToKitchen}:       StateEsperandoPedido,
	// re-sending from esperando_pedido is legal: newly added items go out too
	{StateEsperandoPedido, EventSendToKitchen}: StateEsperandoPedido,
	{StateOcupada, EventRequestBill}:           StateCuentaPedida,
	{StateEsperandoPedido, EventRequestBill}:   StateCuentaPedida,
	{StateCuentaPedida, EventFinalize}:         StateLibre,
	{StateOcupada, EventCancelOrder}:           StateLibre,
	{StateEsperandoPedido, EventCancelOrder}:   StateLibre,
	{StateCuentaPedida, EventCancelOrder}:      StateLibre,
	{StateLibre, EventOutOfService}:            StateFueraDeServicio,
	{StateReservada, EventOutOfService}:        StateFueraDeServicio,
	{StateFueraDeServicio, EventRestore}:       StateLibre,
}

// Transition applies event to state. It is a pure function: it owns no storage
// and mutates nothing. Illegal combinations return *InvalidTransitionError and
// the caller must leave the table and any active order untouched.
func Transition(state TableState, event TableEvent) (TableState, error) {
	next, ok := transitions[transitionKey{state, event}]
	if !ok {
		return state, &InvalidTransitionError{State: state, Event: event}
	}
	return next, nil
}
