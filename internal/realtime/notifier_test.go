package realtime

import "testing"

func TestSubscribeDeduplicates(t *testing.T) {
	n := NewNotifier(nil)
	first := n.Subscribe("students", "UPDATE", nil, func(Change) {})
	second := n.Subscribe("students", "UPDATE", nil, func(Change) {})
	if first != second {
		t.Error("identical subscribe parameters should return the existing subscription")
	}
	if got := len(n.Subscriptions()); got != 1 {
		t.Errorf("got %d subscriptions, want 1", got)
	}
}

func TestSubscribeDistinctFilters(t *testing.T) {
	n := NewNotifier(nil)
	a := n.Subscribe("installments", "UPDATE", &Filter{Column: "student_id", Value: "1"}, func(Change) {})
	b := n.Subscribe("installments", "UPDATE", &Filter{Column: "student_id", Value: "2"}, func(Change) {})
	if a == b {
		t.Error("different filters must create distinct subscriptions")
	}
	if got := len(n.Subscriptions()); got != 2 {
		t.Errorf("got %d subscriptions, want 2", got)
	}
}

func TestUnsubscribeRemovesFromRegistry(t *testing.T) {
	n := NewNotifier(nil)
	sub := n.Subscribe("students", "*", nil, func(Change) {})
	n.Unsubscribe(sub)
	if got := len(n.Subscriptions()); got != 0 {
		t.Errorf("got %d subscriptions, want 0", got)
	}
	// re-subscribing after unsubscribe creates a fresh subscription
	again := n.Subscribe("students", "*", nil, func(Change) {})
	if again == sub {
		t.Error("expected a new subscription after unsubscribe")
	}
}

func TestDispatchMatching(t *testing.T) {
	n := NewNotifier(nil)
	var gotAll, gotInsert, gotFiltered int
	n.Subscribe("students", "*", nil, func(Change) { gotAll++ })
	n.Subscribe("students", "INSERT", nil, func(Change) { gotInsert++ })
	n.Subscribe("students", "UPDATE", &Filter{Column: "grade_level", Value: "3"}, func(Change) { gotFiltered++ })

	n.dispatch(Change{Table: "students", Event: "INSERT", Record: map[string]interface{}{"id": "a"}})
	n.dispatch(Change{Table: "students", Event: "UPDATE", Record: map[string]interface{}{"grade_level": "3"}})
	n.dispatch(Change{Table: "students", Event: "UPDATE", Record: map[string]interface{}{"grade_level": "4"}})
	n.dispatch(Change{Table: "expenses", Event: "INSERT", Record: nil})

	if gotAll != 3 {
		t.Errorf("wildcard subscription got %d events, want 3", gotAll)
	}
	if gotInsert != 1 {
		t.Errorf("insert subscription got %d events, want 1", gotInsert)
	}
	if gotFiltered != 1 {
		t.Errorf("filtered subscription got %d events, want 1", gotFiltered)
	}
}
