package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleOrders() []Order {
	return []Order{
		{ID: "1", Number: "9Y-AB12", Status: StatusNew, Customer: Customer{Name: "Zoë Park", Phone: "555-0101"}, CreatedAt: testNow},
		{ID: "2", Number: "9Y-CD34", Status: StatusPreparing, Customer: Customer{Name: "Sam Lee"}, CreatedAt: testNow.Add(time.Hour)},
		{ID: "3", Number: "9Y-EF56", Status: StatusReady, Customer: Customer{Name: "Ana Ruiz"}, CreatedAt: testNow.Add(2 * time.Hour)},
	}
}

func ids(orders []Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestFilter_ZeroMatchesAll(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, ids(Filter{}.Apply(sampleOrders())))
}

func TestFilter_Status(t *testing.T) {
	f := Filter{Statuses: []Status{StatusPreparing, StatusReady}}
	assert.Equal(t, []string{"2", "3"}, ids(f.Apply(sampleOrders())))
	assert.False(t, f.WithoutStatus().HasStatus())
	assert.True(t, f.HasStatus(), "WithoutStatus must not mutate the receiver")
}

func TestFilter_DateRange(t *testing.T) {
	f := Filter{From: testNow.Add(time.Hour), To: testNow.Add(2 * time.Hour)}
	assert.Equal(t, []string{"2"}, ids(f.Apply(sampleOrders())))
}

func TestFilter_SearchTextFoldsCaseAndAccents(t *testing.T) {
	assert.Equal(t, []string{"1"}, ids(Filter{SearchText: "ZOË"}.Apply(sampleOrders())))
	// Decomposed e + combining diaeresis.
	assert.Equal(t, []string{"1"}, ids(Filter{SearchText: "zoë"}.Apply(sampleOrders())))
	assert.Equal(t, []string{"2"}, ids(Filter{SearchText: "9y-cd"}.Apply(sampleOrders())))
	assert.Equal(t, []string{"1"}, ids(Filter{SearchText: "0101"}.Apply(sampleOrders())))
	assert.Empty(t, Filter{SearchText: "nobody"}.Apply(sampleOrders()))
}
