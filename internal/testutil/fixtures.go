package testutil

// Fixture is a named set of owner and transaction rows.
type Fixture struct {
	Name         string
	Owners       []OwnerRow
	Transactions []TxnRow
}

// FixtureEndToEnd has one exact key match, three pairs that only match once
// building tokens are compared as sets, one owner with no counterpart and two
// transactions with none.
var FixtureEndToEnd = Fixture{
	Name: "end-to-end",
	Owners: []OwnerRow{
		{ID: "O1", Project: "Marina Gate", Building: "Tower A", Unit: "101", Area: 100, Name: "Alice"},
		{ID: "O2", Project: "Marina Gate", Building: "Residence North", Unit: "202", Area: 120, Name: "Bob"},
		{ID: "O3", Project: "Marina Gate", Building: "Heights Park", Unit: "303", Area: 80, Name: "Chen"},
		{ID: "O4", Project: "Marina Gate", Building: "Vista Creek", Unit: "404", Area: 95, Name: "Dana"},
		{ID: "O5", Project: "Palm Views", Building: "East Wing", Unit: "505", Area: 60, Name: "Eve"},
	},
	Transactions: []TxnRow{
		{ID: "T1", Project: "Marina Gate", Building: "Tower A", Unit: "101", Area: 100, Buyer: "Alice", Date: "01-02-2024"},
		{ID: "T2", Project: "Marina Gate", Building: "North Residence", Unit: "202", Area: 120, Buyer: "Bob"},
		{ID: "T3", Project: "Marina Gate", Building: "Park Heights", Unit: "303", Area: 80, Buyer: "Chen"},
		{ID: "T4", Project: "Marina Gate", Building: "Creek Vista", Unit: "404", Area: 95, Buyer: "Dana"},
		{ID: "T5", Project: "Marina Gate", Building: "Harbour Point", Unit: "909", Area: 300, Buyer: "Frank"},
		{ID: "T6", Project: "Jumeirah Bay", Building: "Island Tower", Unit: "12", Area: 250, Buyer: "Gus"},
	},
}

// FixtureReview yields one Medium pair (M1/TM, 0.85), one Low pair
// (L1/TL, 0.80) and one pair below the review floor (X1/TX, 0.70). Every
// cross pair scores far lower.
var FixtureReview = Fixture{
	Name: "review",
	Owners: []OwnerRow{
		{ID: "M1", Project: "Creek Harbour", Building: "Tower A", Unit: "1", Area: 100},
		{ID: "L1", Project: "Creek Harbour", Building: "Tower B", Unit: "2", Area: 100},
		{ID: "X1", Project: "Creek Harbour", Building: "Tower C", Unit: "3", Area: 100},
	},
	Transactions: []TxnRow{
		{ID: "TM", Project: "Creek Harbour", Building: "Tower A", Unit: "1", Area: 101.5},
		{ID: "TL", Project: "Creek Harbour", Building: "Tower B", Unit: "2", Area: 103},
		{ID: "TX", Project: "Creek Harbour", Building: "Tower C", Unit: "4", Area: 100},
	},
}
