package hand

// Stat indexes one column of the additive statistic vector shared by the
// aggregate cache tables. The order here is the column order used on flush.
type Stat int

const (
	StatHands Stat = iota // n
	StatStreet0VPI
	StatStreet0Aggr
	StatStreet03BChance
	StatStreet03BDone
	StatRaiseFirstInChance
	StatRaisedFirstIn
	StatStreet1Seen
	StatStreet2Seen
	StatStreet3Seen
	StatStreet4Seen
	StatSawShowdown
	StatStreet1Aggr
	StatStreet2Aggr
	StatStreet3Aggr
	StatStreet4Aggr
	StatWonWhenSeenStreet1
	StatWonAtSD
	StatTotalProfit
	StatRake

	NumStats
)

// StatColumns names the database columns backing each Stat, in order.
var StatColumns = [NumStats]string{
	"n",
	"street0VPI",
	"street0Aggr",
	"street0_3BChance",
	"street0_3BDone",
	"raiseFirstInChance",
	"raisedFirstIn",
	"street1Seen",
	"street2Seen",
	"street3Seen",
	"street4Seen",
	"sawShowdown",
	"street1Aggr",
	"street2Aggr",
	"street3Aggr",
	"street4Aggr",
	"wonWhenSeenStreet1",
	"wonAtSD",
	"totalProfit",
	"rake",
}

// StatLine is one additive row of aggregate statistics. Lines with the same
// cache key are summed in place; the total across all rows for a player and
// gametype always equals the sum over all contributing hands.
type StatLine [NumStats]int64

// Add sums o into l in place.
func (l *StatLine) Add(o StatLine) {
	for i := range l {
		l[i] += o[i]
	}
}

// Values returns the columns as a fresh slice in StatColumns order.
func (l *StatLine) Values() []int64 {
	out := make([]int64, NumStats)
	copy(out, l[:])
	return out
}
