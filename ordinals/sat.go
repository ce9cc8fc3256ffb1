// Package ordinals implements the sat arithmetic, varint codec, and
// sat-range/satpoint types that the indexer builds every other component
// on: mapping a sat to its height/degree/name/rarity/percentile views, and
// parsing each of the five canonical sat string forms.
package ordinals

import (
	"fmt"
	"strconv"
	"strings"
)

// Sat is a single smallest-denomination unit, in [0, Supply).
type Sat uint64

// LastSat is the highest valid sat number.
const LastSat Sat = Supply - 1

const (
	// Supply is the total number of sats that will ever exist.
	Supply = 2_099_999_997_690_000
	// SubsidyHalvingInterval is the number of blocks between halvings.
	SubsidyHalvingInterval = 210_000
	// DifficultyChangeInterval is the number of blocks between retargets.
	DifficultyChangeInterval = 2_016
	// CycleEpochs is the number of halving epochs per cycle.
	CycleEpochs = 6
	// CoinValue is the number of sats in one coin.
	CoinValue = 100_000_000
)

// Height is a block height.
type Height uint32

// Epoch is a halving epoch number.
type Epoch uint32

// epochStartingSats[e] is the first sat of epoch e, precomputed once since
// Sat.Height/Epoch/Third are on the indexer's hot path.
var epochStartingSats = func() [34]Sat {
	var table [34]Sat
	var total uint64
	for e := 1; e < 34; e++ {
		total += Epoch(e - 1).Subsidy() * SubsidyHalvingInterval
		table[e] = Sat(total)
	}
	return table
}()

// StartingSat is the first sat of the epoch's subsidy range.
func (e Epoch) StartingSat() Sat {
	if int(e) >= len(epochStartingSats) {
		return Sat(^uint64(0))
	}
	return epochStartingSats[e]
}

// Subsidy is the block subsidy, in sats, during this epoch.
func (e Epoch) Subsidy() uint64 {
	if e >= 33 {
		return 0
	}
	return (50 * CoinValue) >> uint(e)
}

// StartingHeight is the first height of this epoch.
func (e Epoch) StartingHeight() Height {
	return Height(uint32(e) * SubsidyHalvingInterval)
}

// EpochOf returns the halving epoch a height belongs to.
func EpochOf(h Height) Epoch {
	return Epoch(uint32(h) / SubsidyHalvingInterval)
}

// EpochOfSat returns the halving epoch a sat was mined in.
func EpochOfSat(s Sat) Epoch {
	// Epoch starting sats are strictly increasing and subsidies are
	// halving, so a forward scan from 0 terminates quickly in practice
	// (33 epochs cover the entire 64-bit sat range).
	var e Epoch
	for e < 33 {
		next := e + 1
		if next.StartingSat() > s {
			break
		}
		e = next
	}
	return e
}

// Height maps a sat to the block height that produced it.
func (s Sat) Height() Height {
	epoch := EpochOfSat(s)
	subsidy := epoch.Subsidy()
	if subsidy == 0 {
		return epoch.StartingHeight()
	}
	position := uint64(s) - uint64(epoch.StartingSat())
	return epoch.StartingHeight() + Height(position/subsidy)
}

// Epoch returns the halving epoch this sat was mined in.
func (s Sat) Epoch() Epoch {
	return EpochOfSat(s)
}

// EpochPosition is the sat's offset from the start of its epoch.
func (s Sat) EpochPosition() uint64 {
	return uint64(s) - uint64(s.Epoch().StartingSat())
}

// Third is the sat's offset within the block that mined it.
func (s Sat) Third() uint64 {
	subsidy := s.Epoch().Subsidy()
	if subsidy == 0 {
		return 0
	}
	return s.EpochPosition() % subsidy
}

// Cycle is the difficulty cycle (CycleEpochs halving epochs) this sat
// belongs to.
func (s Sat) Cycle() uint32 {
	return uint32(s.Epoch()) / CycleEpochs
}

// Period is the difficulty-adjustment period this sat's height falls in.
func (s Sat) Period() uint32 {
	return uint32(s.Height()) / DifficultyChangeInterval
}

// Common reports whether a sat is Rarity Common, without the cost of
// computing its full Degree.
func (s Sat) Common() bool {
	epoch := s.Epoch()
	subsidy := epoch.Subsidy()
	if subsidy == 0 {
		return true
	}
	return (uint64(s)-uint64(epoch.StartingSat()))%subsidy != 0
}

// Coin reports whether a sat falls on a whole-coin boundary.
func (s Sat) Coin() bool {
	return uint64(s)%CoinValue == 0
}

// Nineball reports whether a sat was mined in the block at height 9 (a
// charm unrelated to rarity).
func (s Sat) Nineball() bool {
	return uint64(s) >= 50*CoinValue*9 && uint64(s) < 50*CoinValue*10
}

// Name is the sat's base-26 lowercase name: the inverse of SUPPLY-sat.
func (s Sat) Name() string {
	x := uint64(Supply) - uint64(s)
	var buf []byte
	for x > 0 {
		buf = append(buf, "abcdefghijklmnopqrstuvwxyz"[(x-1)%26])
		x = (x - 1) / 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// Percentile is the sat's position in the supply as a percentage string.
func (s Sat) Percentile() string {
	return fmt.Sprintf("%v%%", float64(s)/float64(LastSat)*100)
}

// Decimal is the sat's height.offset representation.
func (s Sat) Decimal() string {
	return fmt.Sprintf("%d.%d", s.Height(), s.Third())
}

// Degree is the sat's (hour, minute, second, third) coordinate.
type Degree struct {
	Hour   uint32
	Minute uint32
	Second uint32
	Third  uint64
}

func (d Degree) String() string {
	return fmt.Sprintf("%d°%d′%d″%d‴", d.Hour, d.Minute, d.Second, d.Third)
}

// Degree computes the sat's degree coordinate.
func (s Sat) Degree() Degree {
	height := uint32(s.Height())
	return Degree{
		Hour:   height / (CycleEpochs * SubsidyHalvingInterval),
		Minute: height % SubsidyHalvingInterval,
		Second: height % DifficultyChangeInterval,
		Third:  s.Third(),
	}
}

// Rarity classifies a sat by which degree coordinates are zero.
type Rarity int

const (
	Common Rarity = iota
	Uncommon
	Rare
	Epic
	Legendary
	Mythic
)

func (r Rarity) String() string {
	switch r {
	case Common:
		return "common"
	case Uncommon:
		return "uncommon"
	case Rare:
		return "rare"
	case Epic:
		return "epic"
	case Legendary:
		return "legendary"
	case Mythic:
		return "mythic"
	default:
		return "unknown"
	}
}

// Rarity computes the sat's rarity from its degree.
func (s Sat) Rarity() Rarity {
	d := s.Degree()
	switch {
	case d.Hour == 0 && d.Minute == 0 && d.Second == 0 && d.Third == 0:
		return Mythic
	case d.Minute == 0 && d.Second == 0 && d.Third == 0:
		return Legendary
	case d.Minute == 0 && d.Third == 0:
		return Epic
	case d.Second == 0 && d.Third == 0:
		return Rare
	case d.Third == 0:
		return Uncommon
	default:
		return Common
	}
}

// ParseSat parses any of the five canonical sat string forms. A sat MUST
// parse by exactly the first matching rule: lowercase letters -> name,
// containing '°' -> degree, containing '%' -> percentile, containing
// '.' -> decimal, else integer.
func ParseSat(s string) (Sat, error) {
	switch {
	case containsLower(s):
		return satFromName(s)
	case strings.Contains(s, "°"):
		return satFromDegree(s)
	case strings.Contains(s, "%"):
		return satFromPercentile(s)
	case strings.Contains(s, "."):
		return satFromDecimal(s)
	default:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer: %w", err)
		}
		if n > uint64(LastSat) {
			return 0, fmt.Errorf("invalid integer range")
		}
		return Sat(n), nil
	}
}

func containsLower(s string) bool {
	for _, c := range s {
		if c >= 'a' && c <= 'z' {
			return true
		}
	}
	return false
}

func satFromName(s string) (Sat, error) {
	var x uint64
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return 0, fmt.Errorf("invalid character in name")
		}
		x = x*26 + uint64(c-'a') + 1
		if x > Supply {
			return 0, fmt.Errorf("invalid name range")
		}
	}
	return Sat(Supply - x), nil
}

func satFromDecimal(s string) (Sat, error) {
	heightStr, offsetStr, ok := strings.Cut(s, ".")
	if !ok {
		return 0, fmt.Errorf("missing period")
	}
	height, err := strconv.ParseUint(heightStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	offset, err := strconv.ParseUint(offsetStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	h := Height(height)
	if offset >= h.subsidyUnchecked() {
		return 0, fmt.Errorf("invalid block offset")
	}
	return h.startingSat() + Sat(offset), nil
}

func satFromPercentile(s string) (Sat, error) {
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("invalid percentile")
	}
	pct, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float: %w", err)
	}
	if pct < 0 {
		return 0, fmt.Errorf("invalid percentile")
	}
	last := float64(LastSat)
	n := roundHalfAwayFromZero(pct / 100.0 * last)
	if n > last {
		return 0, fmt.Errorf("invalid percentile")
	}
	return Sat(uint64(n)), nil
}

func roundHalfAwayFromZero(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return float64(int64(f - 0.5))
}

// satFromDegree parses the "h°m′s″t‴" form, including its
// non-trivial epoch/period consistency check.
func satFromDegree(s string) (Sat, error) {
	cycleStr, rest, ok := strings.Cut(s, "°")
	if !ok {
		return 0, fmt.Errorf("missing degree symbol")
	}
	cycleNumber, err := strconv.ParseUint(cycleStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}

	epochOffsetStr, rest, ok := strings.Cut(rest, "′")
	if !ok {
		return 0, fmt.Errorf("missing minute symbol")
	}
	epochOffset, err := strconv.ParseUint(epochOffsetStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if epochOffset >= SubsidyHalvingInterval {
		return 0, fmt.Errorf("invalid epoch offset")
	}

	periodOffsetStr, rest, ok := strings.Cut(rest, "″")
	if !ok {
		return 0, fmt.Errorf("missing second symbol")
	}
	periodOffset, err := strconv.ParseUint(periodOffsetStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if periodOffset >= DifficultyChangeInterval {
		return 0, fmt.Errorf("invalid period offset")
	}

	cycleStartEpoch := uint32(cycleNumber) * CycleEpochs

	const halvingIncrement = SubsidyHalvingInterval % DifficultyChangeInterval

	relationship := int64(periodOffset) + int64(SubsidyHalvingInterval)*CycleEpochs - int64(epochOffset)
	if relationship%halvingIncrement != 0 {
		return 0, fmt.Errorf("EpochPeriodMismatch: relationship between epoch offset and period offset must be multiple of %d", halvingIncrement)
	}

	epochsSinceCycleStart := uint32((relationship % DifficultyChangeInterval) / halvingIncrement)

	epoch := Epoch(cycleStartEpoch + epochsSinceCycleStart)
	height := epoch.StartingHeight() + Height(epochOffset)

	var blockOffset uint64
	if rest != "" {
		blockOffsetStr, trailing, ok := strings.Cut(rest, "‴")
		if !ok {
			return 0, fmt.Errorf("trailing character")
		}
		if trailing != "" {
			return 0, fmt.Errorf("trailing character")
		}
		blockOffset, err = strconv.ParseUint(blockOffsetStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer: %w", err)
		}
	}

	if blockOffset >= height.subsidyUnchecked() {
		return 0, fmt.Errorf("invalid block offset")
	}

	return height.startingSat() + Sat(blockOffset), nil
}

func (h Height) subsidyUnchecked() uint64 {
	return EpochOf(h).Subsidy()
}

func (h Height) startingSat() Sat {
	epoch := EpochOf(h)
	position := uint32(h) - uint32(epoch.StartingHeight())
	return epoch.StartingSat() + Sat(uint64(position)*epoch.Subsidy())
}

// Subsidy is the block subsidy, in sats, paid at height h.
func (h Height) Subsidy() uint64 {
	return h.subsidyUnchecked()
}

// StartingSat is the first sat mined at height h.
func (h Height) StartingSat() Sat {
	return h.startingSat()
}
