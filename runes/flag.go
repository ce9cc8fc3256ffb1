package runes

// Flag is a single bit in a runestone's flags field.
type Flag uint

const (
	FlagEtch Flag = 0
	FlagMint Flag = 1
	FlagBurn Flag = 127
)

func (f Flag) mask() uint64 {
	return 1 << uint(f)
}

// take reports whether the flag is set in flags and clears it.
func (f Flag) take(flags *uint64) bool {
	mask := f.mask()
	set := *flags&mask != 0
	*flags &^= mask
	return set
}

// set raises the flag in flags.
func (f Flag) set(flags *uint64) {
	*flags |= f.mask()
}
