package regs

// Kind is a custom field type packed through its IntoBits/KindFromBits pair.
type Kind uint8

func (k Kind) IntoBits() uint8 { return uint8(k) }

func KindFromBits(v uint8) Kind { return Kind(v) }
