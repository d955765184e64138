package regs

// StatusSpec is the status register of a small UART.
//
//bitgen:bitfield uint16 order=msb
type StatusSpec struct {
	Busy    bool  `bits:"access=ro"`
	Parity  uint8 `bits:"2,default=1"`
	Pending uint8 `bits:"5"`
	Level   int8  `bits:"8"`
}

//bitgen:bitfield uint32
type ControlSpec struct {
	Status Status
	Baud   uint16 `bits:"12"`
	_      uint8  `bits:"4"`
}
