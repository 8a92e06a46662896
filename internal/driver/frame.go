package driver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/sweeney/monarco-bridge/internal/logic"
)

// FrameSize is the length of one full-duplex SPI transfer, CRC included.
const FrameSize = 28

const (
	crcOffset = FrameSize - 2

	sdcAddressMask = 0x3FFF
	sdcWriteFlag   = 0x4000
	sdcErrorFlag   = 0x8000

	// Full scale of the 12-bit analog channels.
	analogRawMax   = 4095
	analogVoltsMax = 10.0
)

var (
	ErrFrameSize = errors.New("invalid frame size")
	ErrCRC       = errors.New("frame crc mismatch")
)

// SDC is one service data channel slot: a single register read or write.
// An Address of zero means the slot is idle.
type SDC struct {
	Address RegisterID
	Value   uint16
	Write   bool
	Error   bool
}

func (s SDC) word() uint16 {
	w := uint16(s.Address) & sdcAddressMask
	if s.Write {
		w |= sdcWriteFlag
	}
	if s.Error {
		w |= sdcErrorFlag
	}
	return w
}

func sdcFromWords(value, word uint16) SDC {
	return SDC{
		Address: RegisterID(word & sdcAddressMask),
		Value:   value,
		Write:   word&sdcWriteFlag != 0,
		Error:   word&sdcErrorFlag != 0,
	}
}

// TxFrame is what the host sends to the controller every cycle.
type TxFrame struct {
	Status         uint16
	SDC            SDC
	LEDMask        uint8
	LEDValue       uint8
	DigitalOutputs uint8
	PWM1Div        uint16
	PWM1A          uint16
	PWM1B          uint16
	PWM1C          uint16
	PWM2Div        uint16
	PWM2A          uint16
	AnalogOutputs  [logic.NumAnalogOutputs]uint16
}

// Encode serializes the frame, little endian, with the CRC appended.
func (f TxFrame) Encode() []byte {
	b := make([]byte, FrameSize)
	le := binary.LittleEndian
	le.PutUint16(b[0:], f.Status)
	le.PutUint16(b[2:], f.SDC.Value)
	le.PutUint16(b[4:], f.SDC.word())
	b[6] = f.LEDMask
	b[7] = f.LEDValue
	b[8] = f.DigitalOutputs
	le.PutUint16(b[10:], f.PWM1Div)
	le.PutUint16(b[12:], f.PWM1A)
	le.PutUint16(b[14:], f.PWM1B)
	le.PutUint16(b[16:], f.PWM1C)
	le.PutUint16(b[18:], f.PWM2Div)
	le.PutUint16(b[20:], f.PWM2A)
	le.PutUint16(b[22:], f.AnalogOutputs[0])
	le.PutUint16(b[24:], f.AnalogOutputs[1])
	le.PutUint16(b[crcOffset:], CalculateCRC(b[:crcOffset]))
	return b
}

// DecodeTx parses a host frame. Used by device simulators in tests.
func DecodeTx(b []byte) (TxFrame, error) {
	if err := checkFrame(b); err != nil {
		return TxFrame{}, err
	}
	le := binary.LittleEndian
	return TxFrame{
		Status:         le.Uint16(b[0:]),
		SDC:            sdcFromWords(le.Uint16(b[2:]), le.Uint16(b[4:])),
		LEDMask:        b[6],
		LEDValue:       b[7],
		DigitalOutputs: b[8],
		PWM1Div:        le.Uint16(b[10:]),
		PWM1A:          le.Uint16(b[12:]),
		PWM1B:          le.Uint16(b[14:]),
		PWM1C:          le.Uint16(b[16:]),
		PWM2Div:        le.Uint16(b[18:]),
		PWM2A:          le.Uint16(b[20:]),
		AnalogOutputs:  [logic.NumAnalogOutputs]uint16{le.Uint16(b[22:]), le.Uint16(b[24:])},
	}, nil
}

// RxFrame is what the controller returns every cycle.
type RxFrame struct {
	Status        uint16
	SDC           SDC
	DigitalInputs uint8
	Counter1      uint32
	Counter2      uint32
	AnalogInputs  [2]uint16
}

// Encode serializes the frame. Used by device simulators in tests.
func (f RxFrame) Encode() []byte {
	b := make([]byte, FrameSize)
	le := binary.LittleEndian
	le.PutUint16(b[0:], f.Status)
	le.PutUint16(b[2:], f.SDC.Value)
	le.PutUint16(b[4:], f.SDC.word())
	b[6] = f.DigitalInputs
	le.PutUint32(b[8:], f.Counter1)
	le.PutUint32(b[12:], f.Counter2)
	le.PutUint16(b[16:], f.AnalogInputs[0])
	le.PutUint16(b[18:], f.AnalogInputs[1])
	le.PutUint16(b[crcOffset:], CalculateCRC(b[:crcOffset]))
	return b
}

// DecodeRx parses a controller frame, rejecting bad sizes and CRCs.
func DecodeRx(b []byte) (RxFrame, error) {
	if err := checkFrame(b); err != nil {
		return RxFrame{}, err
	}
	le := binary.LittleEndian
	return RxFrame{
		Status:        le.Uint16(b[0:]),
		SDC:           sdcFromWords(le.Uint16(b[2:]), le.Uint16(b[4:])),
		DigitalInputs: b[6],
		Counter1:      le.Uint32(b[8:]),
		Counter2:      le.Uint32(b[12:]),
		AnalogInputs:  [2]uint16{le.Uint16(b[16:]), le.Uint16(b[18:])},
	}, nil
}

// Inputs unpacks DI1-DI4 from the low nibble.
func (f RxFrame) Inputs() logic.DigitalInputSample {
	var s logic.DigitalInputSample
	for i := range s {
		s[i] = f.DigitalInputs&(1<<i) != 0
	}
	return s
}

func checkFrame(b []byte) error {
	if len(b) != FrameSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(b), FrameSize)
	}
	want := binary.LittleEndian.Uint16(b[crcOffset:])
	if got := CalculateCRC(b[:crcOffset]); got != want {
		return fmt.Errorf("%w: got 0x%04X, want 0x%04X", ErrCRC, got, want)
	}
	return nil
}

// VoltsToRaw converts 0-10 V to the 12-bit DAC value, clamping out-of-range input.
func VoltsToRaw(v float64) uint16 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= analogVoltsMax {
		return analogRawMax
	}
	return uint16(math.Round(v / analogVoltsMax * analogRawMax))
}

// RawToVolts converts a 12-bit ADC/DAC value to volts.
func RawToVolts(raw uint16) float64 {
	if raw > analogRawMax {
		raw = analogRawMax
	}
	return float64(raw) / analogRawMax * analogVoltsMax
}
