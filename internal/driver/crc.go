package driver

const (
	crcInitial    = 0xFFFF
	crcPolynomial = 0xA001 // 0x8005 reflected
)

// CalculateCRC computes the CRC-16 (Modbus) checksum for the given data
func CalculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
