package checksum

const (
	crc8Poly    = 0x2F
	crc8Initial = 0xFF
	crc8XorOut  = 0xFF
)

var crc8Table = func() [256]byte {
	var table [256]byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ crc8Poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()

// CRC8H2F computes CRC-8 with polynomial 0x2F, initial value 0xFF and the
// result XORed with 0xFF.
func CRC8H2F(payload []byte) byte {
	crc := byte(crc8Initial)
	for _, b := range payload {
		crc = crc8Table[crc^b]
	}
	return crc ^ crc8XorOut
}
