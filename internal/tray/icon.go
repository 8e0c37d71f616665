package tray

import "encoding/binary"

const iconSize = 16

// iconICO draws a 16x16 32-bit ICO: a dark keycap with a light key row
func iconICO() []byte {
	const (
		headerLen = 6 + 16
		dibLen    = 40
		pixelLen  = iconSize * iconSize * 4
		maskLen   = iconSize * 4 // 1bpp rows padded to 32 bits
	)
	buf := make([]byte, headerLen+dibLen+pixelLen+maskLen)
	le := binary.LittleEndian

	// ICONDIR + one ICONDIRENTRY
	le.PutUint16(buf[2:], 1)
	le.PutUint16(buf[4:], 1)
	buf[6], buf[7] = iconSize, iconSize
	le.PutUint16(buf[10:], 1)
	le.PutUint16(buf[12:], 32)
	le.PutUint32(buf[14:], dibLen+pixelLen+maskLen)
	le.PutUint32(buf[18:], headerLen)

	// BITMAPINFOHEADER; height covers the colour and mask planes
	dib := buf[headerLen:]
	le.PutUint32(dib[0:], dibLen)
	le.PutUint32(dib[4:], iconSize)
	le.PutUint32(dib[8:], iconSize*2)
	le.PutUint16(dib[12:], 1)
	le.PutUint16(dib[14:], 32)
	le.PutUint32(dib[20:], pixelLen)

	// Pixels are BGRA, bottom-up
	px := buf[headerLen+dibLen:]
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			var b, g, r, a byte
			switch {
			case x < 1 || x > 14 || y < 3 || y > 12:
				// transparent
			case y >= 5 && y <= 10 && x >= 3 && x <= 12 && (x+y)%3 != 0:
				b, g, r, a = 0xee, 0xee, 0xee, 0xff
			default:
				b, g, r, a = 0x40, 0x33, 0x2b, 0xff
			}
			i := ((iconSize-1-y)*iconSize + x) * 4
			px[i], px[i+1], px[i+2], px[i+3] = b, g, r, a
		}
	}
	return buf
}
